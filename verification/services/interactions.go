package services

import (
	"net/http"
	"strings"

	"throttle_platform/utils"
	"throttle_platform/verification/chat"
	"throttle_platform/verification/dialog"

	"github.com/go-chi/chi/v5"
)

// InteractionService is the single entry point for UI actions forwarded by
// the gateway. Each event is dispatched by control id: consent controls feed
// the dialog manager, review controls feed the decision state machine.
type InteractionService struct {
	dialogs  *dialog.Manager
	decision *DecisionService
}

func (s *InteractionService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.Interaction)

	return r
}

type InteractionResponse struct {
	Handled  bool              `json:"handled"`
	Decision *DecisionResponse `json:"decision,omitempty"`
}

func (s *InteractionService) Interaction(w http.ResponseWriter, r *http.Request) {
	var ev chat.InteractionEvent
	if !utils.ParseRequestBody(w, r, &ev) {
		return
	}

	switch {
	case ev.CustomId == dialog.AffirmControl || ev.CustomId == dialog.DeclineControl:
		handled := s.dialogs.Resolve(ev.MessageId, ev.UserId, ev.CustomId == dialog.AffirmControl)
		utils.WriteJsonResponse(w, InteractionResponse{Handled: handled})

	case strings.HasPrefix(ev.CustomId, "review:"):
		res, err := s.decision.Decide(r.Context(), ev)
		if err != nil {
			http.Error(w, err.Error(), GetResponseCode(err))
			return
		}
		utils.WriteJsonResponse(w, InteractionResponse{Handled: true, Decision: &res})

	default:
		// Controls owned by other features (settings, catalog browsing) pass
		// through here too; they are not this service's concern.
		utils.WriteJsonResponse(w, InteractionResponse{Handled: false})
	}
}
