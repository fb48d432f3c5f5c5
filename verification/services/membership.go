package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"throttle_platform/utils"
	"throttle_platform/utils/logging"
	"throttle_platform/verification/auth"
	"throttle_platform/verification/chat"
	"throttle_platform/verification/schema"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// MembershipService force-closes a departing user's open applications. It
// competes with moderator decisions for the same rows and uses the same
// compare-and-set discipline, so a concurrent approval and departure resolve
// to exactly one outcome.
type MembershipService struct {
	db        *gorm.DB
	messenger chat.Messenger
	audit     auth.AuditLogger
}

func (s *MembershipService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/leave", s.MemberLeft)

	return r
}

type MemberLeftRequest struct {
	GuildId string `json:"guild_id"`
	UserId  string `json:"user_id"`
}

type MemberLeftResponse struct {
	ApplicationsClosed int `json:"applications_closed"`
}

func (s *MembershipService) MemberLeft(w http.ResponseWriter, r *http.Request) {
	var params MemberLeftRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var open []schema.VerificationApplication
	result := s.db.Find(&open, "guild_id = ? AND user_id = ? AND status = ?",
		params.GuildId, params.UserId, schema.StatusOpen)
	if result.Error != nil {
		slog.Error("sql error listing open applications for departed member", "guild_id", params.GuildId, "user_id", params.UserId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	cfg, cfgErr := schema.GetGuildConfig(params.GuildId, s.db)
	if cfgErr != nil {
		slog.Error("error loading guild config for passive closure", "guild_id", params.GuildId, "error", cfgErr)
	}

	closed := 0
	for _, app := range open {
		now := time.Now().UTC()
		result := s.db.Model(&schema.VerificationApplication{}).
			Where("id = ? AND status = ?", app.Id, schema.StatusOpen).
			Updates(map[string]interface{}{
				"status":     schema.StatusClosed,
				"decision":   schema.DecisionDenied,
				"decided_by": schema.SystemActor,
				"decided_at": now,
			})
		if result.Error != nil {
			slog.Error("sql error closing application for departed member", "application_id", app.Id, "error", result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// A moderator decided this application between the listing and
			// the conditional write; their decision stands.
			slog.Info("application decided concurrently with member departure", "application_id", app.Id, "code", logging.DECISION_CONFLICT)
			continue
		}

		closed++
		decisionsMetric.WithLabelValues(schema.DecisionDenied).Inc()

		decision := schema.DecisionDenied
		actor := schema.SystemActor
		app.Status = schema.StatusClosed
		app.Decision = &decision
		app.DecidedBy = &actor

		if cfgErr == nil && app.ReviewMessageId != "" {
			if err := s.messenger.EditMessage(r.Context(), cfg.ReviewChannelId, app.ReviewMessageId, decidedMessage(&app)); err != nil {
				slog.Error("error updating review message for passive closure", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
			}
		}
		if cfgErr == nil && cfg.LogChannelId != "" {
			msg := auditMessage(&app, fmt.Sprintf("%v (submitter left the server)", decision), actor)
			if _, err := s.messenger.PostMessage(r.Context(), cfg.LogChannelId, msg); err != nil {
				slog.Error("error posting passive closure log message", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
			}
		}
		s.audit.Decision(app.GuildId, app.Id.String(), app.VehicleName, app.UserId, decision, actor)
	}

	if closed > 0 {
		slog.Info("closed open applications for departed member", "guild_id", params.GuildId, "user_id", params.UserId, "count", closed, "code", logging.DECISION_CLEANUP)
	}

	utils.WriteJsonResponse(w, MemberLeftResponse{ApplicationsClosed: closed})
}
