package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"throttle_platform/utils"
	"throttle_platform/utils/logging"
	"throttle_platform/verification/advisory"
	"throttle_platform/verification/auth"
	"throttle_platform/verification/chat"
	"throttle_platform/verification/dialog"
	"throttle_platform/verification/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionService struct {
	db        *gorm.DB
	messenger chat.Messenger
	advisor   advisory.Advisor
	dialogs   *dialog.Manager
	audit     auth.AuditLogger
	variables Variables
}

func (s *SubmissionService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.Submit)

	return r
}

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Url         string `json:"url"`
	ProxyUrl    string `json:"proxy_url"`
}

type SubmitRequest struct {
	GuildId     string     `json:"guild_id"`
	UserId      string     `json:"user_id"`
	ChannelId   string     `json:"channel_id"`
	VehicleName string     `json:"vehicle_name"`
	Attachment  Attachment `json:"attachment"`
}

type SubmitResponse struct {
	ApplicationId uuid.UUID `json:"application_id,omitempty"`
	Status        string    `json:"status"`
	Detail        string    `json:"detail,omitempty"`
}

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// validate is the attachment validator: it rejects bad submissions before any
// record exists and has no side effects of its own.
func (s *SubmissionService) validate(params *SubmitRequest) (schema.GuildConfig, error) {
	cfg, err := schema.GetGuildConfig(params.GuildId, s.db)
	if err != nil {
		if err == schema.ErrGuildNotConfigured {
			return cfg, CodedError(err, http.StatusPreconditionFailed)
		}
		return cfg, CodedError(err, http.StatusInternalServerError)
	}
	if cfg.ReviewChannelId == "" || cfg.LogChannelId == "" || cfg.VerifiedRoleId == "" {
		return cfg, CodedError(schema.ErrGuildNotConfigured, http.StatusPreconditionFailed)
	}

	contentType := strings.ToLower(params.Attachment.ContentType)
	if !allowedImageTypes[contentType] && !strings.HasPrefix(contentType, "video/") {
		return cfg, CodedError(fmt.Errorf("%w, got '%v'", ErrUnsupportedAttachment, params.Attachment.ContentType), http.StatusUnprocessableEntity)
	}
	if params.Attachment.Size > s.variables.MaxAttachmentBytes {
		return cfg, CodedError(fmt.Errorf("attachment exceeds the %d MiB limit", s.variables.MaxAttachmentBytes/(1024*1024)), http.StatusUnprocessableEntity)
	}

	if n := len(params.VehicleName); n < 2 || n > 50 {
		return cfg, CodedError(fmt.Errorf("vehicle name must be between 2 and 50 characters, got %d", n), http.StatusUnprocessableEntity)
	}

	banned, err := schema.IsVerificationBanned(params.GuildId, params.UserId, s.db)
	if err != nil {
		return cfg, CodedError(err, http.StatusInternalServerError)
	}
	if banned {
		return cfg, CodedError(ErrVerificationBanned, http.StatusForbidden)
	}

	if err := checkCatalogDuplicate(s.db, params.GuildId, params.UserId, params.VehicleName); err != nil {
		return cfg, err
	}
	if err := checkOpenDuplicate(s.db, params.GuildId, params.UserId, params.VehicleName); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func abortCopy(step string, outcome dialog.Outcome) string {
	if outcome == dialog.TimedOut {
		return fmt.Sprintf("%v timed out, submission cancelled", step)
	}
	return fmt.Sprintf("%v declined, submission cancelled", step)
}

func (s *SubmissionService) Submit(w http.ResponseWriter, r *http.Request) {
	var params SubmitRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	cfg, err := s.validate(&params)
	if err != nil {
		slog.Info("submission rejected by validator", "guild_id", params.GuildId, "user_id", params.UserId, "error", err, "code", logging.APP_VALIDATE)
		submissionsMetric.WithLabelValues("rejected").Inc()
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	ctx := r.Context()

	// The guide channel is optional configuration; without one the prompt
	// drops the channel mention rather than rendering a broken reference.
	guideBody := fmt.Sprintf("<@%v> Have you read the verification guide?", params.UserId)
	if cfg.GuideChannelId != "" {
		guideBody = fmt.Sprintf("<@%v> Have you read the verification guide in <#%v>?", params.UserId, cfg.GuideChannelId)
	}
	guidePrompt := chat.Message{
		Title: "Before you submit",
		Body:  guideBody,
	}
	outcome, err := s.dialogs.Ask(ctx, params.ChannelId, params.UserId, guidePrompt)
	if err != nil {
		http.Error(w, fmt.Sprintf("error presenting guide prompt: %v", err), http.StatusBadGateway)
		return
	}
	if outcome != dialog.Affirmed {
		submissionsMetric.WithLabelValues("aborted").Inc()
		utils.WriteJsonResponse(w, SubmitResponse{Status: "aborted", Detail: abortCopy("guide acknowledgment", outcome)})
		return
	}

	confirmPrompt := chat.Message{
		Title:    "Confirm your submission",
		Body:     fmt.Sprintf("<@%v> Submit **%v** with the attached photo for verification?", params.UserId, params.VehicleName),
		ImageUrl: params.Attachment.Url,
	}
	outcome, err = s.dialogs.Ask(ctx, params.ChannelId, params.UserId, confirmPrompt)
	if err != nil {
		http.Error(w, fmt.Sprintf("error presenting confirmation prompt: %v", err), http.StatusBadGateway)
		return
	}
	if outcome != dialog.Affirmed {
		submissionsMetric.WithLabelValues("aborted").Inc()
		utils.WriteJsonResponse(w, SubmitResponse{Status: "aborted", Detail: abortCopy("confirmation", outcome)})
		return
	}

	app := schema.VerificationApplication{
		Id:          uuid.New(),
		GuildId:     params.GuildId,
		UserId:      params.UserId,
		VehicleName: params.VehicleName,
		ImageUrl:    params.Attachment.Url,
		ProxyUrl:    params.Attachment.ProxyUrl,
		Status:      schema.StatusOpen,
		SubmittedAt: time.Now().UTC(),
	}

	if cfg.AutoDecisionEnabled && s.advisor != nil {
		if res, ok := s.tryAutoDecision(ctx, &cfg, &app); ok {
			utils.WriteJsonResponse(w, res)
			return
		}
	}

	// The review message is posted before the row is persisted: a submission
	// that staff cannot see must not exist.
	messageId, err := s.messenger.PostMessage(ctx, cfg.ReviewChannelId, reviewMessage(&app))
	if err != nil {
		slog.Error("error posting review message", "guild_id", params.GuildId, "error", err, "code", logging.CHAT_DELIVERY)
		submissionsMetric.WithLabelValues("failed").Inc()
		http.Error(w, "error posting application for review", http.StatusBadGateway)
		return
	}
	app.ReviewMessageId = messageId

	if result := s.db.Create(&app); result.Error != nil {
		slog.Error("sql error creating application", "guild_id", params.GuildId, "error", result.Error, "code", logging.APP_SUBMIT)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	s.audit.Submission(app.GuildId, app.Id.String(), app.VehicleName, app.UserId, app.Status)
	submissionsMetric.WithLabelValues("submitted").Inc()

	eta := s.estimateTurnaround(params.GuildId)
	reply := chat.Message{
		Title: "Application Submitted",
		Body:  fmt.Sprintf("<@%v> Your application for **%v** is in the review queue. Estimated turnaround: %v.", params.UserId, params.VehicleName, eta),
	}
	if _, err := s.messenger.PostMessage(ctx, params.ChannelId, reply); err != nil {
		slog.Error("error sending submission confirmation", "guild_id", params.GuildId, "user_id", params.UserId, "error", err, "code", logging.CHAT_DELIVERY)
	}

	slog.Info("application submitted", "application_id", app.Id, "guild_id", app.GuildId, "user_id", app.UserId, "code", logging.APP_SUBMIT)

	utils.WriteJsonResponse(w, SubmitResponse{ApplicationId: app.Id, Status: schema.StatusOpen})
}

// tryAutoDecision runs the advisory collaborator and applies an automatic
// decision when its verdict is confident enough. Returns ok=false to fall
// through to manual review on any advisor failure or low confidence.
func (s *SubmissionService) tryAutoDecision(ctx context.Context, cfg *schema.GuildConfig, app *schema.VerificationApplication) (SubmitResponse, bool) {
	verdict, err := s.advisor.Review(ctx, app.VehicleName, app.ImageUrl)
	if err != nil {
		slog.Error("advisory review failed, falling back to manual review", "guild_id", app.GuildId, "error", err, "code", logging.APP_ADVISORY)
		advisoryVerdictsMetric.WithLabelValues("error").Inc()
		return SubmitResponse{}, false
	}

	if verdict.Confidence < s.variables.AutoDecisionConfidence {
		advisoryVerdictsMetric.WithLabelValues("low_confidence").Inc()
		return SubmitResponse{}, false
	}

	if verdict.RequirementsMet && verdict.VehicleMatch {
		app.Status = schema.StatusAutoApproved
		advisoryVerdictsMetric.WithLabelValues("auto_approved").Inc()
	} else {
		app.Status = schema.StatusAutoDenied
		advisoryVerdictsMetric.WithLabelValues("auto_denied").Inc()
	}

	messageId, err := s.messenger.PostMessage(ctx, cfg.ReviewChannelId, autoDecisionMessage(app, verdict.Issues))
	if err != nil {
		slog.Error("error posting auto-decision notice, falling back to manual review", "guild_id", app.GuildId, "error", err, "code", logging.CHAT_DELIVERY)
		app.Status = schema.StatusOpen
		return SubmitResponse{}, false
	}
	app.ReviewMessageId = messageId

	if result := s.db.Create(app); result.Error != nil {
		slog.Error("sql error creating auto-decided application", "guild_id", app.GuildId, "error", result.Error, "code", logging.APP_ADVISORY)
		app.Status = schema.StatusOpen
		return SubmitResponse{}, false
	}

	s.audit.Submission(app.GuildId, app.Id.String(), app.VehicleName, app.UserId, app.Status)
	submissionsMetric.WithLabelValues(app.Status).Inc()

	if app.Status == schema.StatusAutoApproved {
		if err := ensureCatalogEntry(s.db, app); err != nil {
			slog.Error("error creating catalog entry for auto-approval", "application_id", app.Id, "error", err, "code", logging.APP_ADVISORY)
		}
		if err := s.messenger.AddRole(ctx, app.GuildId, app.UserId, cfg.VerifiedRoleId); err != nil && err != chat.ErrUnknownMember {
			slog.Error("error granting verified role for auto-approval", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
		}
		notice := chat.Message{
			Title: "Application Auto-Approved",
			Body:  fmt.Sprintf("**%v** passed automatic verification and was added to your garage.", app.VehicleName),
		}
		if err := s.messenger.SendDirect(ctx, app.UserId, notice); err != nil {
			slog.Error("error sending auto-approval notice", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
		}
	} else {
		notice := chat.Message{
			Title: "Application Auto-Denied",
			Body:  fmt.Sprintf("**%v** did not pass automatic verification: %v", app.VehicleName, strings.Join(verdict.Issues, "; ")),
		}
		if err := s.messenger.SendDirect(ctx, app.UserId, notice); err != nil {
			slog.Error("error sending auto-denial notice", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
		}
	}

	slog.Info("application auto-decided", "application_id", app.Id, "guild_id", app.GuildId, "status", app.Status, "confidence", verdict.Confidence, "code", logging.APP_ADVISORY)

	return SubmitResponse{ApplicationId: app.Id, Status: app.Status}, true
}

// estimateTurnaround reports the mean turnaround of the trailing window of
// resolved applications in the scope, or the default range below the minimum
// sample size.
func (s *SubmissionService) estimateTurnaround(guildId string) string {
	var apps []schema.VerificationApplication
	result := s.db.
		Where("guild_id = ? AND status = ? AND decided_at IS NOT NULL", guildId, schema.StatusClosed).
		Order("decided_at DESC").
		Limit(s.variables.MinTurnaroundSamples).
		Find(&apps)
	if result.Error != nil {
		slog.Error("sql error computing turnaround estimate", "guild_id", guildId, "error", result.Error)
		return s.variables.DefaultTurnaround
	}

	if len(apps) < s.variables.MinTurnaroundSamples {
		return s.variables.DefaultTurnaround
	}

	var total time.Duration
	for _, app := range apps {
		total += app.DecidedAt.Sub(app.SubmittedAt)
	}
	mean := total / time.Duration(len(apps))

	if mean < time.Hour {
		return fmt.Sprintf("about %d minutes", int(mean.Minutes())+1)
	}
	return fmt.Sprintf("about %d hours", int(mean.Hours()+0.5))
}
