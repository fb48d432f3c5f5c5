package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"throttle_platform/utils/logging"
	"throttle_platform/verification/auth"
	"throttle_platform/verification/chat"
	"throttle_platform/verification/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DecisionService owns every terminal transition of an application. Each
// handler is triggered by a moderator pressing a control on a review message;
// the store is the only synchronization point between racing handlers.
type DecisionService struct {
	db        *gorm.DB
	messenger chat.Messenger
	audit     auth.AuditLogger
}

type DecisionResponse struct {
	ApplicationId uuid.UUID `json:"application_id"`
	Decision      string    `json:"decision"`

	// DmDelivered reports whether the submitter notification reached them.
	// A failed DM never reverses the committed decision.
	DmDelivered bool `json:"dm_delivered"`
}

// transition applies the compare-and-set state change: the row moves to
// closed+decision only if its status still matches fromStatus. Zero matched
// rows means another actor got there first.
func (s *DecisionService) transition(appId uuid.UUID, fromStatus, decision, actor string) error {
	now := time.Now().UTC()
	result := s.db.Model(&schema.VerificationApplication{}).
		Where("id = ? AND status = ?", appId, fromStatus).
		Updates(map[string]interface{}{
			"status":     schema.StatusClosed,
			"decision":   decision,
			"decided_by": actor,
			"decided_at": now,
		})
	if result.Error != nil {
		slog.Error("sql error applying decision transition", "application_id", appId, "decision", decision, "error", result.Error, "code", logging.DECISION_APPLY)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		decisionConflictsMetric.Inc()
		slog.Info("decision transition lost compare-and-set race", "application_id", appId, "decision", decision, "actor", actor, "code", logging.DECISION_CONFLICT)
		return CodedError(ErrAlreadyDecided, http.StatusConflict)
	}

	decisionsMetric.WithLabelValues(decision).Inc()
	return nil
}

// Decide resolves the application behind a review-message interaction and
// applies the decision the pressed control maps to.
func (s *DecisionService) Decide(ctx context.Context, ev chat.InteractionEvent) (DecisionResponse, error) {
	var fromStatus, decision string

	switch ev.CustomId {
	case ControlApprove:
		fromStatus, decision = schema.StatusOpen, schema.DecisionApproved
	case ControlDeny:
		fromStatus, decision = schema.StatusOpen, schema.DecisionDenied
	case ControlDenyGuide:
		fromStatus, decision = schema.StatusOpen, schema.DecisionDeniedReadGuide
	case ControlBan:
		fromStatus, decision = schema.StatusOpen, schema.DecisionBanned
	case ControlOverrideApprove:
		fromStatus, decision = schema.StatusAutoDenied, schema.DecisionOverriddenApproved
	case ControlOverrideDeny:
		fromStatus, decision = schema.StatusAutoApproved, schema.DecisionOverriddenDenied
	default:
		return DecisionResponse{}, CodedError(fmt.Errorf("unknown review control '%v'", ev.CustomId), http.StatusUnprocessableEntity)
	}

	app, err := schema.GetApplicationByReviewMessage(ev.GuildId, ev.MessageId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrApplicationNotFound) {
			return DecisionResponse{}, CodedError(ErrNoOpenApplication, http.StatusNotFound)
		}
		return DecisionResponse{}, CodedError(err, http.StatusInternalServerError)
	}

	if err := s.transition(app.Id, fromStatus, decision, ev.UserId); err != nil {
		return DecisionResponse{}, err
	}

	app.Status = schema.StatusClosed
	app.Decision = &decision
	app.DecidedBy = &ev.UserId

	dmDelivered := s.fanOut(ctx, &app, decision, ev.UserId)

	slog.Info("decision applied", "application_id", app.Id, "decision", decision, "decided_by", ev.UserId, "code", logging.DECISION_APPLY)

	return DecisionResponse{ApplicationId: app.Id, Decision: decision, DmDelivered: dmDelivered}, nil
}

// fanOut performs the side effects of a committed transition. None of them
// are retried and none can reverse the transition; failures are logged and,
// for the DM, surfaced to the acting moderator.
func (s *DecisionService) fanOut(ctx context.Context, app *schema.VerificationApplication, decision, actor string) bool {
	cfg, err := schema.GetGuildConfig(app.GuildId, s.db)
	if err != nil {
		slog.Error("error loading guild config for decision side effects", "application_id", app.Id, "error", err)
	}

	switch decision {
	case schema.DecisionApproved, schema.DecisionOverriddenApproved:
		if err := ensureCatalogEntry(s.db, app); err != nil {
			slog.Error("error creating catalog entry", "application_id", app.Id, "error", err)
		}
		if cfg.VerifiedRoleId != "" {
			if err := s.messenger.AddRole(ctx, app.GuildId, app.UserId, cfg.VerifiedRoleId); err != nil && !errors.Is(err, chat.ErrUnknownMember) {
				slog.Error("error granting verified role", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
			}
		}

	case schema.DecisionOverriddenDenied:
		if err := removeCatalogEntry(s.db, app); err != nil {
			slog.Error("error removing catalog entry for overridden approval", "application_id", app.Id, "error", err)
		}
		if cfg.VerifiedRoleId != "" {
			if err := s.messenger.RemoveRole(ctx, app.GuildId, app.UserId, cfg.VerifiedRoleId); err != nil && !errors.Is(err, chat.ErrUnknownMember) {
				slog.Error("error revoking verified role", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
			}
		}

	case schema.DecisionBanned:
		if err := setVerificationBan(s.db, app.GuildId, app.UserId, true); err != nil {
			slog.Error("error setting verification ban flag", "application_id", app.Id, "error", err)
		}
	}

	reviewChannel := cfg.ReviewChannelId
	if reviewChannel != "" && app.ReviewMessageId != "" {
		if err := s.messenger.EditMessage(ctx, reviewChannel, app.ReviewMessageId, decidedMessage(app)); err != nil {
			slog.Error("error updating review message", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
		}
	}

	if cfg.LogChannelId != "" {
		if _, err := s.messenger.PostMessage(ctx, cfg.LogChannelId, auditMessage(app, decision, actor)); err != nil {
			slog.Error("error posting audit log message", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
		}
	}
	s.audit.Decision(app.GuildId, app.Id.String(), app.VehicleName, app.UserId, decision, actor)

	if err := s.messenger.SendDirect(ctx, app.UserId, submitterNotice(app, decision)); err != nil {
		slog.Error("error notifying submitter of decision", "application_id", app.Id, "error", err, "code", logging.CHAT_DELIVERY)
		return false
	}
	return true
}

func ensureCatalogEntry(db *gorm.DB, app *schema.VerificationApplication) error {
	entry := schema.CatalogEntry{
		GuildId:     app.GuildId,
		OwnerId:     app.UserId,
		VehicleName: app.VehicleName,
	}

	// FirstOrCreate keyed on (guild, owner, name) so a retried approval or a
	// racing override never double-creates.
	result := db.
		Where(schema.CatalogEntry{GuildId: app.GuildId, OwnerId: app.UserId, VehicleName: app.VehicleName}).
		Attrs(schema.CatalogEntry{
			Id:                uuid.New(),
			VerificationImage: app.ImageUrl,
			CreatedAt:         time.Now().UTC(),
		}).
		FirstOrCreate(&entry)
	if result.Error != nil {
		slog.Error("sql error creating catalog entry", "application_id", app.Id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	return nil
}

func removeCatalogEntry(db *gorm.DB, app *schema.VerificationApplication) error {
	result := db.
		Where("guild_id = ? AND owner_id = ? AND LOWER(vehicle_name) = LOWER(?)", app.GuildId, app.UserId, app.VehicleName).
		Delete(&schema.CatalogEntry{})
	if result.Error != nil {
		slog.Error("sql error removing catalog entry", "application_id", app.Id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	// Absence is tolerated: the entry may never have existed or was already
	// removed by a settings flow.
	return nil
}

func setVerificationBan(db *gorm.DB, guildId, userId string, banned bool) error {
	profile := schema.UserProfile{GuildId: guildId, UserId: userId, VerificationBanned: banned}

	result := db.Save(&profile)
	if result.Error != nil {
		slog.Error("sql error updating verification ban flag", "guild_id", guildId, "user_id", userId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	return nil
}
