package services

import (
	"log/slog"
	"net/http"

	"throttle_platform/utils"
	"throttle_platform/verification/schema"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// GuildService manages per-scope configuration and manual ban flags.
type GuildService struct {
	db *gorm.DB
}

func (s *GuildService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{guild_id}/config", s.GetConfig)
	r.Put("/{guild_id}/config", s.SetConfig)
	r.Post("/{guild_id}/users/{user_id}/ban", s.Ban)
	r.Delete("/{guild_id}/users/{user_id}/ban", s.Unban)

	return r
}

type GuildConfigRequest struct {
	ReviewChannelId     string `json:"review_channel_id"`
	GuideChannelId      string `json:"guide_channel_id"`
	LogChannelId        string `json:"log_channel_id"`
	VerifiedRoleId      string `json:"verified_role_id"`
	AutoDecisionEnabled bool   `json:"auto_decision_enabled"`
}

func (s *GuildService) GetConfig(w http.ResponseWriter, r *http.Request) {
	guildId, err := utils.URLParam(r, "guild_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg, err := schema.GetGuildConfig(guildId, s.db)
	if err != nil {
		if err == schema.ErrGuildNotConfigured {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, cfg)
}

func (s *GuildService) SetConfig(w http.ResponseWriter, r *http.Request) {
	guildId, err := utils.URLParam(r, "guild_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params GuildConfigRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.ReviewChannelId == "" || params.LogChannelId == "" || params.VerifiedRoleId == "" {
		http.Error(w, "review_channel_id, log_channel_id, and verified_role_id are required", http.StatusUnprocessableEntity)
		return
	}

	cfg := schema.GuildConfig{
		GuildId:             guildId,
		ReviewChannelId:     params.ReviewChannelId,
		GuideChannelId:      params.GuideChannelId,
		LogChannelId:        params.LogChannelId,
		VerifiedRoleId:      params.VerifiedRoleId,
		AutoDecisionEnabled: params.AutoDecisionEnabled,
	}

	result := s.db.Save(&cfg)
	if result.Error != nil {
		slog.Error("sql error saving guild config", "guild_id", guildId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("guild config updated", "guild_id", guildId, "auto_decision_enabled", cfg.AutoDecisionEnabled)

	utils.WriteSuccess(w)
}

func (s *GuildService) setBan(w http.ResponseWriter, r *http.Request, banned bool) {
	guildId, err := utils.URLParam(r, "guild_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParam(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := setVerificationBan(s.db, guildId, userId, banned); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("verification ban flag updated", "guild_id", guildId, "user_id", userId, "banned", banned)

	utils.WriteSuccess(w)
}

func (s *GuildService) Ban(w http.ResponseWriter, r *http.Request) {
	s.setBan(w, r, true)
}

func (s *GuildService) Unban(w http.ResponseWriter, r *http.Request) {
	s.setBan(w, r, false)
}
