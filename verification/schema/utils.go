package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrApplicationNotFound  = errors.New("application not found")
	ErrCatalogEntryNotFound = errors.New("catalog entry not found")
	ErrGuildNotConfigured   = errors.New("guild is not configured for verification")
	ErrDbAccessFailed       = errors.New("db access failed")
)

func GetApplication(appId uuid.UUID, db *gorm.DB) (VerificationApplication, error) {
	var app VerificationApplication

	result := db.First(&app, "id = ?", appId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return app, ErrApplicationNotFound
		}
		slog.Error("sql error in get application", "application_id", appId, "error", result.Error)
		return app, ErrDbAccessFailed
	}

	return app, nil
}

func GetApplicationByReviewMessage(guildId, messageId string, db *gorm.DB) (VerificationApplication, error) {
	var app VerificationApplication

	result := db.First(&app, "guild_id = ? AND review_message_id = ?", guildId, messageId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return app, ErrApplicationNotFound
		}
		slog.Error("sql error in get application by review message", "guild_id", guildId, "message_id", messageId, "error", result.Error)
		return app, ErrDbAccessFailed
	}

	return app, nil
}

func GetGuildConfig(guildId string, db *gorm.DB) (GuildConfig, error) {
	var cfg GuildConfig

	result := db.First(&cfg, "guild_id = ?", guildId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return cfg, ErrGuildNotConfigured
		}
		slog.Error("sql error in get guild config", "guild_id", guildId, "error", result.Error)
		return cfg, ErrDbAccessFailed
	}

	return cfg, nil
}

func GetCatalogEntry(guildId, ownerId, vehicleName string, db *gorm.DB) (CatalogEntry, error) {
	var entry CatalogEntry

	result := db.Preload("Images").
		First(&entry, "guild_id = ? AND owner_id = ? AND LOWER(vehicle_name) = LOWER(?)", guildId, ownerId, vehicleName)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return entry, ErrCatalogEntryNotFound
		}
		slog.Error("sql error in get catalog entry", "guild_id", guildId, "owner_id", ownerId, "error", result.Error)
		return entry, ErrDbAccessFailed
	}

	return entry, nil
}

// IsVerificationBanned returns false for users with no profile row.
func IsVerificationBanned(guildId, userId string, db *gorm.DB) (bool, error) {
	var profile UserProfile

	result := db.Limit(1).Find(&profile, "guild_id = ? AND user_id = ?", guildId, userId)
	if result.Error != nil {
		slog.Error("sql error in get user profile", "guild_id", guildId, "user_id", userId, "error", result.Error)
		return false, ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	return profile.VerificationBanned, nil
}
