package schema

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen         = "open"
	StatusAutoApproved = "auto_approved"
	StatusAutoDenied   = "auto_denied"
	StatusClosed       = "closed"
)

const (
	DecisionApproved           = "approved"
	DecisionDenied             = "denied"
	DecisionDeniedReadGuide    = "denied_read_guide"
	DecisionBanned             = "banned"
	DecisionOverriddenApproved = "overridden_approved"
	DecisionOverriddenDenied   = "overridden_denied"
)

// SystemActor is recorded as decided_by when an application is closed
// without moderator involvement, e.g. when the submitter leaves the guild.
const SystemActor = "system"

type VerificationApplication struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	GuildId     string `gorm:"size:32;not null;index:idx_application_guild_user"`
	UserId      string `gorm:"size:32;not null;index:idx_application_guild_user"`
	VehicleName string `gorm:"size:100;not null"`

	ImageUrl string `gorm:"not null"`
	ProxyUrl string

	ReviewMessageId string `gorm:"size:32;index"`

	Status   string  `gorm:"size:50;not null"`
	Decision *string `gorm:"size:50"`

	DecidedBy   *string `gorm:"size:32"`
	SubmittedAt time.Time
	DecidedAt   *time.Time
}

func (a *VerificationApplication) Resolved() bool {
	return a.Status == StatusClosed
}

type CatalogEntry struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	GuildId     string `gorm:"size:32;not null;uniqueIndex:idx_catalog_owner_vehicle"`
	OwnerId     string `gorm:"size:32;not null;uniqueIndex:idx_catalog_owner_vehicle"`
	VehicleName string `gorm:"size:100;not null;uniqueIndex:idx_catalog_owner_vehicle"`

	Description       *string
	VerificationImage string `gorm:"not null"`
	EmbedColor        string `gorm:"size:10;not null;default:'#2f3136'"`

	CreatedAt time.Time

	Images []CatalogImage `gorm:"foreignKey:EntryId;constraint:OnDelete:CASCADE"`
}

type CatalogImage struct {
	Id      uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntryId uuid.UUID `gorm:"type:uuid;not null;index"`
	Url     string    `gorm:"not null"`
}

type UserProfile struct {
	GuildId string `gorm:"size:32;primaryKey"`
	UserId  string `gorm:"size:32;primaryKey"`

	VerificationBanned bool `gorm:"not null;default:false"`
}

type GuildConfig struct {
	GuildId string `gorm:"size:32;primaryKey"`

	ReviewChannelId string `gorm:"size:32;not null"`
	GuideChannelId  string `gorm:"size:32"`
	LogChannelId    string `gorm:"size:32;not null"`
	VerifiedRoleId  string `gorm:"size:32;not null"`

	AutoDecisionEnabled bool `gorm:"not null;default:false"`
}
