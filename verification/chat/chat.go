// Package chat defines the contract with the interactive chat platform. The
// platform delivers button interactions and membership events to the service
// through the gateway; the service talks back through a Messenger.
package chat

import (
	"context"
	"errors"
)

var (
	// ErrUnknownMember is returned by role and DM operations when the target
	// user is no longer a member of the guild.
	ErrUnknownMember = errors.New("user is not a member of the guild")

	ErrMessageDeliveryFailed = errors.New("message delivery failed")
)

const (
	ButtonStylePrimary = "primary"
	ButtonStyleSuccess = "success"
	ButtonStyleDanger  = "danger"
)

type Button struct {
	CustomId string `json:"custom_id"`
	Label    string `json:"label"`
	Style    string `json:"style"`
}

type Message struct {
	Title    string   `json:"title,omitempty"`
	Body     string   `json:"body"`
	ImageUrl string   `json:"image_url,omitempty"`
	Color    string   `json:"color,omitempty"`
	Fields   []Field  `json:"fields,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InteractionEvent is a single UI action forwarded by the gateway: one user
// pressing one control on one message.
type InteractionEvent struct {
	GuildId   string `json:"guild_id"`
	ChannelId string `json:"channel_id"`
	MessageId string `json:"message_id"`
	UserId    string `json:"user_id"`
	CustomId  string `json:"custom_id"`
}

// Messenger is the outbound surface of the chat platform. All calls are
// best-effort: a failure never implies anything about the state of the store.
type Messenger interface {
	// PostMessage sends a message to a channel and returns the platform
	// message id.
	PostMessage(ctx context.Context, channelId string, msg Message) (string, error)

	EditMessage(ctx context.Context, channelId, messageId string, msg Message) error

	// SendDirect delivers a direct message to a user.
	SendDirect(ctx context.Context, userId string, msg Message) error

	AddRole(ctx context.Context, guildId, userId, roleId string) error

	RemoveRole(ctx context.Context, guildId, userId, roleId string) error
}
