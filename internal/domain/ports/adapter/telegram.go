package adapter

import (
	"context"

	"telegram-relay-subscription/internal/domain/model"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Messenger is the outbound side of the transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	// SendContent re-sends a text or media item; caption overrides the original one.
	SendContent(ctx context.Context, chatID int64, content model.Content, caption string) error
	SendPhotoBytes(ctx context.Context, chatID int64, name string, png []byte, caption string, rows [][]InlineButton) error
	// Forward copies a message (used for polls) from its origin chat.
	Forward(ctx context.Context, chatID int64, fromChatID int64, messageID int) error
}
