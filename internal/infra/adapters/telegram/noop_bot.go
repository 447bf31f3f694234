package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/infra/logging"
)

var _ adapter.Messenger = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outbound messages instead of sending them. Used with
// bot.mode=noop for dry runs against the admin API.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logging.Component(logger, "telegram-noop")}
}

func (b *NoopBotAdapter) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("send text")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Int("rows", len(rows)).Msg("send buttons")
	return nil
}

func (b *NoopBotAdapter) SendContent(ctx context.Context, chatID int64, content model.Content, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("kind", string(content.Kind)).Str("caption", caption).Msg("send content")
	return nil
}

func (b *NoopBotAdapter) SendPhotoBytes(ctx context.Context, chatID int64, name string, png []byte, caption string, _ [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("name", name).Int("bytes", len(png)).Str("caption", caption).Msg("send photo")
	return nil
}

func (b *NoopBotAdapter) Forward(ctx context.Context, chatID int64, fromChatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Int64("from_chat_id", fromChatID).Int("message_id", messageID).Msg("forward")
	return nil
}
