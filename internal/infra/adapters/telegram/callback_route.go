package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-relay-subscription/internal/infra/logging"
)

// handleQuery answers an inline button press. The spinner is always
// stopped, even when the facade fails.
func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	defer func() {
		if _, err := r.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			r.log.Debug().Err(err).Msg("answer callback")
		}
	}()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	ctx = logging.WithTgID(ctx, query.From.ID)

	data := strings.TrimSpace(query.Data)
	if !r.allow(ctx, query.From.ID, "cb") {
		return r.SendText(ctx, chatID, r.translator.T("rate_limited"))
	}

	reply, err := r.handler.HandleCallback(ctx, senderOf(query.From), data)
	if err != nil {
		_ = r.SendText(ctx, chatID, r.translator.T("generic_error"))
		return err
	}
	return r.sendReply(ctx, chatID, reply)
}
