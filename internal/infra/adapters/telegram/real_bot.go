package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-relay-subscription/internal/application"
	"telegram-relay-subscription/internal/config"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"
	red "telegram-relay-subscription/internal/infra/redis"
	"telegram-relay-subscription/internal/usecase"
)

var _ adapter.Messenger = (*RealTelegramBotAdapter)(nil)

// botClient is the slice of *tgbotapi.BotAPI the adapter uses.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler is what the adapter needs from the application layer.
type Handler interface {
	HandleMessage(ctx context.Context, sender *model.User, content model.Content) (usecase.Outcome, error)
	HandleCommand(ctx context.Context, sender *model.User, command string) (application.Reply, error)
	HandleCallback(ctx context.Context, sender *model.User, data string) (application.Reply, error)
}

// RateLimiter is satisfied by *redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter polls Telegram and hands every update to the
// facade, one at a time in arrival order. It also implements the Messenger
// port the use cases send through.
type RealTelegramBotAdapter struct {
	bot         botClient
	cfg         *config.BotConfig
	handler     Handler
	translator  usecase.Localizer
	rateLimiter RateLimiter
	log         *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, translator usecase.Localizer, rateLimiter RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, cfg, translator, rateLimiter, logger), nil
}

func newAdapter(bot botClient, cfg *config.BotConfig, translator usecase.Localizer, rateLimiter RateLimiter, logger *zerolog.Logger) *RealTelegramBotAdapter {
	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		translator:  translator,
		rateLimiter: rateLimiter,
		log:         logging.Component(logger, "telegram"),
	}
}

// SetHandler completes construction. The facade needs the adapter as its
// Messenger, so the two are tied together after both exist.
func (r *RealTelegramBotAdapter) SetHandler(h Handler) { r.handler = h }

// StartPolling consumes updates until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.handler == nil {
		return errors.New("telegram: handler not set")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.cfg.PollTimeout
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel
	defer cancel()

	r.log.Info().Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			r.log.Info().Msg("polling stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.process(ctx, up)
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// process runs one update and never lets a failure escape the loop.
func (r *RealTelegramBotAdapter) process(ctx context.Context, up tgbotapi.Update) {
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	defer func() {
		if rec := recover(); rec != nil {
			logging.With(ctx, r.log).Error().Interface("panic", rec).Int("update_id", up.UpdateID).Msg("update handler panicked")
		}
	}()
	if err := r.handleUpdate(ctx, up); err != nil {
		logging.With(ctx, r.log).Error().Err(err).Int("update_id", up.UpdateID).Msg("update failed")
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		metrics.IncTelegramUpdate("callback")
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	// only private chats take part in the relay
	if !msg.Chat.IsPrivate() {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)
	sender := senderOf(msg.From)

	if msg.IsCommand() {
		metrics.IncTelegramUpdate("command")
		if !r.allow(ctx, sender.ID, "/"+msg.Command()) {
			return r.SendText(ctx, msg.Chat.ID, r.translator.T("rate_limited"))
		}
		return r.handleCommand(ctx, msg)
	}

	content, ok := extractContent(msg)
	if !ok {
		metrics.IncTelegramUpdate("unsupported")
		return nil
	}
	metrics.IncTelegramUpdate(string(content.Kind))
	if !r.allow(ctx, sender.ID, "message") {
		return r.SendText(ctx, msg.Chat.ID, r.translator.T("rate_limited"))
	}
	outcome, err := r.handler.HandleMessage(ctx, sender, content)
	if err != nil {
		_ = r.SendText(ctx, msg.Chat.ID, r.translator.T("generic_error"))
		return err
	}
	logging.With(ctx, r.log).Debug().Str("outcome", string(outcome)).Msg("message routed")
	return nil
}

// allow applies the per-user fixed-window limit. The operator is exempt and
// a limiter failure lets the update through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, command string) bool {
	if r.rateLimiter == nil || r.cfg.RateLimit <= 0 || userID == r.cfg.OperatorID {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, command), r.cfg.RateLimit, time.Minute)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func senderOf(u *tgbotapi.User) *model.User {
	return &model.User{ID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

// extractContent maps a Telegram message onto a transport-neutral Content.
// Stickers, contacts and the like report false.
func extractContent(msg *tgbotapi.Message) (model.Content, bool) {
	c := model.Content{Caption: msg.Caption, FromChatID: msg.Chat.ID, MessageID: msg.MessageID}
	switch {
	case len(msg.Photo) > 0:
		c.Kind = model.ContentPhoto
		c.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		c.Kind = model.ContentVideo
		c.FileID = msg.Video.FileID
	case msg.Document != nil:
		c.Kind = model.ContentDocument
		c.FileID = msg.Document.FileID
	case msg.Audio != nil:
		c.Kind = model.ContentAudio
		c.FileID = msg.Audio.FileID
	case msg.Voice != nil:
		c.Kind = model.ContentVoice
		c.FileID = msg.Voice.FileID
	case msg.Poll != nil:
		c.Kind = model.ContentPoll
		c.Text = msg.Poll.Question
	case msg.Text != "":
		c.Kind = model.ContentText
		c.Text = msg.Text
	default:
		return model.Content{}, false
	}
	return c, true
}

// ------------------------------------------------------------ Messenger

func (r *RealTelegramBotAdapter) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendButtons sends text with an inline keyboard. A button with a URL opens
// a link, otherwise it carries callback data.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if kb := keyboard(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) SendContent(ctx context.Context, chatID int64, content model.Content, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file := tgbotapi.FileID(content.FileID)
	var out tgbotapi.Chattable
	switch content.Kind {
	case model.ContentText:
		text := caption
		if text == "" {
			text = content.Text
		}
		out = tgbotapi.NewMessage(chatID, text)
	case model.ContentPhoto:
		m := tgbotapi.NewPhoto(chatID, file)
		m.Caption = caption
		out = m
	case model.ContentVideo:
		m := tgbotapi.NewVideo(chatID, file)
		m.Caption = caption
		out = m
	case model.ContentDocument:
		m := tgbotapi.NewDocument(chatID, file)
		m.Caption = caption
		out = m
	case model.ContentAudio:
		m := tgbotapi.NewAudio(chatID, file)
		m.Caption = caption
		out = m
	case model.ContentVoice:
		m := tgbotapi.NewVoice(chatID, file)
		m.Caption = caption
		out = m
	case model.ContentPoll:
		return r.Forward(ctx, chatID, content.FromChatID, content.MessageID)
	default:
		return errors.New("telegram: unsupported content kind " + string(content.Kind))
	}
	_, err := r.bot.Send(out)
	return err
}

func (r *RealTelegramBotAdapter) SendPhotoBytes(ctx context.Context, chatID int64, name string, png []byte, caption string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	m.Caption = caption
	if kb := keyboard(rows); kb != nil {
		m.ReplyMarkup = *kb
	}
	_, err := r.bot.Send(m)
	return err
}

func (r *RealTelegramBotAdapter) Forward(ctx context.Context, chatID int64, fromChatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tgbotapi.NewForward(chatID, fromChatID, messageID))
	return err
}

// sendReply renders a facade reply: a photo (by file id or uploaded PNG)
// with the text as caption, or a plain message.
func (r *RealTelegramBotAdapter) sendReply(ctx context.Context, chatID int64, reply application.Reply) error {
	if reply.IsEmpty() {
		return nil
	}
	switch {
	case reply.PhotoFileID != "":
		m := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(reply.PhotoFileID))
		m.Caption = reply.Text
		if kb := keyboard(reply.Buttons); kb != nil {
			m.ReplyMarkup = *kb
		}
		_, err := r.bot.Send(m)
		return err
	case len(reply.PhotoPNG) > 0:
		return r.SendPhotoBytes(ctx, chatID, "payment-qr.png", reply.PhotoPNG, reply.Text, reply.Buttons)
	case len(reply.Buttons) > 0:
		return r.SendButtons(ctx, chatID, reply.Text, reply.Buttons)
	}
	return r.SendText(ctx, chatID, reply.Text)
}

func keyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	if len(kbRows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &kb
}
