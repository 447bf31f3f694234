//go:build !integration

package telegram

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-relay-subscription/internal/application"
	"telegram-relay-subscription/internal/config"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/usecase"
)

const operatorID int64 = 1000

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type keyTranslator struct{}

func (keyTranslator) T(key string, _ ...interface{}) string { return key }
func (keyTranslator) Pool(string) []string                { return nil }

type fakeClient struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
	SendFunc func(c tgbotapi.Chattable) error
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendFunc != nil {
		if err := f.SendFunc(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeClient) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeClient) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeClient) sentSnapshot() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

type mockHandler struct {
	HandleMessageFunc  func(ctx context.Context, sender *model.User, content model.Content) (usecase.Outcome, error)
	HandleCommandFunc  func(ctx context.Context, sender *model.User, command string) (application.Reply, error)
	HandleCallbackFunc func(ctx context.Context, sender *model.User, data string) (application.Reply, error)
}

func (m *mockHandler) HandleMessage(ctx context.Context, sender *model.User, content model.Content) (usecase.Outcome, error) {
	if m.HandleMessageFunc != nil {
		return m.HandleMessageFunc(ctx, sender, content)
	}
	return usecase.OutcomeRelayed, nil
}

func (m *mockHandler) HandleCommand(ctx context.Context, sender *model.User, command string) (application.Reply, error) {
	if m.HandleCommandFunc != nil {
		return m.HandleCommandFunc(ctx, sender, command)
	}
	return application.Reply{Text: "ok"}, nil
}

func (m *mockHandler) HandleCallback(ctx context.Context, sender *model.User, data string) (application.Reply, error) {
	if m.HandleCallbackFunc != nil {
		return m.HandleCallbackFunc(ctx, sender, data)
	}
	return application.Reply{Text: "ok"}, nil
}

type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.AllowFunc(ctx, key, limit, window)
}

func newTestAdapter(h Handler, limiter RateLimiter) (*RealTelegramBotAdapter, *fakeClient) {
	client := &fakeClient{updates: make(chan tgbotapi.Update, 8)}
	cfg := &config.BotConfig{OperatorID: operatorID, PollTimeout: 1, RateLimit: 5}
	r := newAdapter(client, cfg, keyTranslator{}, limiter, newTestLogger())
	r.SetHandler(h)
	return r, client
}

func textMessage(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: from, FirstName: "Alice", UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
	}
}

func commandMessage(from int64, command string) *tgbotapi.Message {
	m := textMessage(from, "/"+command)
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return m
}

func onlyText(t *testing.T, sent []tgbotapi.Chattable) string {
	t.Helper()
	if len(sent) != 1 {
		t.Fatalf("expected one outbound message, got %d", len(sent))
	}
	msg, ok := sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected MessageConfig, got %T", sent[0])
	}
	return msg.Text
}

func TestExtractContent(t *testing.T) {
	t.Run("largest photo size wins", func(t *testing.T) {
		m := textMessage(42, "")
		m.Caption = "look"
		m.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}}
		c, ok := extractContent(m)
		if !ok || c.Kind != model.ContentPhoto || c.FileID != "big" || c.Caption != "look" {
			t.Errorf("unexpected content %+v", c)
		}
	})

	t.Run("poll keeps its origin", func(t *testing.T) {
		m := textMessage(42, "")
		m.Poll = &tgbotapi.Poll{Question: "lunch?"}
		c, ok := extractContent(m)
		if !ok || c.Kind != model.ContentPoll || c.FromChatID != 42 || c.MessageID != 7 {
			t.Errorf("unexpected content %+v", c)
		}
	})

	t.Run("voice and audio", func(t *testing.T) {
		m := textMessage(42, "")
		m.Voice = &tgbotapi.Voice{FileID: "v"}
		if c, _ := extractContent(m); c.Kind != model.ContentVoice || c.FileID != "v" {
			t.Errorf("unexpected content %+v", c)
		}
		m = textMessage(42, "")
		m.Audio = &tgbotapi.Audio{FileID: "a"}
		if c, _ := extractContent(m); c.Kind != model.ContentAudio {
			t.Errorf("unexpected content %+v", c)
		}
	})

	t.Run("sticker is unsupported", func(t *testing.T) {
		m := textMessage(42, "")
		m.Sticker = &tgbotapi.Sticker{FileID: "s"}
		if _, ok := extractContent(m); ok {
			t.Error("sticker must not be extracted")
		}
	})
}

func TestSendContent(t *testing.T) {
	ctx := context.Background()

	t.Run("media carries the new caption", func(t *testing.T) {
		r, client := newTestAdapter(&mockHandler{}, nil)
		err := r.SendContent(ctx, 5, model.Content{Kind: model.ContentDocument, FileID: "doc", Caption: "old"}, "new")
		if err != nil {
			t.Fatal(err)
		}
		doc, ok := client.sent[0].(tgbotapi.DocumentConfig)
		if !ok || doc.Caption != "new" || doc.ChatID != 5 {
			t.Errorf("unexpected outbound %#v", client.sent[0])
		}
	})

	t.Run("poll is forwarded", func(t *testing.T) {
		r, client := newTestAdapter(&mockHandler{}, nil)
		_ = r.SendContent(ctx, 5, model.Content{Kind: model.ContentPoll, FromChatID: 42, MessageID: 9}, "ignored")
		fwd, ok := client.sent[0].(tgbotapi.ForwardConfig)
		if !ok || fwd.FromChatID != 42 || fwd.MessageID != 9 || fwd.ChatID != 5 {
			t.Errorf("unexpected outbound %#v", client.sent[0])
		}
	})

	t.Run("transport errors surface", func(t *testing.T) {
		r, client := newTestAdapter(&mockHandler{}, nil)
		client.SendFunc = func(tgbotapi.Chattable) error { return errors.New("forbidden: bot was blocked") }
		if err := r.SendText(ctx, 5, "hi"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("cancelled context sends nothing", func(t *testing.T) {
		r, client := newTestAdapter(&mockHandler{}, nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := r.SendText(cctx, 5, "hi"); err == nil || len(client.sent) != 0 {
			t.Error("expected context error and no send")
		}
	})
}

func TestHandleUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("operator commands are gated before the facade", func(t *testing.T) {
		called := false
		h := &mockHandler{HandleCommandFunc: func(context.Context, *model.User, string) (application.Reply, error) {
			called = true
			return application.Reply{}, nil
		}}
		r, client := newTestAdapter(h, nil)
		_ = r.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(42, "stats")})
		if called {
			t.Error("facade must not see a non-operator /stats")
		}
		if got := onlyText(t, client.sent); got != "access_denied" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("start sets the menu and renders buttons", func(t *testing.T) {
		var gotCmd string
		h := &mockHandler{HandleCommandFunc: func(_ context.Context, _ *model.User, c string) (application.Reply, error) {
			gotCmd = c
			return application.Reply{Text: "menu", Buttons: [][]adapter.InlineButton{{{Text: "Panel", Data: "owner_panel"}}}}, nil
		}}
		r, client := newTestAdapter(h, nil)
		if err := r.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(operatorID, "start")}); err != nil {
			t.Fatal(err)
		}
		if gotCmd != "start" {
			t.Errorf("got command %q", gotCmd)
		}
		if len(client.requests) != 1 {
			t.Fatalf("expected the command menu request, got %d", len(client.requests))
		}
		if _, ok := client.requests[0].(tgbotapi.SetMyCommandsConfig); !ok {
			t.Errorf("unexpected request %T", client.requests[0])
		}
		msg := client.sent[0].(tgbotapi.MessageConfig)
		kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok || *kb.InlineKeyboard[0][0].CallbackData != "owner_panel" {
			t.Errorf("unexpected markup %#v", msg.ReplyMarkup)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		r, client := newTestAdapter(&mockHandler{}, nil)
		_ = r.handleUpdate(ctx, tgbotapi.Update{Message: commandMessage(42, "frobnicate")})
		if got := onlyText(t, client.sent); got != "unknown_command" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("plain messages go to the router", func(t *testing.T) {
		var got model.Content
		var sender *model.User
		h := &mockHandler{HandleMessageFunc: func(_ context.Context, u *model.User, c model.Content) (usecase.Outcome, error) {
			got, sender = c, u
			return usecase.OutcomeRelayed, nil
		}}
		r, _ := newTestAdapter(h, nil)
		_ = r.handleUpdate(ctx, tgbotapi.Update{Message: textMessage(42, "hello")})
		if got.Kind != model.ContentText || got.Text != "hello" {
			t.Errorf("unexpected content %+v", got)
		}
		if sender == nil || sender.ID != 42 || sender.Username != "alice" {
			t.Errorf("unexpected sender %+v", sender)
		}
	})

	t.Run("router failure is reported to the sender", func(t *testing.T) {
		h := &mockHandler{HandleMessageFunc: func(context.Context, *model.User, model.Content) (usecase.Outcome, error) {
			return "", errors.New("db down")
		}}
		r, client := newTestAdapter(h, nil)
		if err := r.handleUpdate(ctx, tgbotapi.Update{Message: textMessage(42, "hello")}); err == nil {
			t.Error("expected error to be returned for logging")
		}
		if got := onlyText(t, client.sent); got != "generic_error" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("group chats are ignored", func(t *testing.T) {
		called := false
		h := &mockHandler{HandleMessageFunc: func(context.Context, *model.User, model.Content) (usecase.Outcome, error) {
			called = true
			return "", nil
		}}
		r, _ := newTestAdapter(h, nil)
		m := textMessage(42, "hello")
		m.Chat = &tgbotapi.Chat{ID: -100, Type: "supergroup"}
		_ = r.handleUpdate(ctx, tgbotapi.Update{Message: m})
		if called {
			t.Error("group message reached the router")
		}
	})

	t.Run("rate limited users are told so", func(t *testing.T) {
		var key string
		limiter := &mockLimiter{AllowFunc: func(_ context.Context, k string, _ int, _ time.Duration) (bool, error) {
			key = k
			return false, nil
		}}
		called := false
		h := &mockHandler{HandleMessageFunc: func(context.Context, *model.User, model.Content) (usecase.Outcome, error) {
			called = true
			return "", nil
		}}
		r, client := newTestAdapter(h, limiter)
		_ = r.handleUpdate(ctx, tgbotapi.Update{Message: textMessage(42, "spam")})
		if called {
			t.Error("limited message reached the router")
		}
		if key != "rate_limit:42:message" {
			t.Errorf("unexpected key %q", key)
		}
		if got := onlyText(t, client.sent); got != "rate_limited" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("operator and limiter errors bypass the limit", func(t *testing.T) {
		calls := 0
		limiter := &mockLimiter{AllowFunc: func(context.Context, string, int, time.Duration) (bool, error) {
			calls++
			return false, errors.New("redis down")
		}}
		routed := 0
		h := &mockHandler{HandleMessageFunc: func(context.Context, *model.User, model.Content) (usecase.Outcome, error) {
			routed++
			return "", nil
		}}
		r, _ := newTestAdapter(h, limiter)
		_ = r.handleUpdate(ctx, tgbotapi.Update{Message: textMessage(operatorID, "hi")})
		_ = r.handleUpdate(ctx, tgbotapi.Update{Message: textMessage(42, "hi")})
		if calls != 1 {
			t.Errorf("operator must not be counted, limiter calls = %d", calls)
		}
		if routed != 2 {
			t.Errorf("expected both messages routed, got %d", routed)
		}
	})
}

func TestHandleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("callback is answered and the reply rendered", func(t *testing.T) {
		var data string
		png := []byte{0x89, 'P', 'N', 'G'}
		h := &mockHandler{HandleCallbackFunc: func(_ context.Context, _ *model.User, d string) (application.Reply, error) {
			data = d
			return application.Reply{Text: "pay", PhotoPNG: png}, nil
		}}
		r, client := newTestAdapter(h, nil)
		q := &tgbotapi.CallbackQuery{
			ID:      "cb1",
			From:    &tgbotapi.User{ID: 42},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
			Data:    " buy_plan_x ",
		}
		if err := r.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: q}); err != nil {
			t.Fatal(err)
		}
		if data != "buy_plan_x" {
			t.Errorf("data not trimmed: %q", data)
		}
		photo, ok := client.sent[0].(tgbotapi.PhotoConfig)
		if !ok || photo.Caption != "pay" {
			t.Fatalf("unexpected outbound %#v", client.sent[0])
		}
		if fb, ok := photo.File.(tgbotapi.FileBytes); !ok || len(fb.Bytes) != len(png) {
			t.Errorf("expected uploaded bytes, got %#v", photo.File)
		}
		cb, ok := client.requests[len(client.requests)-1].(tgbotapi.CallbackConfig)
		if !ok || cb.CallbackQueryID != "cb1" {
			t.Errorf("callback not answered: %#v", client.requests)
		}
	})

	t.Run("facade errors still answer the callback", func(t *testing.T) {
		h := &mockHandler{HandleCallbackFunc: func(context.Context, *model.User, string) (application.Reply, error) {
			return application.Reply{}, errors.New("boom")
		}}
		r, client := newTestAdapter(h, nil)
		_ = r.handleQuery(ctx, &tgbotapi.CallbackQuery{ID: "cb2", From: &tgbotapi.User{ID: 42}, Data: "main_menu"})
		if len(client.requests) != 1 {
			t.Errorf("expected the spinner to be stopped")
		}
		if got := onlyText(t, client.sent); got != "generic_error" {
			t.Errorf("got %q", got)
		}
	})
}

func TestStartPolling(t *testing.T) {
	t.Run("processes in order and survives a panic", func(t *testing.T) {
		var mu sync.Mutex
		var seen []string
		h := &mockHandler{HandleMessageFunc: func(_ context.Context, _ *model.User, c model.Content) (usecase.Outcome, error) {
			if c.Text == "boom" {
				panic("handler bug")
			}
			mu.Lock()
			seen = append(seen, c.Text)
			mu.Unlock()
			return usecase.OutcomeRelayed, nil
		}}
		r, client := newTestAdapter(h, nil)
		for _, txt := range []string{"one", "boom", "two", "three"} {
			client.updates <- tgbotapi.Update{Message: textMessage(42, txt)}
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- r.StartPolling(ctx) }()

		deadline := time.After(2 * time.Second)
		for {
			mu.Lock()
			n := len(seen)
			mu.Unlock()
			if n == 3 {
				break
			}
			select {
			case <-deadline:
				t.Fatalf("timed out, seen %v", seen)
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		if err := <-done; err != nil {
			t.Errorf("StartPolling returned %v", err)
		}
		if seen[0] != "one" || seen[1] != "two" || seen[2] != "three" {
			t.Errorf("out of order: %v", seen)
		}
		client.mu.Lock()
		defer client.mu.Unlock()
		if !client.stopped {
			t.Error("updates not stopped")
		}
	})

	t.Run("requires a handler", func(t *testing.T) {
		r, _ := newTestAdapter(nil, nil)
		r.handler = nil
		if err := r.StartPolling(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}
