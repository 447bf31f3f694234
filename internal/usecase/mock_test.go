//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/infra/db/memory"
	"telegram-relay-subscription/internal/infra/worker"
	"telegram-relay-subscription/internal/usecase"

	"github.com/rs/zerolog"
)

const operatorID int64 = 1000

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Messenger mock ---

type delivery struct {
	ChatID  int64
	Kind    string
	Text    string
	Content model.Content
}

type mockMessenger struct {
	mu        sync.Mutex
	delivered []delivery

	SendTextFunc    func(ctx context.Context, chatID int64, text string) error
	SendContentFunc func(ctx context.Context, chatID int64, c model.Content, caption string) error
	ForwardFunc     func(ctx context.Context, chatID, fromChatID int64, messageID int) error
}

func (m *mockMessenger) record(d delivery, err error) error {
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.delivered = append(m.delivered, d)
	m.mu.Unlock()
	return nil
}

func (m *mockMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	var err error
	if m.SendTextFunc != nil {
		err = m.SendTextFunc(ctx, chatID, text)
	}
	return m.record(delivery{ChatID: chatID, Kind: "text", Text: text}, err)
}

func (m *mockMessenger) SendButtons(ctx context.Context, chatID int64, text string, _ [][]adapter.InlineButton) error {
	return m.SendText(ctx, chatID, text)
}

func (m *mockMessenger) SendContent(ctx context.Context, chatID int64, c model.Content, caption string) error {
	var err error
	if m.SendContentFunc != nil {
		err = m.SendContentFunc(ctx, chatID, c, caption)
	}
	return m.record(delivery{ChatID: chatID, Kind: string(c.Kind), Text: caption, Content: c}, err)
}

func (m *mockMessenger) SendPhotoBytes(_ context.Context, chatID int64, _ string, _ []byte, caption string, _ [][]adapter.InlineButton) error {
	return m.record(delivery{ChatID: chatID, Kind: "photo_bytes", Text: caption}, nil)
}

func (m *mockMessenger) Forward(ctx context.Context, chatID, fromChatID int64, messageID int) error {
	var err error
	if m.ForwardFunc != nil {
		err = m.ForwardFunc(ctx, chatID, fromChatID, messageID)
	}
	return m.record(delivery{ChatID: chatID, Kind: "forward", Content: model.Content{FromChatID: fromChatID, MessageID: messageID}}, err)
}

// to returns what chatID successfully received, in order.
func (m *mockMessenger) to(chatID int64) []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []delivery
	for _, d := range m.delivered {
		if d.ChatID == chatID {
			out = append(out, d)
		}
	}
	return out
}

func (m *mockMessenger) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

// --- Localizer stub ---

var testAcks = []string{"ack one for {operator}", "ack two", "ack three"}

type stubLocalizer struct{}

// T renders "key[arg arg ...]" so tests can match on both key and args.
func (stubLocalizer) T(key string, args ...interface{}) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf("%s%v", key, args)
}

func (stubLocalizer) Pool(key string) []string {
	if key == "acknowledgments" {
		return testAcks
	}
	return nil
}

// --- StateRepository mock ---

type mockStateRepo struct {
	GetFunc   func(ctx context.Context, userID int64) (model.ConversationState, error)
	SaveFunc  func(ctx context.Context, userID int64, s model.ConversationState) error
	ClearFunc func(ctx context.Context, userID int64) error
}

func (m *mockStateRepo) Get(ctx context.Context, userID int64) (model.ConversationState, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return model.ConversationState{}, nil
}

func (m *mockStateRepo) Save(ctx context.Context, userID int64, s model.ConversationState) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, userID, s)
	}
	return nil
}

func (m *mockStateRepo) Clear(ctx context.Context, userID int64) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, userID)
	}
	return nil
}

// --- wiring on in-memory repositories ---

type testEnv struct {
	users     *memory.UserRepo
	plans     *memory.PlanRepo
	keys      *memory.KeyRepo
	requests  *memory.PaymentRequestRepo
	info      *memory.PaymentInfoRepo
	messages  *memory.MessageLogRepo
	stateRepo *memory.StateRepo
	locker    *memory.Locker
	bot       *mockMessenger

	now        time.Time
	routerDeps usecase.RouterDeps
	state      usecase.StateTracker
	userUC     usecase.UserUseCase
	planUC     usecase.PlanUseCase
	ledger     usecase.LedgerUseCase
	payments   usecase.PaymentUseCase
	broadcast  usecase.BroadcastUseCase
	router     usecase.RouterUseCase
	admin      usecase.AdminUseCase
	self       usecase.SelfServiceUseCase
	stats      usecase.StatsUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := newTestLogger()
	e := &testEnv{
		users:     memory.NewUserRepo(),
		plans:     memory.NewPlanRepo(),
		keys:      memory.NewKeyRepo(),
		requests:  memory.NewPaymentRequestRepo(),
		info:      memory.NewPaymentInfoRepo(),
		messages:  memory.NewMessageLogRepo(),
		stateRepo: memory.NewStateRepo(),
		locker:    memory.NewLocker(),
		bot:       &mockMessenger{},
		now:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	pool := worker.NewPool(4, log)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		pool.Stop()
		cancel()
	})

	loc := stubLocalizer{}
	e.state = usecase.NewStateTracker(e.stateRepo, log)
	e.userUC = usecase.NewUserUseCase(e.users, log)
	e.planUC = usecase.NewPlanUseCase(e.plans, log)
	e.ledger = usecase.NewLedgerUseCase(e.keys, e.plans, log).WithClock(func() time.Time { return e.now })
	e.payments = usecase.NewPaymentUseCase(memory.NewTxManager(), e.requests, e.info, e.plans, e.ledger, e.state, e.bot, loc, operatorID, log)
	e.broadcast = usecase.NewBroadcastUseCase(e.users, e.bot, pool, e.locker, loc, "Sam", 0, log)
	e.routerDeps = usecase.RouterDeps{
		Users:     e.userUC,
		State:     e.state,
		Plans:     e.planUC,
		Ledger:    e.ledger,
		Payments:  e.payments,
		Broadcast: e.broadcast,
		Messages:  e.messages,
		Bot:       e.bot,
		Loc:       loc,
	}
	e.router = usecase.NewRouterUseCase(e.routerDeps, operatorID, "Sam", log).WithPicker(func(n int) int { return 0 })
	e.stats = usecase.NewStatsUseCase(e.users, e.plans, e.requests, e.ledger, log)
	e.admin = usecase.NewAdminUseCase(usecase.AdminDeps{
		Users:     e.userUC,
		Plans:     e.planUC,
		Ledger:    e.ledger,
		Payments:  e.payments,
		Broadcast: e.broadcast,
		Stats:     e.stats,
		State:     e.state,
		Messages:  e.messages,
	}, operatorID, log)
	e.self = usecase.NewSelfServiceUseCase(e.planUC, e.payments, e.ledger, e.state, log)
	return e
}

func (e *testEnv) addUser(t *testing.T, id int64, username, first string) *model.User {
	t.Helper()
	u, err := model.NewUser(id, username, first)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := e.users.Save(context.Background(), nil, u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

func (e *testEnv) addPlan(t *testing.T, name string, days int, price float64) *model.Plan {
	t.Helper()
	p, err := e.planUC.Create(context.Background(), name, days, price)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return p
}

func (e *testEnv) operator(t *testing.T) *usecase.Operator {
	t.Helper()
	op, err := e.admin.Authorize(operatorID)
	if err != nil {
		t.Fatalf("authorize operator: %v", err)
	}
	return op
}

func text(s string) model.Content { return model.Content{Kind: model.ContentText, Text: s} }

func photo(fileID string) model.Content {
	return model.Content{Kind: model.ContentPhoto, FileID: fileID}
}
