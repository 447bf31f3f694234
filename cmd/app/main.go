// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-relay-subscription/internal/application"
	"telegram-relay-subscription/internal/config"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/domain/ports/repository"
	tele "telegram-relay-subscription/internal/infra/adapters/telegram"
	"telegram-relay-subscription/internal/infra/db/memory"
	pg "telegram-relay-subscription/internal/infra/db/postgres"
	"telegram-relay-subscription/internal/infra/i18n"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"
	red "telegram-relay-subscription/internal/infra/redis"
	"telegram-relay-subscription/internal/infra/sched"
	"telegram-relay-subscription/internal/infra/security"
	"telegram-relay-subscription/internal/infra/web"
	"telegram-relay-subscription/internal/infra/worker"
	"telegram-relay-subscription/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

type store struct {
	tx       repository.TransactionManager
	users    repository.UserRepository
	plans    repository.PlanRepository
	keys     repository.AuthorizationKeyRepository
	requests repository.PaymentRequestRepository
	info     repository.PaymentInfoRepository
	messages repository.MessageLogRepository
	pool     *pgxpool.Pool
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: in-memory storage and bot.mode=noop allowed")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("relay stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Redis (optional) ----
	var rdb red.RedisClient
	if cfg.Redis.URL != "" {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		rdb = client
	}

	// ---- Storage ----
	st, err := openStore(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	if st.pool != nil {
		defer st.pool.Close()
		go reportPoolStats(ctx, st.pool)
	}

	var stateRepo repository.StateRepository = memory.NewStateRepo()
	if cfg.State.Backend == config.StateRedis {
		stateRepo = red.NewStateRepo(rdb, cfg.State.TTL)
	}
	var locker usecase.Locker = memory.NewLocker()
	var limiter tele.RateLimiter
	if rdb != nil {
		locker = red.NewLocker(rdb)
		limiter = red.NewRateLimiter(rdb)
	}

	translator, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// ---- Worker pool ----
	pool := worker.NewPool(cfg.Broadcast.Concurrency, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// ---- Messenger ----
	var (
		messenger  adapter.Messenger
		botAdapter *tele.RealTelegramBotAdapter
	)
	switch cfg.Bot.Mode {
	case config.ModePolling:
		botAdapter, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, translator, limiter, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		messenger = botAdapter
	default:
		messenger = tele.NewNoopBotAdapter(logger)
	}

	// ---- Use cases ----
	operatorID, operatorName := cfg.Bot.OperatorID, cfg.Bot.OperatorName
	state := usecase.NewStateTracker(stateRepo, logger)
	userUC := usecase.NewUserUseCase(st.users, logger)
	planUC := usecase.NewPlanUseCase(st.plans, logger)
	ledgerUC := usecase.NewLedgerUseCase(st.keys, st.plans, logger)
	paymentUC := usecase.NewPaymentUseCase(st.tx, st.requests, st.info, st.plans, ledgerUC, state, messenger, translator, operatorID, logger)
	broadcastUC := usecase.NewBroadcastUseCase(st.users, messenger, pool, locker, translator, operatorName, cfg.Broadcast.RatePerSecond, logger)
	statsUC := usecase.NewStatsUseCase(st.users, st.plans, st.requests, ledgerUC, logger)
	selfUC := usecase.NewSelfServiceUseCase(planUC, paymentUC, ledgerUC, state, logger)
	routerUC := usecase.NewRouterUseCase(usecase.RouterDeps{
		Users:     userUC,
		State:     state,
		Plans:     planUC,
		Ledger:    ledgerUC,
		Payments:  paymentUC,
		Broadcast: broadcastUC,
		Messages:  st.messages,
		Bot:       messenger,
		Loc:       translator,
	}, operatorID, operatorName, logger)
	adminUC := usecase.NewAdminUseCase(usecase.AdminDeps{
		Users:     userUC,
		Plans:     planUC,
		Ledger:    ledgerUC,
		Payments:  paymentUC,
		Broadcast: broadcastUC,
		Stats:     statsUC,
		State:     state,
		Messages:  st.messages,
	}, operatorID, logger)

	facade := application.NewBotFacade(routerUC, adminUC, selfUC, userUC, planUC, translator, operatorID, operatorName, logger)

	errCh := make(chan error, 2)

	// ---- Telegram ----
	if botAdapter != nil {
		botAdapter.SetHandler(facade)
		go func() {
			if err := botAdapter.StartPolling(ctx); err != nil {
				errCh <- fmt.Errorf("telegram polling: %w", err)
			}
		}()
	}

	// ---- Admin API ----
	var srv *web.Server
	if cfg.Admin.Port > 0 {
		var auth *web.AuthManager
		if cfg.Admin.JWTSecret != "" && cfg.Admin.APIKey != "" {
			auth = web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.TokenTTL)
		} else {
			logger.Warn().Msg("admin.api_key or admin.jwt_secret missing; admin api rejects all calls")
		}
		srv = web.NewServer(adminUC, operatorID, operatorName, cfg.Admin.APIKey, auth, logger)
		go func() {
			if err := srv.Start(fmt.Sprintf(":%d", cfg.Admin.Port)); err != nil {
				errCh <- err
			}
		}()
	}

	// ---- Expiry reporter ----
	reporter := sched.NewExpiryReporter(cfg.Scheduler.ExpiryReportInterval, ledgerUC, logger)
	go func() { _ = reporter.Run(ctx) }()

	logger.Info().
		Str("mode", cfg.Bot.Mode).
		Str("state_backend", cfg.State.Backend).
		Bool("postgres", st.pool != nil).
		Bool("redis", rdb != nil).
		Msg("relay started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case runErr = <-errCh:
	}

	if botAdapter != nil {
		botAdapter.StopPolling()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("admin api shutdown")
		}
	}
	return runErr
}

// openStore uses Postgres when configured; developer mode may run on the
// in-memory repositories instead.
func openStore(ctx context.Context, cfg *config.Config, rdb red.RedisClient, logger *zerolog.Logger) (*store, error) {
	if cfg.Database.URL == "" {
		logger.Warn().Msg("database.url empty; using in-memory storage")
		return &store{
			tx:       memory.NewTxManager(),
			users:    memory.NewUserRepo(),
			plans:    memory.NewPlanRepo(),
			keys:     memory.NewKeyRepo(),
			requests: memory.NewPaymentRequestRepo(),
			info:     memory.NewPaymentInfoRepo(),
			messages: memory.NewMessageLogRepo(),
		}, nil
	}

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pg.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cipher, err := security.NewTokenCipher(cfg.Security.EncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption: %w", err)
	}
	if cfg.Security.EncryptionKey == "" {
		logger.Warn().Msg("security.encryption_key not set; clone tokens stored in plain text")
	}

	var (
		users repository.UserRepository = pg.NewPostgresUserRepo(pool)
		plans repository.PlanRepository = pg.NewPostgresPlanRepo(pool)
	)
	if rdb != nil {
		users = pg.NewUserRepoCacheDecorator(users, rdb, cfg.Redis.TTL)
		plans = pg.NewPlanRepoCacheDecorator(plans, rdb, cfg.Redis.TTL)
	}
	return &store{
		tx:       pg.NewTxManager(pool),
		users:    users,
		plans:    plans,
		keys:     pg.NewPostgresAuthKeyRepo(pool, cipher),
		requests: pg.NewPostgresPaymentRequestRepo(pool),
		info:     pg.NewPostgresPaymentInfoRepo(pool),
		messages: pg.NewPostgresMessageLogRepo(pool),
		pool:     pool,
	}, nil
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ObservePool(pool.Stat())
		}
	}
}
