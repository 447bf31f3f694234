package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/adapter"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"
	"telegram-relay-subscription/internal/infra/worker"

	"github.com/rs/zerolog"
)

const (
	broadcastLockKey = "lock:broadcast"
	broadcastLockTTL = 15 * time.Minute
)

var _ BroadcastUseCase = (*broadcastUC)(nil)

// TaskRunner runs fan-out work with bounded parallelism. *worker.Pool.
type TaskRunner interface {
	SubmitWait(ctx context.Context, task worker.Task) error
}

type BroadcastUseCase interface {
	// Broadcast sends content to every non-banned user known at call time.
	// Per-recipient failures are counted, never returned.
	Broadcast(ctx context.Context, content model.Content) (BroadcastResult, error)
}

// BroadcastResult always satisfies Success+Failed == Audience.
type BroadcastResult struct {
	Audience int
	Success  int
	Failed   int
	Elapsed  time.Duration
}

type broadcastUC struct {
	users  repository.UserRepository
	bot    adapter.Messenger
	runner TaskRunner
	locker Locker
	loc    Localizer

	operatorName string
	interval     time.Duration // zero disables throttling
	log          *zerolog.Logger
}

// NewBroadcastUseCase wires the dispatcher. locker may be nil when only one
// process can start broadcasts.
func NewBroadcastUseCase(
	users repository.UserRepository,
	bot adapter.Messenger,
	runner TaskRunner,
	locker Locker,
	loc Localizer,
	operatorName string,
	ratePerSecond int,
	logger *zerolog.Logger,
) *broadcastUC {
	var interval time.Duration
	if ratePerSecond > 0 {
		interval = time.Second / time.Duration(ratePerSecond)
	}
	return &broadcastUC{
		users:        users,
		bot:          bot,
		runner:       runner,
		locker:       locker,
		loc:          loc,
		operatorName: operatorName,
		interval:     interval,
		log:          logger,
	}
}

func (b *broadcastUC) Broadcast(ctx context.Context, content model.Content) (BroadcastResult, error) {
	defer logging.TraceDuration(b.log, "BroadcastUC.Broadcast")()

	if !content.Broadcastable() {
		return BroadcastResult{}, domain.ErrUnsupportedContent
	}
	if b.locker != nil {
		token, err := b.locker.TryLock(ctx, broadcastLockKey, broadcastLockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			return BroadcastResult{}, domain.ErrBroadcastInProgress
		}
		if err != nil {
			return BroadcastResult{}, err
		}
		defer func() {
			if err := b.locker.Unlock(context.WithoutCancel(ctx), broadcastLockKey, token); err != nil {
				b.log.Warn().Err(err).Msg("broadcast unlock failed")
			}
		}()
	}

	audience, err := b.users.ListAudience(ctx, repository.NoTX)
	if err != nil {
		return BroadcastResult{}, err
	}

	start := time.Now()
	var (
		wg              sync.WaitGroup
		success, failed atomic.Int64
	)
	var tick <-chan time.Time
	if b.interval > 0 {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i, u := range audience {
		if tick != nil && i > 0 {
			select {
			case <-tick:
			case <-ctx.Done():
			}
		}
		chatID := u.ID
		wg.Add(1)
		task := func(ctx context.Context) error {
			defer wg.Done()
			if err := b.deliver(ctx, chatID, content); err != nil {
				failed.Add(1)
				metrics.IncBroadcastDelivery("failed")
				b.log.Debug().Err(err).Int64("tg_id", chatID).Msg("broadcast delivery failed")
				return err
			}
			success.Add(1)
			metrics.IncBroadcastDelivery("success")
			return nil
		}
		if err := b.runner.SubmitWait(ctx, task); err != nil {
			wg.Done()
			failed.Add(1)
			metrics.IncBroadcastDelivery("failed")
		}
	}
	wg.Wait()

	res := BroadcastResult{
		Audience: len(audience),
		Success:  int(success.Load()),
		Failed:   int(failed.Load()),
		Elapsed:  time.Since(start),
	}
	metrics.ObserveBroadcast(res.Elapsed.Seconds())
	b.log.Info().Int("audience", res.Audience).Int("success", res.Success).Int("failed", res.Failed).
		Dur("elapsed", res.Elapsed).Msg("broadcast finished")
	return res, nil
}

func (b *broadcastUC) deliver(ctx context.Context, chatID int64, c model.Content) error {
	if c.Kind == model.ContentPoll {
		return b.bot.Forward(ctx, chatID, c.FromChatID, c.MessageID)
	}
	msg := envelope(b.loc, c.Kind, "broadcast_envelope", c.Body(), b.operatorName)
	if c.Kind == model.ContentText {
		return b.bot.SendText(ctx, chatID, msg)
	}
	return b.bot.SendContent(ctx, chatID, c, msg)
}
