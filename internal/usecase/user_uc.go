package usecase

import (
	"context"
	"errors"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
	"telegram-relay-subscription/internal/domain/ports/repository"
	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user-related operations used by bot/admin flows.
type UserUseCase interface {
	// RegisterOrFetch upserts the sender on first contact and refreshes the
	// profile of known, non-banned users. It never touches last-active.
	RegisterOrFetch(ctx context.Context, sender *model.User) (*model.User, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Touch(ctx context.Context, id int64) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	List(ctx context.Context, offset, limit int) ([]*model.User, error)
	ListBanned(ctx context.Context, limit int) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
	CountBanned(ctx context.Context) (int, error)
}

type userUC struct {
	users repository.UserRepository
	now   Clock
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, now: time.Now, log: logger}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, sender *model.User) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	existing, err := u.users.FindByID(ctx, repository.NoTX, sender.ID)
	switch {
	case err == nil:
		if existing.IsBanned {
			return existing, nil
		}
		if existing.Username == sender.Username && existing.FirstName == sender.FirstName {
			return existing, nil
		}
		existing.Username = sender.Username
		existing.FirstName = sender.FirstName
		if err := u.users.Save(ctx, repository.NoTX, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, domain.ErrNotFound):
		nu, err := model.NewUser(sender.ID, sender.Username, sender.FirstName)
		if err != nil {
			return nil, err
		}
		nu.JoinedAt = u.now()
		nu.LastActiveAt = nu.JoinedAt
		if err := u.users.Save(ctx, repository.NoTX, nu); err != nil {
			return nil, err
		}
		metrics.IncUsersRegistered()
		u.log.Info().Int64("tg_id", nu.ID).Msg("new user registered")
		return nu, nil
	default:
		return nil, err
	}
}

func (u *userUC) Get(ctx context.Context, id int64) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) Touch(ctx context.Context, id int64) error {
	return u.users.TouchLastActive(ctx, repository.NoTX, id, u.now())
}

func (u *userUC) SetBanned(ctx context.Context, id int64, banned bool) error {
	if err := u.users.SetBanned(ctx, repository.NoTX, id, banned); err != nil {
		return err
	}
	u.log.Info().Int64("tg_id", id).Bool("banned", banned).Msg("ban state changed")
	return nil
}

func (u *userUC) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	return u.users.List(ctx, repository.NoTX, offset, limit)
}

func (u *userUC) ListBanned(ctx context.Context, limit int) ([]*model.User, error) {
	return u.users.ListBanned(ctx, repository.NoTX, limit)
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	return u.users.CountUsers(ctx, repository.NoTX)
}

func (u *userUC) CountBanned(ctx context.Context) (int, error) {
	return u.users.CountBanned(ctx, repository.NoTX)
}
