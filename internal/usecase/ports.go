package usecase

import (
	"context"
	"time"
)

// Localizer renders user-facing texts. Implemented by i18n.Translator.
type Localizer interface {
	T(key string, args ...interface{}) string
	Pool(key string) []string
}

// Locker guards work that must not overlap, such as broadcasts started from
// the bot and the admin API at the same time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Clock is swapped in tests to pin "now".
type Clock func() time.Time
