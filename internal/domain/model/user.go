package model

import (
	"strings"
	"time"

	"telegram-relay-subscription/internal/domain"
)

// User is a Telegram account that has contacted the bot at least once.
// The Telegram id doubles as the primary key; users are never hard-deleted.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	IsBanned     bool      `json:"is_banned"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func NewUser(id int64, username, firstName string) (*User, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           id,
		Username:     strings.TrimPrefix(strings.TrimSpace(username), "@"),
		FirstName:    strings.TrimSpace(firstName),
		JoinedAt:     now,
		LastActiveAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == 0 }
func (u *User) Touch()       { u.LastActiveAt = time.Now() }

// Handle renders the username the way envelopes show it.
func (u *User) Handle() string {
	if u == nil || u.Username == "" {
		return "no_username"
	}
	return "@" + u.Username
}

// DisplayName falls back to the handle when Telegram gave us no first name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Handle()
}
