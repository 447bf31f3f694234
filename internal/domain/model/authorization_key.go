package model

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"time"

	"telegram-relay-subscription/internal/domain"
)

// keyEntropyBytes gives 128 bits of entropy; base64url renders it as 22 chars.
const keyEntropyBytes = 16

type KeyStatus string

const (
	KeyStatusIssued    KeyStatus = "issued"
	KeyStatusActivated KeyStatus = "activated"
	KeyStatusExpired   KeyStatus = "expired"
	KeyStatusRevoked   KeyStatus = "revoked"
)

// AuthorizationKey is a licence redeemable for one clone deployment.
// ActivatedAt and ExpiresAt are either both nil (issued) or both set (activated).
type AuthorizationKey struct {
	Key         string     `json:"key"`
	UserID      int64      `json:"user_id"`
	PlanID      string     `json:"plan_id"`
	Activated   bool       `json:"activated"`
	CloneToken  *string    `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"active"`
}

// NewAuthorizationKey issues a fresh, unactivated key for user and plan.
func NewAuthorizationKey(userID int64, planID string) (*AuthorizationKey, error) {
	if userID <= 0 || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	token, err := generateKeyToken()
	if err != nil {
		return nil, err
	}
	return &AuthorizationKey{
		Key:       token,
		UserID:    userID,
		PlanID:    planID,
		CreatedAt: time.Now(),
		Active:    true,
	}, nil
}

func generateKeyToken() (string, error) {
	buf := make([]byte, keyEntropyBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Activate binds the clone token and starts the expiry clock at now.
// Re-activating an activated key overwrites both; revoked keys stay dead.
func (k *AuthorizationKey) Activate(cloneToken string, plan *Plan, now time.Time) error {
	if plan.IsZero() || cloneToken == "" {
		return domain.ErrInvalidArgument
	}
	if !k.Active {
		return domain.ErrKeyRevoked
	}
	expires := plan.ExpiryFrom(now)
	activatedAt := now
	k.Activated = true
	k.CloneToken = &cloneToken
	k.ActivatedAt = &activatedAt
	k.ExpiresAt = &expires
	return nil
}

// Revoke is one-way; calling it on a revoked key changes nothing.
func (k *AuthorizationKey) Revoke() { k.Active = false }

func (k *AuthorizationKey) HasClone() bool { return k.CloneToken != nil && *k.CloneToken != "" }

// IsExpired reports whether the computed expiry has passed. Nothing enforces it.
func (k *AuthorizationKey) IsExpired(now time.Time) bool {
	return k.Activated && k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

func (k *AuthorizationKey) Status(now time.Time) KeyStatus {
	switch {
	case !k.Active:
		return KeyStatusRevoked
	case !k.Activated:
		return KeyStatusIssued
	case k.IsExpired(now):
		return KeyStatusExpired
	default:
		return KeyStatusActivated
	}
}
