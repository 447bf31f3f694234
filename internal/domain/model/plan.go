package model

import (
	"math"
	"strings"
	"time"

	"telegram-relay-subscription/internal/domain"

	"github.com/google/uuid"
)

// Plan is a purchasable licence offering: a name, a duration in whole days
// and a price shown to buyers.
type Plan struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DurationDays int       `json:"duration_days"`
	Price        float64   `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// ExpiryFrom is the end of the activation window that starts at t. Calendar
// days are added so long plans cannot overflow a time.Duration.
func (p *Plan) ExpiryFrom(t time.Time) time.Time {
	return t.AddDate(0, 0, p.DurationDays)
}

// ValidPrice rejects negative, NaN and infinite prices.
func ValidPrice(price float64) bool {
	return price >= 0 && !math.IsInf(price, 0) && !math.IsNaN(price)
}

// NewPlan validates and constructs a plan. A zero-day plan is legal and
// yields keys that expire at the moment of activation.
func NewPlan(id, name string, durationDays int, price float64) (*Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" || durationDays < 0 || !ValidPrice(price) {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Plan{
		ID:           id,
		Name:         name,
		DurationDays: durationDays,
		Price:        price,
		CreatedAt:    time.Now(),
	}, nil
}
