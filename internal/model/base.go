package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Money is an amount in minor currency units (KES cents). Integer
// arithmetic keeps the commission split exact.
type Money int64

// SplitCommission returns the platform commission and provider payout for
// the amount at the given rate. The two always sum back to the amount; the
// commission is rounded to the nearest minor unit.
func (m Money) SplitCommission(rate float64) (commission, payout Money) {
	commission = Money(int64(float64(m)*rate + 0.5))
	payout = m - commission
	return commission, payout
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}
