package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSnapshot holds one fetch of exchange rates versus the store's base
// currency. A snapshot is immutable once cached and replaced wholesale on
// refresh.
type RateSnapshot struct {
	FetchedAt time.Time                  `json:"fetched_at"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

func (s *RateSnapshot) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.FetchedAt) >= ttl
}
