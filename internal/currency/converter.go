package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"webstore-backend/internal/config"
	"webstore-backend/internal/metrics"
	"webstore-backend/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownCurrency is returned when the cached snapshot carries no rate for
// the requested currency.
var ErrUnknownCurrency = errors.New("unknown currency")

// Converter converts base-currency amounts into a target currency using a
// TTL-cached rate snapshot. The snapshot is process-wide state: populated on
// miss, replaced wholesale on expiry, never invalidated early. Concurrent
// cache misses are coalesced into a single fetch; a failed fetch propagates
// to every waiting caller with no stale fallback.
type Converter struct {
	source RateSource
	base   string
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *models.RateSnapshot
	sfg      singleflight.Group
}

// NewConverter builds a Converter. The clock is injected so expiry is
// testable; production callers pass time.Now.
func NewConverter(source RateSource, cfg *config.Currency, clock func() time.Time) *Converter {
	return &Converter{
		source: source,
		base:   strings.ToUpper(cfg.BaseCurrency),
		ttl:    cfg.CacheTTL,
		now:    clock,
	}
}

func (c *Converter) BaseCurrency() string {
	return c.base
}

// Convert returns amount expressed in targetCurrency. Amounts in the store's
// base currency are returned unchanged without touching the rate cache.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, targetCurrency string) (decimal.Decimal, error) {

	target := strings.ToUpper(targetCurrency)

	if target == "" || target == c.base {
		return amount, nil
	}

	snapshot, err := c.currentSnapshot(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	rate, ok := snapshot.Rates[target]
	if !ok || rate.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, target)
	}

	return amount.DivRound(rate, 2), nil
}

func (c *Converter) currentSnapshot(ctx context.Context) (*models.RateSnapshot, error) {

	c.mu.RLock()
	snapshot := c.snapshot
	c.mu.RUnlock()

	if snapshot != nil && !snapshot.Expired(c.now(), c.ttl) {
		return snapshot, nil
	}

	v, err, _ := c.sfg.Do("rates", func() (any, error) {

		// Another flight may have refreshed while this caller waited.
		c.mu.RLock()
		current := c.snapshot
		c.mu.RUnlock()

		if current != nil && !current.Expired(c.now(), c.ttl) {
			return current, nil
		}

		rates, err := c.source.FetchRates(ctx)
		if err != nil {
			metrics.RateRefreshesTotal.WithLabelValues("failure").Inc()

			return nil, fmt.Errorf("failed to refresh exchange rates: %w", err)
		}

		metrics.RateRefreshesTotal.WithLabelValues("success").Inc()

		fresh := &models.RateSnapshot{
			FetchedAt: c.now(),
			Rates:     rates,
		}

		c.mu.Lock()
		c.snapshot = fresh
		c.mu.Unlock()

		return fresh, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*models.RateSnapshot), nil
}
