package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"webstore-backend/internal/config"

	"github.com/shopspring/decimal"
)

// RateSource fetches exchange rates versus the store's base currency.
type RateSource interface {
	FetchRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

type httpRateSource struct {
	client *http.Client
	url    string
	base   string
}

// NewHTTPRateSource returns a RateSource backed by an external HTTP rate API.
// The fetch timeout is bounded by the configured value.
func NewHTTPRateSource(cfg *config.Currency) RateSource {
	return &httpRateSource{
		client: &http.Client{Timeout: cfg.FetchTimeout},
		url:    cfg.RatesURL,
		base:   strings.ToUpper(cfg.BaseCurrency),
	}
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (s *httpRateSource) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rates request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var payload ratesResponse

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}

	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("rate source returned no rates")
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates)+1)
	for code, rate := range payload.Rates {
		rates[strings.ToUpper(code)] = rate
	}

	// The base currency always converts 1:1.
	rates[s.base] = decimal.NewFromInt(1)

	return rates, nil
}
