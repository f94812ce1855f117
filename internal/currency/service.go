package currency

import (
	"context"
	"fmt"
	"strings"
	"time"

	xcurrency "golang.org/x/text/currency"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// Repository loads country currency settings.
type Repository interface {
	GetCountry(ctx context.Context, countryID int64) (Country, error)
}

// Provider produces currency snapshots at the instant of creation.
type Provider struct {
	repo Repository
	now  func() time.Time
}

// NewProvider constructs a Provider.
func NewProvider(repo Repository) *Provider {
	return &Provider{repo: repo, now: time.Now}
}

// WithNow overrides the clock, primarily for tests.
func (p *Provider) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Snapshot returns the country's current currency and rate. Missing or inactive
// countries fail with ErrNotFound.
func (p *Provider) Snapshot(ctx context.Context, countryID int64) (Snapshot, error) {
	country, err := p.repo.GetCountry(ctx, countryID)
	if err != nil {
		return Snapshot{}, err
	}
	if !country.IsActive {
		return Snapshot{}, shared.NotFoundf("country %d not found", countryID)
	}
	code := strings.ToUpper(strings.TrimSpace(country.CurrencyCode))
	if code == "" {
		return Snapshot{}, shared.Validationf("country %d has no currency", countryID)
	}
	if !country.ExchangeRate.IsPositive() {
		return Snapshot{}, shared.Validationf("country %d exchange rate must be positive", countryID)
	}
	symbol := country.CurrencySymbol
	if symbol == "" {
		symbol = symbolFor(code)
	}
	return Snapshot{
		CountryID:      countryID,
		Currency:       code,
		CurrencySymbol: symbol,
		ExchangeRate:   country.ExchangeRate,
		TakenAt:        p.now().UTC(),
	}, nil
}

func symbolFor(code string) string {
	unit, err := xcurrency.ParseISO(code)
	if err != nil {
		return code
	}
	return fmt.Sprint(xcurrency.NarrowSymbol(unit))
}
