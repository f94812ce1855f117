// Package currency resolves and freezes a country's currency snapshot.
package currency

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the single reporting currency every amount converts into.
const BaseCurrency = "USD"

// Country carries the currency settings of one operating country.
// ExchangeRate is local units per one USD.
type Country struct {
	ID             int64
	Code           string
	CurrencyCode   string
	CurrencySymbol string
	ExchangeRate   decimal.Decimal
	IsActive       bool
}

// Snapshot is the frozen currency state stamped onto a document or entry.
type Snapshot struct {
	CountryID      int64           `json:"country_id"`
	Currency       string          `json:"currency"`
	CurrencySymbol string          `json:"currency_symbol"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	TakenAt        time.Time       `json:"taken_at"`
}

// ToUSD converts a local amount using the frozen rate, rounded to cents.
func (s Snapshot) ToUSD(amount decimal.Decimal) decimal.Decimal {
	return ToUSD(amount, s.ExchangeRate)
}

// ToUSD divides amount by rate and rounds to two decimals. A non-positive rate yields zero.
func ToUSD(amount, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return amount.DivRound(rate, 8).Round(2)
}
