package documents

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/currency"
	"github.com/odyssey-erp/fincore/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// ValidateLines checks quantities, prices and tax rates.
func ValidateLines(lines []Line) error {
	for i, l := range lines {
		if l.Description == "" {
			return shared.Validationf("line %d: description required", i+1)
		}
		if !l.Quantity.IsPositive() {
			return shared.Validationf("line %d: quantity must be positive", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return shared.Validationf("line %d: unit price cannot be negative", i+1)
		}
		if l.TaxRate.IsNegative() || l.TaxRate.GreaterThan(hundred) {
			return shared.Validationf("line %d: tax rate must be between 0 and 100", i+1)
		}
	}
	return nil
}

// RecalculateTotals derives subtotal, tax and total from the lines, each rounded to cents.
func RecalculateTotals(lines []Line) Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, l := range lines {
		net := l.Quantity.Mul(l.UnitPrice)
		subtotal = subtotal.Add(net)
		tax = tax.Add(net.Mul(l.TaxRate).Div(hundred))
	}
	subtotal = subtotal.Round(2)
	tax = tax.Round(2)
	return Totals{Subtotal: subtotal, TaxAmount: tax, TotalAmount: subtotal.Add(tax)}
}

// Recompute refreshes the derived totals and the USD equivalent using the frozen rate.
func (d *Document) Recompute() {
	d.Totals = RecalculateTotals(d.Lines)
	d.TotalUSD = currency.ToUSD(d.TotalAmount, d.ExchangeRate)
}
