package documents

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func sampleBill() Document {
	d := Document{
		Kind:            KindPurchaseBill,
		PartyType:       ledger.PartySupplier,
		PartyID:         7,
		Lines:           []Line{{Description: "Freight", Quantity: dec("2"), UnitPrice: dec("14000")}},
		ExchangeRate:    dec("280"),
		Currency:        "PKR",
		Status:          StatusUnpaid,
		TransactionDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Notes:           "initial",
		Workflow:        workflow.NewState(),
	}
	d.Recompute()
	return d
}

func TestRecalculateTotals(t *testing.T) {
	totals := RecalculateTotals([]Line{
		{Description: "a", Quantity: dec("3"), UnitPrice: dec("10.005"), TaxRate: dec("17")},
		{Description: "b", Quantity: dec("1"), UnitPrice: dec("100")},
	})
	assert.Equal(t, "130.02", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "5.10", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "135.12", totals.TotalAmount.StringFixed(2))
}

func TestRecomputeUsesFrozenRate(t *testing.T) {
	d := sampleBill()
	assert.Equal(t, "28000.00", d.TotalAmount.StringFixed(2))
	assert.Equal(t, "100.00", d.TotalUSD.StringFixed(2))
}

func TestValidateLines(t *testing.T) {
	assert.NoError(t, ValidateLines([]Line{{Description: "x", Quantity: dec("1"), UnitPrice: dec("0")}}))
	assert.ErrorIs(t, ValidateLines([]Line{{Description: "x", Quantity: dec("0"), UnitPrice: dec("1")}}), shared.ErrValidation)
	assert.ErrorIs(t, ValidateLines([]Line{{Description: "", Quantity: dec("1")}}), shared.ErrValidation)
	assert.ErrorIs(t, ValidateLines([]Line{{Description: "x", Quantity: dec("1"), TaxRate: dec("101")}}), shared.ErrValidation)
}

func TestApplyEditRecomputesAndListsDerivedFields(t *testing.T) {
	d := sampleBill()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"lines":[{"description":"Freight","quantity":3,"unitPrice":"14000"}],"notes":"initial"}`), &body))

	next, fields, err := ApplyEdit(d, []string{"lines", "notes"}, body)
	require.NoError(t, err)
	assert.Equal(t, []string{"lines", "notes", "subtotal", "taxAmount", "totalAmount", "priceUSD"}, fields)
	assert.Equal(t, "42000.00", next.TotalAmount.StringFixed(2))
	assert.Equal(t, "150.00", next.TotalUSD.StringFixed(2))
	assert.Equal(t, "28000.00", d.TotalAmount.StringFixed(2), "original untouched")

	changes, err := workflow.Diff(d.Snapshot(), next.Snapshot(), fields)
	require.NoError(t, err)
	var changed []string
	for _, c := range changes {
		changed = append(changed, c.Field)
	}
	assert.Equal(t, []string{"lines", "subtotal", "totalAmount", "priceUSD"}, changed)
}

func TestApplyEditRejectsImmutableFields(t *testing.T) {
	d := sampleBill()
	for _, field := range []string{"currency", "exchangeRateUsed", "countryId", "totalAmount", "number"} {
		_, _, err := ApplyEdit(d, []string{field}, map[string]any{field: "x"})
		assert.ErrorIs(t, err, shared.ErrValidation, field)
	}
}

func TestApplyEditRequiresLinesForFinancialKinds(t *testing.T) {
	_, _, err := ApplyEdit(sampleBill(), []string{"lines"}, map[string]any{"lines": []any{}})
	assert.ErrorIs(t, err, shared.ErrValidation)

	shipment := Document{Kind: KindShipment, Workflow: workflow.NewState()}
	next, _, err := ApplyEdit(shipment, []string{"lines"}, map[string]any{"lines": []any{}})
	require.NoError(t, err)
	assert.True(t, next.TotalAmount.IsZero())
}

func TestApplyEditDates(t *testing.T) {
	d := sampleBill()
	next, _, err := ApplyEdit(d, []string{"dueDate"}, map[string]any{"dueDate": "2025-04-01T00:00:00Z"})
	require.NoError(t, err)
	require.NotNil(t, next.DueDate)
	assert.Equal(t, time.April, next.DueDate.Month())

	_, _, err = ApplyEdit(d, []string{"transactionDate"}, map[string]any{"transactionDate": "not a date"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = ApplyEdit(d, []string{"transactionDate"}, map[string]any{"transactionDate": nil})
	assert.ErrorIs(t, err, shared.ErrValidation)

	next, _, err = ApplyEdit(d, []string{"dueDate"}, map[string]any{"dueDate": nil})
	require.NoError(t, err)
	assert.Nil(t, next.DueDate)
}

func TestApplyEditAcceptsDateOnly(t *testing.T) {
	d := sampleBill()
	next, _, err := ApplyEdit(d, []string{"transactionDate", "dueDate"}, map[string]any{
		"transactionDate": "2025-03-05",
		"dueDate":         "2025-04-30",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), next.TransactionDate)
	require.NotNil(t, next.DueDate)
	assert.Equal(t, time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC), *next.DueDate)
}

func TestApplyEditSameInstantOtherZoneHasNoChange(t *testing.T) {
	d := sampleBill()
	d.TransactionDate = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	next, fields, err := ApplyEdit(d, []string{"transactionDate"}, map[string]any{"transactionDate": "2025-03-01T14:00:00+05:00"})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, next.TransactionDate.Location())

	changes, err := workflow.Diff(d.Snapshot(), next.Snapshot(), fields)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestKindMetadata(t *testing.T) {
	k, err := ParseKind("clearingJob")
	require.NoError(t, err)
	assert.Equal(t, "CLR", k.Prefix())
	assert.Equal(t, "clearing_jobs", k.Table())
	assert.False(t, k.Financial())
	assert.Equal(t, ledger.RefClearingJob, k.ReferenceType())
	assert.Equal(t, ledger.PartySupplier, KindPurchaseBill.PartyType())

	_, err = ParseKind("receipt")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry(map[Kind]Store{KindInvoice: NewPGStore(nil, KindInvoice)})
	store, err := reg.For(KindInvoice)
	require.NoError(t, err)
	assert.NotNil(t, store)
	_, err = reg.For(KindShipment)
	assert.ErrorIs(t, err, shared.ErrValidation)
}
