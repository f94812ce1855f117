package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/shared"
)

type scopedLedgerRow struct {
	LedgerRow
	BranchID int64
}

type memoryRepo struct {
	mu      sync.Mutex
	ledger  []scopedLedgerRow
	docs    []DocumentRow
	queries int
}

func (m *memoryRepo) add(row scopedLedgerRow) {
	m.mu.Lock()
	m.ledger = append(m.ledger, row)
	m.mu.Unlock()
}

func (m *memoryRepo) LedgerTotals(_ context.Context, f Filter) ([]LedgerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	var out []LedgerRow
	for _, row := range m.ledger {
		if f.Scope.Allows(row.CountryID, row.BranchID) {
			out = append(out, row.LedgerRow)
		}
	}
	return out, nil
}

func (m *memoryRepo) DocumentTotals(_ context.Context, f Filter) ([]DocumentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DocumentRow
	for _, row := range m.docs {
		if f.Scope.CountryID == nil || *f.Scope.CountryID == row.CountryID {
			out = append(out, row)
		}
	}
	return out, nil
}

func usd(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ledgerRow(country, branch int64, pt ledger.PartyType, et ledger.EntryType, debit, credit string) scopedLedgerRow {
	return scopedLedgerRow{
		LedgerRow: LedgerRow{CountryID: country, PartyType: pt, EntryType: et, Count: 1, DebitUSD: usd(debit), CreditUSD: usd(credit)},
		BranchID:  branch,
	}
}

func TestBuildSummaryFolds(t *testing.T) {
	rows := []LedgerRow{
		{CountryID: 1, PartyType: ledger.PartyCustomer, EntryType: ledger.EntryInvoice, Count: 2, DebitUSD: usd("500")},
		{CountryID: 1, PartyType: ledger.PartyCustomer, EntryType: ledger.EntryPayment, Count: 1, CreditUSD: usd("200")},
		{CountryID: 2, PartyType: ledger.PartySupplier, EntryType: ledger.EntryPurchase, Count: 1, CreditUSD: usd("500")},
		{CountryID: 2, PartyType: ledger.PartySupplier, EntryType: ledger.EntryPayment, Count: 1, DebitUSD: usd("200")},
	}
	docs := []DocumentRow{
		{CountryID: 1, Kind: "invoice", WorkflowStatus: "Approved", Count: 2, TotalUSD: usd("500")},
		{CountryID: 2, Kind: "invoice", WorkflowStatus: "Approved", Count: 1, TotalUSD: usd("10")},
		{CountryID: 2, Kind: "purchaseBill", WorkflowStatus: "Draft", Count: 3},
	}

	s := BuildSummary(rows, docs)
	assert.True(t, s.ReceivablesUSD.Equal(usd("300")))
	assert.True(t, s.PayablesUSD.Equal(usd("300")))
	assert.True(t, s.SalesUSD.Equal(usd("500")))
	assert.True(t, s.PurchasesUSD.Equal(usd("500")))
	assert.True(t, s.PaymentsReceivedUSD.Equal(usd("200")))
	assert.True(t, s.PaymentsMadeUSD.Equal(usd("200")))
	assert.Equal(t, int64(5), s.LedgerEntries)
	assert.Equal(t, int64(6), s.Documents)
	require.Len(t, s.Breakdown, 2)
	assert.Equal(t, "invoice", s.Breakdown[0].Kind)
	assert.Equal(t, int64(3), s.Breakdown[0].Count)
	assert.True(t, s.Breakdown[0].TotalUSD.Equal(usd("510")))

	c := BuildConsolidation(rows, docs)
	require.Len(t, c.Countries, 2)
	assert.Equal(t, int64(1), c.Countries[0].CountryID)
	assert.True(t, c.Countries[0].ReceivablesUSD.Equal(usd("300")))
	assert.True(t, c.Countries[1].PayablesUSD.Equal(usd("300")))
	assert.Equal(t, int64(4), c.Countries[1].Documents)
	assert.True(t, c.Total.ReceivablesUSD.Equal(usd("300")))
	assert.Equal(t, int64(6), c.Total.Documents)
}

func TestBuildSummaryToleratesEmptyInput(t *testing.T) {
	s := BuildSummary(nil, nil)
	assert.True(t, s.ReceivablesUSD.IsZero())
	assert.Empty(t, s.Breakdown)
	assert.Empty(t, BuildConsolidation(nil, nil).Countries)
}

func newReportService() (*Service, *memoryRepo, *Cache) {
	repo := &memoryRepo{}
	cache := NewCache(DefaultTTL)
	svc := NewService(repo, cache, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) })
	return svc, repo, cache
}

func TestSummaryIsScopedByRole(t *testing.T) {
	svc, repo, _ := newReportService()
	repo.add(ledgerRow(1, 10, ledger.PartyCustomer, ledger.EntryInvoice, "100", "0"))
	repo.add(ledgerRow(1, 11, ledger.PartyCustomer, ledger.EntryInvoice, "40", "0"))
	repo.add(ledgerRow(2, 20, ledger.PartyCustomer, ledger.EntryInvoice, "7", "0"))
	ctx := context.Background()

	staff := shared.Caller{UserID: 1, Role: shared.RoleStaff, CountryID: shared.Int64Ptr(1), BranchID: shared.Int64Ptr(10)}
	country := shared.Caller{UserID: 2, Role: shared.RoleCountryAdmin, CountryID: shared.Int64Ptr(1)}
	super := shared.Caller{UserID: 3, Role: shared.RoleSuperAdmin}

	s, err := svc.GetSummary(ctx, staff, DateRange{})
	require.NoError(t, err)
	assert.True(t, s.SalesUSD.Equal(usd("100")))

	s, err = svc.GetSummary(ctx, country, DateRange{})
	require.NoError(t, err)
	assert.True(t, s.SalesUSD.Equal(usd("140")))

	s, err = svc.GetSummary(ctx, super, DateRange{})
	require.NoError(t, err)
	assert.True(t, s.SalesUSD.Equal(usd("147")))

	c, err := svc.GetCountryConsolidation(ctx, super, DateRange{})
	require.NoError(t, err)
	require.Len(t, c.Countries, 2)
}

func TestSummaryServedFromCacheUntilInvalidated(t *testing.T) {
	svc, repo, cache := newReportService()
	repo.add(ledgerRow(1, 10, ledger.PartySupplier, ledger.EntryPurchase, "0", "500"))
	ctx := context.Background()
	caller := shared.Caller{UserID: 1, Role: shared.RoleBranchAdmin, CountryID: shared.Int64Ptr(1), BranchID: shared.Int64Ptr(10)}

	first, err := svc.GetSummary(ctx, caller, DateRange{})
	require.NoError(t, err)
	assert.True(t, first.PayablesUSD.Equal(usd("500")))

	repo.add(ledgerRow(1, 10, ledger.PartySupplier, ledger.EntryPayment, "200", "0"))
	cached, err := svc.GetSummary(ctx, caller, DateRange{})
	require.NoError(t, err)
	assert.True(t, cached.PayablesUSD.Equal(usd("500")))
	assert.Equal(t, 1, repo.queries)

	NewInvalidator(cache, nil, nil, nil, nil).InvalidateAll(ctx)
	fresh, err := svc.GetSummary(ctx, caller, DateRange{})
	require.NoError(t, err)
	assert.True(t, fresh.PayablesUSD.Equal(usd("300")))
	assert.True(t, fresh.PaymentsMadeUSD.Equal(usd("200")))
	assert.Equal(t, 2, repo.queries)
}

func TestSummaryRejectsInvertedRange(t *testing.T) {
	svc, _, _ := newReportService()
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	caller := shared.Caller{UserID: 1, Role: shared.RoleSuperAdmin}

	_, err := svc.GetSummary(context.Background(), caller, DateRange{From: &from, To: &to})
	require.ErrorIs(t, err, shared.ErrValidation)
}
