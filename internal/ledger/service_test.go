package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fincore/internal/currency"
	"github.com/odyssey-erp/fincore/internal/shared"
)

type memoryLedgerRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memoryLedgerRepo) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryLedgerRepo) ListByParty(_ context.Context, pt PartyType, id int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.PartyType == pt && e.PartyID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryLedgerRepo) PartyTotals(_ context.Context, pt PartyType, scope shared.ScopeFilter) ([]PartyTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var scoped []Entry
	for _, e := range m.entries {
		if e.PartyType == pt && scope.Allows(e.Scope.CountryID, e.Scope.BranchID) {
			scoped = append(scoped, e)
		}
	}
	return GroupTotals(scoped), nil
}

func (m *memoryLedgerRepo) SumByReference(_ context.Context, rt ReferenceType, id uuid.UUID, et EntryType) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, e := range m.entries {
		if e.ReferenceType == rt && e.ReferenceID != nil && *e.ReferenceID == id && e.EntryType == et {
			sum = sum.Add(e.Debit).Add(e.Credit)
		}
	}
	return sum, nil
}

type memoryParties map[PartyType]map[int64]Party

func (m memoryParties) GetParty(_ context.Context, pt PartyType, id int64) (Party, error) {
	p, ok := m[pt][id]
	if !ok {
		return Party{}, shared.NotFoundf("%s %d not found", pt, id)
	}
	return p, nil
}

type fixedRates map[int64]decimal.Decimal

func (f fixedRates) Snapshot(_ context.Context, countryID int64) (currency.Snapshot, error) {
	rate, ok := f[countryID]
	if !ok {
		return currency.Snapshot{}, shared.NotFoundf("country %d not found", countryID)
	}
	return currency.Snapshot{CountryID: countryID, Currency: "PKR", ExchangeRate: rate}, nil
}

func newTestService(t *testing.T) (*Service, *memoryLedgerRepo, fixedRates) {
	t.Helper()
	repo := &memoryLedgerRepo{}
	parties := memoryParties{
		PartyCustomer: {1: {Type: PartyCustomer, ID: 1, Scope: Scope{CountryID: 1, BranchID: 10}, OpeningBalance: d("50")}},
		PartySupplier: {
			7: {Type: PartySupplier, ID: 7, Scope: Scope{CountryID: 1, BranchID: 10}},
			8: {Type: PartySupplier, ID: 8, Scope: Scope{CountryID: 2, BranchID: 20}},
		},
	}
	rates := fixedRates{1: d("280"), 2: d("3.67")}
	svc := NewService(repo, parties, rates, nil)
	clock := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	return svc, repo, rates
}

func TestPostStampsCurrentSnapshot(t *testing.T) {
	svc, repo, rates := newTestService(t)
	ctx := context.Background()

	entry, err := svc.PostAmount(ctx, AmountInput{PartyType: PartySupplier, PartyID: 7, EntryType: EntryPurchase, Amount: d("28000"), CreatedBy: 3})
	require.NoError(t, err)
	assert.Equal(t, "100.00", entry.AmountUSD.StringFixed(2))
	assert.True(t, entry.ExchangeRate.Equal(d("280")))
	assert.Equal(t, Scope{CountryID: 1, BranchID: 10}, entry.Scope)
	assert.Equal(t, RefManual, entry.ReferenceType)

	rates[1] = d("300")
	second, err := svc.PostAmount(ctx, AmountInput{PartyType: PartySupplier, PartyID: 7, EntryType: EntryPurchase, Amount: d("30000"), CreatedBy: 3})
	require.NoError(t, err)
	assert.Equal(t, "100.00", second.AmountUSD.StringFixed(2))
	assert.True(t, repo.entries[0].ExchangeRate.Equal(d("280")), "historical entries keep their rate")
}

func TestPostValidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Post(ctx, PostInput{PartyType: PartyCustomer, PartyID: 1, EntryType: EntryInvoice, Scope: Scope{1, 10}})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Post(ctx, PostInput{PartyType: PartyCustomer, PartyID: 1, EntryType: EntryInvoice, Debit: d("-5"), Scope: Scope{1, 10}})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.PostAmount(ctx, AmountInput{PartyType: PartyCustomer, PartyID: 99, EntryType: EntryInvoice, Amount: d("1")})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Post(ctx, PostInput{PartyType: PartyCustomer, PartyID: 1, EntryType: EntryInvoice, Debit: d("5"), Scope: Scope{CountryID: 9, BranchID: 90}})
	assert.ErrorIs(t, err, shared.ErrNotFound, "missing country snapshot")
}

func TestStatementStartsFromOpeningBalance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.PostAmount(ctx, AmountInput{PartyType: PartyCustomer, PartyID: 1, EntryType: EntryInvoice, Amount: d("500")})
	require.NoError(t, err)
	_, err = svc.CreatePaymentEntry(ctx, AmountInput{PartyType: PartyCustomer, PartyID: 1, Amount: d("200")})
	require.NoError(t, err)

	st, err := svc.Statement(ctx, PartyCustomer, 1)
	require.NoError(t, err)
	require.Len(t, st.Entries, 2)
	assert.Equal(t, "550", st.Entries[0].Balance.String())
	assert.Equal(t, "350", st.Balance.String())
	assert.Equal(t, EntryPayment, st.Entries[1].EntryType)
	assert.True(t, st.Entries[1].Credit.Equal(d("200")))
}

func TestOutstandingRespectsScope(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.PostAmount(ctx, AmountInput{PartyType: PartySupplier, PartyID: 7, EntryType: EntryPurchase, Amount: d("100")})
	require.NoError(t, err)
	_, err = svc.PostAmount(ctx, AmountInput{PartyType: PartySupplier, PartyID: 8, EntryType: EntryPurchase, Amount: d("900")})
	require.NoError(t, err)

	all, err := svc.Outstanding(ctx, PartySupplier, shared.ScopeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(8), all[0].PartyID)

	country, err := svc.Outstanding(ctx, PartySupplier, shared.ScopeFilter{CountryID: shared.Int64Ptr(1)})
	require.NoError(t, err)
	require.Len(t, country, 1)
	assert.Equal(t, int64(7), country[0].PartyID)
}

func TestPaidAmountSumsPaymentsForReference(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	ref := uuid.New()

	for _, amt := range []string{"100", "50"} {
		_, err := svc.CreatePaymentEntry(ctx, AmountInput{PartyType: PartySupplier, PartyID: 7, Amount: d(amt), ReferenceType: RefPurchaseBill, ReferenceID: &ref})
		require.NoError(t, err)
	}
	_, err := svc.PostAmount(ctx, AmountInput{PartyType: PartySupplier, PartyID: 7, EntryType: EntryPurchase, Amount: d("500"), ReferenceType: RefPurchaseBill, ReferenceID: &ref})
	require.NoError(t, err)

	paid, err := svc.PaidAmount(ctx, RefPurchaseBill, ref)
	require.NoError(t, err)
	assert.Equal(t, "150", paid.String())
}
