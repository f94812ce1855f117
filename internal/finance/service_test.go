package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fincore/internal/counter"
	"github.com/odyssey-erp/fincore/internal/currency"
	"github.com/odyssey-erp/fincore/internal/documents"
	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/periodlock"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

type memoryDocStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]documents.Document
}

func newMemoryDocStore() *memoryDocStore {
	return &memoryDocStore{docs: map[uuid.UUID]documents.Document{}}
}

func (m *memoryDocStore) Create(_ context.Context, d documents.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = d
	return nil
}

func (m *memoryDocStore) Get(_ context.Context, id uuid.UUID) (documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return documents.Document{}, shared.NotFoundf("document %s not found", id)
	}
	return d, nil
}

func (m *memoryDocStore) Save(_ context.Context, d documents.Document, expected workflow.Status, version int64) (documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[d.ID]
	if !ok || cur.Workflow.Status != expected || cur.Version != version {
		return documents.Document{}, documents.ErrStale
	}
	d.Version = version + 1
	d.Status = cur.Status
	m.docs[d.ID] = d
	return d, nil
}

func (m *memoryDocStore) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return shared.NotFoundf("document %s not found", id)
	}
	d.Status = status
	m.docs[id] = d
	return nil
}

func (m *memoryDocStore) DeleteDraft(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.Workflow.Status != workflow.StatusDraft {
		return documents.ErrStale
	}
	delete(m.docs, id)
	return nil
}

type memoryLocks struct {
	mu      sync.Mutex
	global  *time.Time
	country map[int64]*time.Time
	branch  map[int64]*time.Time
}

func (m *memoryLocks) GlobalLockUntil(context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.global, nil
}

func (m *memoryLocks) CountryLockUntil(_ context.Context, id int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.country[id], nil
}

func (m *memoryLocks) BranchLockUntil(_ context.Context, id int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.branch[id], nil
}

func (m *memoryLocks) SetGlobalLockUntil(_ context.Context, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global = until
	return nil
}

func (m *memoryLocks) SetCountryLockUntil(_ context.Context, id int64, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.country[id] = until
	return nil
}

func (m *memoryLocks) SetBranchLockUntil(_ context.Context, id int64, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branch[id] = until
	return nil
}

func (m *memoryLocks) BranchCountry(_ context.Context, id int64) (int64, error) {
	if id == 10 {
		return 1, nil
	}
	return 0, shared.NotFoundf("branch %d not found", id)
}

type memoryCountries struct {
	mu        sync.Mutex
	countries map[int64]currency.Country
}

func (m *memoryCountries) GetCountry(_ context.Context, id int64) (currency.Country, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.countries[id]
	if !ok {
		return currency.Country{}, shared.NotFoundf("country %d not found", id)
	}
	return c, nil
}

func (m *memoryCountries) setRate(id int64, rate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.countries[id]
	c.ExchangeRate = decimal.RequireFromString(rate)
	m.countries[id] = c
}

type memoryLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (m *memoryLedger) Insert(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryLedger) ListByParty(_ context.Context, pt ledger.PartyType, id int64) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Entry
	for _, e := range m.entries {
		if e.PartyType == pt && e.PartyID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryLedger) PartyTotals(_ context.Context, pt ledger.PartyType, scope shared.ScopeFilter) ([]ledger.PartyTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var scoped []ledger.Entry
	for _, e := range m.entries {
		if e.PartyType == pt && scope.Allows(e.Scope.CountryID, e.Scope.BranchID) {
			scoped = append(scoped, e)
		}
	}
	return ledger.GroupTotals(scoped), nil
}

func (m *memoryLedger) SumByReference(_ context.Context, rt ledger.ReferenceType, id uuid.UUID, et ledger.EntryType) (decimal.Decimal, error) {
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

type memoryParties struct{}

func (memoryParties) GetParty(_ context.Context, pt ledger.PartyType, id int64) (ledger.Party, error) {
	switch {
	case pt == ledger.PartySupplier && id == 7:
		return ledger.Party{Type: pt, ID: id, Scope: ledger.Scope{CountryID: 1, BranchID: 10}}, nil
	case pt == ledger.PartyCustomer && id == 5:
		return ledger.Party{Type: pt, ID: id, Scope: ledger.Scope{CountryID: 1, BranchID: 10}}, nil
	case pt == ledger.PartyCustomer && id == 9:
		return ledger.Party{Type: pt, ID: id, Scope: ledger.Scope{CountryID: 2, BranchID: 20}}, nil
	}
	return ledger.Party{}, shared.NotFoundf("%s %d not found", pt, id)
}

type memoryBranches struct{}

func (memoryBranches) GetBranch(_ context.Context, id int64) (documents.Branch, error) {
	switch id {
	case 10:
		return documents.Branch{ID: 10, CountryID: 1, Code: "LHR"}, nil
	case 20:
		return documents.Branch{ID: 20, CountryID: 2, Code: "DXB"}, nil
	}
	return documents.Branch{}, shared.NotFoundf("branch %d not found", id)
}

type memoryApprovals struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (m *memoryApprovals) Record(_ context.Context, l shared.ApprovalLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func (m *memoryApprovals) List(_ context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shared.ApprovalLog
	for _, l := range m.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[module+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+key)
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateAll(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type harness struct {
	svc         *Service
	bills       *memoryDocStore
	invoices    *memoryDocStore
	shipments   *memoryDocStore
	locks       *memoryLocks
	countries   *memoryCountries
	ledger      *memoryLedger
	approvals   *memoryApprovals
	invalidator *countingInvalidator
	now         time.Time
}

var (
	staff       = shared.Caller{UserID: 11, Role: shared.RoleStaff, CountryID: shared.Int64Ptr(1), BranchID: shared.Int64Ptr(10)}
	branchAdmin = shared.Caller{UserID: 12, Role: shared.RoleBranchAdmin, CountryID: shared.Int64Ptr(1), BranchID: shared.Int64Ptr(10)}
	countryAdm  = shared.Caller{UserID: 13, Role: shared.RoleCountryAdmin, CountryID: shared.Int64Ptr(1)}
	superAdmin  = shared.Caller{UserID: 14, Role: shared.RoleSuperAdmin}
	otherStaff  = shared.Caller{UserID: 21, Role: shared.RoleStaff, CountryID: shared.Int64Ptr(2), BranchID: shared.Int64Ptr(20)}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bills:       newMemoryDocStore(),
		invoices:    newMemoryDocStore(),
		shipments:   newMemoryDocStore(),
		locks:       &memoryLocks{country: map[int64]*time.Time{}, branch: map[int64]*time.Time{}},
		countries:   &memoryCountries{countries: map[int64]currency.Country{1: {ID: 1, Code: "PK", CurrencyCode: "PKR", CurrencySymbol: "Rs", ExchangeRate: decimal.NewFromInt(280), IsActive: true}, 2: {ID: 2, Code: "AE", CurrencyCode: "AED", ExchangeRate: decimal.RequireFromString("3.6725"), IsActive: true}}},
		ledger:      &memoryLedger{},
		approvals:   &memoryApprovals{},
		invalidator: &countingInvalidator{},
		now:         time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	guard := periodlock.NewGuard(h.locks)
	guard.WithNow(clock)
	provider := currency.NewProvider(h.countries)
	provider.WithNow(clock)
	ledgerSvc := ledger.NewService(h.ledger, memoryParties{}, provider, nil)
	ledgerSvc.WithNow(clock)

	h.svc = NewService(Deps{
		Guard:    guard,
		Locks:    periodlock.NewService(h.locks, nil, nil),
		Currency: provider,
		Ledger:   ledgerSvc,
		Counter:  counter.NewService(counter.NewRedisStore(rdb, "")),
		Documents: documents.NewRegistry(map[documents.Kind]documents.Store{
			documents.KindPurchaseBill: h.bills,
			documents.KindInvoice:      h.invoices,
			documents.KindShipment:     h.shipments,
		}),
		Branches:    memoryBranches{},
		Approvals:   h.approvals,
		Idempotency: &memoryIdempotency{keys: map[string]bool{}},
		Invalidator: h.invalidator,
	})
	h.svc.WithNow(clock)
	return h
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func billInput(total string) CreateInput {
	return CreateInput{
		Kind:    documents.KindPurchaseBill,
		PartyID: 7,
		Lines:   []documents.Line{{Description: "Container freight", Quantity: dec("1"), UnitPrice: dec(total)}},
	}
}

func (h *harness) approvedBill(t *testing.T, total string) documents.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := h.svc.CreateDocument(ctx, staff, billInput(total))
	require.NoError(t, err)
	_, err = h.svc.Transition(ctx, staff, doc.Kind, doc.ID, workflow.StatusSubmitted, "")
	require.NoError(t, err)
	doc, err = h.svc.Transition(ctx, branchAdmin, doc.Kind, doc.ID, workflow.StatusApproved, "ok")
	require.NoError(t, err)
	return doc
}
