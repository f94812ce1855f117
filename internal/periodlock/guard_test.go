package periodlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fincore/internal/shared"
)

type memStore struct {
	mu       sync.Mutex
	global   *time.Time
	country  map[int64]*time.Time
	branch   map[int64]*time.Time
	branches map[int64]int64
	reads    int
	failWith error
}

func newMemStore() *memStore {
	return &memStore{country: map[int64]*time.Time{}, branch: map[int64]*time.Time{}, branches: map[int64]int64{}}
}

func (m *memStore) GlobalLockUntil(context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.global, m.failWith
}

func (m *memStore) CountryLockUntil(_ context.Context, id int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.country[id], nil
}

func (m *memStore) BranchLockUntil(_ context.Context, id int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.branch[id], nil
}

func (m *memStore) SetGlobalLockUntil(_ context.Context, until *time.Time) error {
	m.global = until
	return nil
}

func (m *memStore) SetCountryLockUntil(_ context.Context, id int64, until *time.Time) error {
	m.country[id] = until
	return nil
}

func (m *memStore) SetBranchLockUntil(_ context.Context, id int64, until *time.Time) error {
	m.branch[id] = until
	return nil
}

func (m *memStore) BranchCountry(_ context.Context, id int64) (int64, error) {
	c, ok := m.branches[id]
	if !ok {
		return 0, shared.NotFoundf("branch %d not found", id)
	}
	return c, nil
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAssertNotLockedUnlockedWhenNoDates(t *testing.T) {
	g := NewGuard(newMemStore())
	require.NoError(t, g.AssertNotLocked(context.Background(), 1, 10, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAssertNotLockedUsesLatestDate(t *testing.T) {
	store := newMemStore()
	store.global = day(2025, 1, 31)
	store.country[1] = day(2025, 3, 31)
	store.branch[10] = day(2025, 2, 28)
	g := NewGuard(store)
	ctx := context.Background()

	err := g.AssertNotLocked(ctx, 1, 10, *day(2025, 3, 15))
	require.ErrorIs(t, err, shared.ErrAccountingLocked)
	var locked *LockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, LevelCountry, locked.Source)
	assert.True(t, locked.LockedUntil.Equal(*day(2025, 3, 31)))

	// boundary is inclusive
	assert.ErrorIs(t, g.AssertNotLocked(ctx, 1, 10, *day(2025, 3, 31)), shared.ErrAccountingLocked)
	assert.NoError(t, g.AssertNotLocked(ctx, 1, 10, *day(2025, 4, 1)))

	// another country only sees global + its own branch
	assert.NoError(t, g.AssertNotLocked(ctx, 2, 20, *day(2025, 2, 1)))
	assert.ErrorIs(t, g.AssertNotLocked(ctx, 2, 20, *day(2025, 1, 15)), shared.ErrAccountingLocked)
}

func TestAssertNotLockedReevaluatesEveryCall(t *testing.T) {
	store := newMemStore()
	g := NewGuard(store)
	ctx := context.Background()
	tx := *day(2025, 5, 10)

	require.NoError(t, g.AssertNotLocked(ctx, 1, 10, tx))
	store.branch[10] = day(2025, 5, 31)
	assert.ErrorIs(t, g.AssertNotLocked(ctx, 1, 10, tx), shared.ErrAccountingLocked)
	assert.Equal(t, 6, store.reads)
}

func TestAssertEditableChecksCreationAndNow(t *testing.T) {
	store := newMemStore()
	g := NewGuard(store)
	now := *day(2025, 6, 15)
	g.WithNow(func() time.Time { return now })
	ctx := context.Background()

	store.country[1] = day(2025, 3, 31)
	assert.ErrorIs(t, g.AssertEditable(ctx, 1, 10, *day(2025, 3, 1)), shared.ErrAccountingLocked, "original period locked")
	assert.NoError(t, g.AssertEditable(ctx, 1, 10, *day(2025, 4, 2)))

	store.global = day(2025, 6, 30)
	assert.ErrorIs(t, g.AssertEditable(ctx, 1, 10, *day(2025, 7, 1)), shared.ErrAccountingLocked, "edit period locked")
}

func TestStatusPropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.failWith = errors.New("db down")
	_, err := NewGuard(store).Status(context.Background(), 1, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrAccountingLocked)
}
