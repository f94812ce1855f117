package periodlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/fincore/internal/platform/db"
	"github.com/odyssey-erp/fincore/internal/shared"
)

// PGStore reads and writes lock dates in PostgreSQL.
type PGStore struct {
	db db.DBTX
}

// NewPGStore constructs the store.
func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

// GlobalLockUntil reads system_settings.
func (s *PGStore) GlobalLockUntil(ctx context.Context) (*time.Time, error) {
	return s.scanDate(ctx, `SELECT global_accounting_lock_until FROM system_settings WHERE id = 1`)
}

// CountryLockUntil reads countries.accounting_lock_until.
func (s *PGStore) CountryLockUntil(ctx context.Context, countryID int64) (*time.Time, error) {
	return s.scanDate(ctx, `SELECT accounting_lock_until FROM countries WHERE id = $1`, countryID)
}

// BranchLockUntil reads branches.accounting_lock_until.
func (s *PGStore) BranchLockUntil(ctx context.Context, branchID int64) (*time.Time, error) {
	return s.scanDate(ctx, `SELECT accounting_lock_until FROM branches WHERE id = $1`, branchID)
}

// SetGlobalLockUntil upserts the singleton settings row.
func (s *PGStore) SetGlobalLockUntil(ctx context.Context, until *time.Time) error {
	_, err := s.db.Exec(ctx, `INSERT INTO system_settings (id, global_accounting_lock_until) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET global_accounting_lock_until = EXCLUDED.global_accounting_lock_until`, until)
	return err
}

// SetCountryLockUntil updates a country lock date.
func (s *PGStore) SetCountryLockUntil(ctx context.Context, countryID int64, until *time.Time) error {
	return s.update(ctx, `UPDATE countries SET accounting_lock_until = $2 WHERE id = $1`, "country", countryID, until)
}

// SetBranchLockUntil updates a branch lock date.
func (s *PGStore) SetBranchLockUntil(ctx context.Context, branchID int64, until *time.Time) error {
	return s.update(ctx, `UPDATE branches SET accounting_lock_until = $2 WHERE id = $1`, "branch", branchID, until)
}

// BranchCountry returns the country owning branchID.
func (s *PGStore) BranchCountry(ctx context.Context, branchID int64) (int64, error) {
	var countryID int64
	err := s.db.QueryRow(ctx, `SELECT country_id FROM branches WHERE id = $1`, branchID).Scan(&countryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.NotFoundf("branch %d not found", branchID)
	}
	return countryID, err
}

func (s *PGStore) update(ctx context.Context, sql, entity string, id int64, until *time.Time) error {
	tag, err := s.db.Exec(ctx, sql, id, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("%s %d not found", entity, id)
	}
	return nil
}

// Missing rows read as unset so a fresh install is unlocked.
func (s *PGStore) scanDate(ctx context.Context, sql string, args ...any) (*time.Time, error) {
	var until *time.Time
	err := s.db.QueryRow(ctx, sql, args...).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("periodlock: read lock date: %w", err)
	}
	return until, nil
}
