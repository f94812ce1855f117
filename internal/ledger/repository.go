package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/platform/db"
	"github.com/odyssey-erp/fincore/internal/shared"
)

const entryColumns = `id, party_type, party_id, entry_type, debit_amount, credit_amount, currency,
amount_usd, exchange_rate_used, country_id, branch_id, reference_type, reference_id, description,
created_by, created_at`

// PGRepository stores entries in the append-only ledger_entries table.
type PGRepository struct {
	db db.DBTX
}

// NewPGRepository constructs the repository.
func NewPGRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

// Insert appends a single entry in one statement.
func (r *PGRepository) Insert(ctx context.Context, e Entry) error {
	_, err := r.db.Exec(ctx, `INSERT INTO ledger_entries (`+entryColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		e.ID, string(e.PartyType), e.PartyID, string(e.EntryType), e.Debit, e.Credit, e.Currency,
		e.AmountUSD, e.ExchangeRate, e.Scope.CountryID, e.Scope.BranchID, string(e.ReferenceType), e.ReferenceID,
		e.Description, e.CreatedBy, e.CreatedAt)
	return err
}

// ListByParty returns entries for one party in creation order.
func (r *PGRepository) ListByParty(ctx context.Context, partyType PartyType, partyID int64) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE party_type=$1 AND party_id=$2 ORDER BY created_at ASC, id ASC`, string(partyType), partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PartyTotals sums debits and credits per party inside the scope.
func (r *PGRepository) PartyTotals(ctx context.Context, partyType PartyType, scope shared.ScopeFilter) ([]PartyTotal, error) {
	rows, err := r.db.Query(ctx, `SELECT party_id, COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0)
FROM ledger_entries
WHERE party_type=$1
  AND ($2::bigint IS NULL OR country_id=$2)
  AND ($3::bigint IS NULL OR branch_id=$3)
GROUP BY party_id`, string(partyType), scope.CountryID, scope.BranchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []PartyTotal
	for rows.Next() {
		var t PartyTotal
		if err := rows.Scan(&t.PartyID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// SumByReference totals one entry type for a referenced document.
func (r *PGRepository) SumByReference(ctx context.Context, refType ReferenceType, refID uuid.UUID, entryType EntryType) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount + credit_amount),0) FROM ledger_entries
WHERE reference_type=$1 AND reference_id=$2 AND entry_type=$3`, string(refType), refID, string(entryType)).Scan(&sum)
	return sum, err
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e                         Entry
		partyType, entryType, ref string
	)
	err := row.Scan(&e.ID, &partyType, &e.PartyID, &entryType, &e.Debit, &e.Credit, &e.Currency,
		&e.AmountUSD, &e.ExchangeRate, &e.Scope.CountryID, &e.Scope.BranchID, &ref, &e.ReferenceID,
		&e.Description, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.PartyType = PartyType(partyType)
	e.EntryType = EntryType(entryType)
	e.ReferenceType = ReferenceType(ref)
	return e, nil
}

// PGPartyDirectory reads customers and suppliers.
type PGPartyDirectory struct {
	db db.DBTX
}

// NewPGPartyDirectory constructs the directory.
func NewPGPartyDirectory(conn db.DBTX) *PGPartyDirectory {
	return &PGPartyDirectory{db: conn}
}

// GetParty loads one party with its opening balance.
func (d *PGPartyDirectory) GetParty(ctx context.Context, partyType PartyType, partyID int64) (Party, error) {
	var table string
	switch partyType {
	case PartyCustomer:
		table = "customers"
	case PartySupplier:
		table = "suppliers"
	default:
		return Party{}, ErrInvalidPartyType
	}
	p := Party{Type: partyType}
	err := d.db.QueryRow(ctx, fmt.Sprintf(`SELECT id, name, country_id, branch_id, COALESCE(opening_balance, 0)
FROM %s WHERE id=$1`, table), partyID).Scan(&p.ID, &p.Name, &p.Scope.CountryID, &p.Scope.BranchID, &p.OpeningBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, shared.NotFoundf("%s %d not found", partyType, partyID)
		}
		return Party{}, err
	}
	return p, nil
}
