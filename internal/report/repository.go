package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/fincore/internal/documents"
	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/platform/db"
)

// PGRepository aggregates directly over ledger_entries and the document tables.
type PGRepository struct {
	db db.DBTX
}

// NewPGRepository constructs the repository.
func NewPGRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

// LedgerTotals groups entries per country, party type and entry type.
// Entries with no USD snapshot count as zero.
func (r *PGRepository) LedgerTotals(ctx context.Context, f Filter) ([]LedgerRow, error) {
	rows, err := r.db.Query(ctx, `SELECT country_id, party_type, entry_type, COUNT(*),
	COALESCE(SUM(CASE WHEN debit_amount > 0 THEN COALESCE(amount_usd,0) ELSE 0 END),0),
	COALESCE(SUM(CASE WHEN credit_amount > 0 THEN COALESCE(amount_usd,0) ELSE 0 END),0)
FROM ledger_entries
WHERE ($1::bigint IS NULL OR country_id=$1)
  AND ($2::bigint IS NULL OR branch_id=$2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at <= $4)
GROUP BY country_id, party_type, entry_type`,
		f.Scope.CountryID, f.Scope.BranchID, f.Range.From, f.Range.To)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}
	defer rows.Close()
	var out []LedgerRow
	for rows.Next() {
		var (
			row       LedgerRow
			partyType string
			entryType string
		)
		if err := rows.Scan(&row.CountryID, &partyType, &entryType, &row.Count, &row.DebitUSD, &row.CreditUSD); err != nil {
			return nil, err
		}
		row.PartyType = ledger.PartyType(partyType)
		row.EntryType = ledger.EntryType(entryType)
		out = append(out, row)
	}
	return out, rows.Err()
}

// DocumentTotals groups every document kind by country and workflow status.
func (r *PGRepository) DocumentTotals(ctx context.Context, f Filter) ([]DocumentRow, error) {
	parts := make([]string, 0, len(documents.Kinds()))
	for _, kind := range documents.Kinds() {
		parts = append(parts, fmt.Sprintf(`SELECT '%s' AS kind, country_id, workflow_status,
	COALESCE(total_amount,0) AS total, COALESCE(total_usd,0) AS total_usd
FROM %s
WHERE ($1::bigint IS NULL OR country_id=$1)
  AND ($2::bigint IS NULL OR branch_id=$2)
  AND ($3::timestamptz IS NULL OR transaction_date >= $3)
  AND ($4::timestamptz IS NULL OR transaction_date <= $4)`, string(kind), kind.Table()))
	}
	query := `SELECT kind, country_id, workflow_status, COUNT(*), SUM(total), SUM(total_usd)
FROM (` + strings.Join(parts, "\nUNION ALL\n") + `) docs
GROUP BY kind, country_id, workflow_status`
	rows, err := r.db.Query(ctx, query, f.Scope.CountryID, f.Scope.BranchID, f.Range.From, f.Range.To)
	if err != nil {
		return nil, fmt.Errorf("document totals: %w", err)
	}
	defer rows.Close()
	var out []DocumentRow
	for rows.Next() {
		var row DocumentRow
		if err := rows.Scan(&row.Kind, &row.CountryID, &row.WorkflowStatus, &row.Count, &row.Total, &row.TotalUSD); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
