package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/platform/db"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

const documentColumns = `id, number, party_type, party_id, lines, subtotal, tax_amount, total_amount,
currency, currency_symbol, exchange_rate_used, total_usd, status, transaction_date, due_date,
reference, notes, attributes, workflow_status, submitted_by, submitted_at, approved_by, approved_at,
locked_by, locked_at, is_locked, revisions, country_id, branch_id, created_by, created_at, updated_at, version`

// PGStore stores one document kind in its own table.
type PGStore struct {
	db   db.DBTX
	kind Kind
}

// NewPGStore constructs the store for kind.
func NewPGStore(conn db.DBTX, kind Kind) *PGStore {
	return &PGStore{db: conn, kind: kind}
}

// NewPGRegistry wires a PGStore for every kind.
func NewPGRegistry(conn db.DBTX) *Registry {
	stores := make(map[Kind]Store, len(kinds))
	for _, k := range Kinds() {
		stores[k] = NewPGStore(conn, k)
	}
	return NewRegistry(stores)
}

// Create inserts a new document.
func (s *PGStore) Create(ctx context.Context, d Document) error {
	args, err := documentArgs(d)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES
($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)`,
		s.kind.Table(), documentColumns), args...)
	if db.IsUniqueViolation(err) {
		return shared.NewError(shared.ErrConflict, "document number %s already exists", d.Number)
	}
	return err
}

// Get loads a document by id.
func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, documentColumns, s.kind.Table()), id)
	d, err := s.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, shared.NotFoundf("%s %s not found", s.kind, id)
		}
		return Document{}, err
	}
	return d, nil
}

// Save rewrites the mutable columns under a status and version compare-and-swap.
func (s *PGStore) Save(ctx context.Context, d Document, expected workflow.Status, expectedVersion int64) (Document, error) {
	lines, err := json.Marshal(d.Lines)
	if err != nil {
		return Document{}, err
	}
	attrs, err := json.Marshal(d.Attributes)
	if err != nil {
		return Document{}, err
	}
	revisions, err := json.Marshal(d.Workflow.Revisions)
	if err != nil {
		return Document{}, err
	}
	wf := d.Workflow
	var version int64
	err = s.db.QueryRow(ctx, fmt.Sprintf(`UPDATE %s SET
	lines=$3, subtotal=$4, tax_amount=$5, total_amount=$6, total_usd=$7, transaction_date=$8, due_date=$9,
	reference=$10, notes=$11, attributes=$12, workflow_status=$13, submitted_by=$14, submitted_at=$15,
	approved_by=$16, approved_at=$17, locked_by=$18, locked_at=$19, is_locked=$20, revisions=$21,
	updated_at=$22, version=version+1
WHERE id=$1 AND workflow_status=$2 AND version=$23
RETURNING version`, s.kind.Table()),
		d.ID, string(expected), lines, d.Subtotal, d.TaxAmount, d.TotalAmount, d.TotalUSD, d.TransactionDate, d.DueDate,
		d.Reference, d.Notes, attrs, string(wf.Status), wf.SubmittedBy, wf.SubmittedAt,
		wf.ApprovedBy, wf.ApprovedAt, wf.LockedBy, wf.LockedAt, wf.IsLocked, revisions,
		d.UpdatedAt, expectedVersion).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrStale
	}
	if err != nil {
		return Document{}, err
	}
	d.Version = version
	return d, nil
}

// SetStatus updates the domain status.
func (s *PGStore) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET status=$2, updated_at=NOW() WHERE id=$1`, s.kind.Table()), id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("%s %s not found", s.kind, id)
	}
	return nil
}

// DeleteDraft removes a Draft document.
func (s *PGStore) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1 AND workflow_status=$2`, s.kind.Table()), id, string(workflow.StatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func documentArgs(d Document) ([]any, error) {
	lines, err := json.Marshal(d.Lines)
	if err != nil {
		return nil, err
	}
	attrs, err := json.Marshal(d.Attributes)
	if err != nil {
		return nil, err
	}
	revisions, err := json.Marshal(d.Workflow.Revisions)
	if err != nil {
		return nil, err
	}
	wf := d.Workflow
	return []any{
		d.ID, d.Number, string(d.PartyType), d.PartyID, lines, d.Subtotal, d.TaxAmount, d.TotalAmount,
		d.Currency, d.CurrencySymbol, d.ExchangeRate, d.TotalUSD, d.Status, d.TransactionDate, d.DueDate,
		d.Reference, d.Notes, attrs, string(wf.Status), wf.SubmittedBy, wf.SubmittedAt, wf.ApprovedBy, wf.ApprovedAt,
		wf.LockedBy, wf.LockedAt, wf.IsLocked, revisions, d.CountryID, d.BranchID, d.CreatedBy, d.CreatedAt, d.UpdatedAt, d.Version,
	}, nil
}

func (s *PGStore) scan(row pgx.Row) (Document, error) {
	var (
		d                       Document
		partyType, wfStatus     string
		lines, attrs, revisions []byte
	)
	d.Kind = s.kind
	err := row.Scan(&d.ID, &d.Number, &partyType, &d.PartyID, &lines, &d.Subtotal, &d.TaxAmount, &d.TotalAmount,
		&d.Currency, &d.CurrencySymbol, &d.ExchangeRate, &d.TotalUSD, &d.Status, &d.TransactionDate, &d.DueDate,
		&d.Reference, &d.Notes, &attrs, &wfStatus, &d.Workflow.SubmittedBy, &d.Workflow.SubmittedAt, &d.Workflow.ApprovedBy, &d.Workflow.ApprovedAt,
		&d.Workflow.LockedBy, &d.Workflow.LockedAt, &d.Workflow.IsLocked, &revisions, &d.CountryID, &d.BranchID, &d.CreatedBy,
		&d.CreatedAt, &d.UpdatedAt, &d.Version)
	if err != nil {
		return Document{}, err
	}
	d.PartyType = ledger.PartyType(partyType)
	d.Workflow.Status = workflow.Status(wfStatus)
	if err := unmarshalColumn(lines, &d.Lines); err != nil {
		return Document{}, fmt.Errorf("documents: decode lines: %w", err)
	}
	if err := unmarshalColumn(attrs, &d.Attributes); err != nil {
		return Document{}, fmt.Errorf("documents: decode attributes: %w", err)
	}
	if err := unmarshalColumn(revisions, &d.Workflow.Revisions); err != nil {
		return Document{}, fmt.Errorf("documents: decode revisions: %w", err)
	}
	if d.Workflow.Revisions == nil {
		d.Workflow.Revisions = []workflow.Revision{}
	}
	return d, nil
}

func unmarshalColumn(raw []byte, target any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// PGBranchDirectory reads branches.
type PGBranchDirectory struct {
	db db.DBTX
}

// NewPGBranchDirectory constructs the directory.
func NewPGBranchDirectory(conn db.DBTX) *PGBranchDirectory {
	return &PGBranchDirectory{db: conn}
}

// GetBranch loads a branch.
func (r *PGBranchDirectory) GetBranch(ctx context.Context, branchID int64) (Branch, error) {
	var b Branch
	err := r.db.QueryRow(ctx, `SELECT id, country_id, code FROM branches WHERE id=$1`, branchID).Scan(&b.ID, &b.CountryID, &b.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, shared.NotFoundf("branch %d not found", branchID)
	}
	return b, err
}
