package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/currency"
	"github.com/odyssey-erp/fincore/internal/shared"
)

// Repository persists ledger entries. Insert is the only write.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	ListByParty(ctx context.Context, partyType PartyType, partyID int64) ([]Entry, error)
	PartyTotals(ctx context.Context, partyType PartyType, scope shared.ScopeFilter) ([]PartyTotal, error)
	SumByReference(ctx context.Context, refType ReferenceType, refID uuid.UUID, entryType EntryType) (decimal.Decimal, error)
}

// PartyDirectory resolves customers and suppliers.
type PartyDirectory interface {
	GetParty(ctx context.Context, partyType PartyType, partyID int64) (Party, error)
}

// Snapshotter provides the currency snapshot stamped on every entry.
type Snapshotter interface {
	Snapshot(ctx context.Context, countryID int64) (currency.Snapshot, error)
}

// Service is the ledger posting engine.
type Service struct {
	repo     Repository
	parties  PartyDirectory
	currency Snapshotter
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo Repository, parties PartyDirectory, snap Snapshotter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, parties: parties, currency: snap, logger: logger, now: time.Now}
}

// WithNow overrides the clock used for created_at.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post appends one entry. The currency snapshot is taken for the entry's own
// country at call time, never copied from the originating document.
func (s *Service) Post(ctx context.Context, in PostInput) (Entry, error) {
	if err := validatePost(in); err != nil {
		return Entry{}, err
	}
	snap, err := s.currency.Snapshot(ctx, in.Scope.CountryID)
	if err != nil {
		return Entry{}, err
	}
	amount := in.Debit.Add(in.Credit)
	entry := Entry{
		ID:            uuid.New(),
		PartyType:     in.PartyType,
		PartyID:       in.PartyID,
		EntryType:     in.EntryType,
		Debit:         in.Debit,
		Credit:        in.Credit,
		Currency:      snap.Currency,
		AmountUSD:     snap.ToUSD(amount),
		ExchangeRate:  snap.ExchangeRate,
		Scope:         in.Scope,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Description:   in.Description,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     s.now().UTC(),
	}
	if entry.ReferenceType == "" {
		entry.ReferenceType = RefManual
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	s.logger.Info("ledger entry posted",
		slog.String("entry_id", entry.ID.String()),
		slog.String("party_type", string(entry.PartyType)),
		slog.Int64("party_id", entry.PartyID),
		slog.String("entry_type", string(entry.EntryType)),
		slog.String("amount_usd", entry.AmountUSD.StringFixed(2)),
	)
	return entry, nil
}

// PostAmount resolves the party scope and side, then posts.
func (s *Service) PostAmount(ctx context.Context, in AmountInput) (Entry, error) {
	party, err := s.parties.GetParty(ctx, in.PartyType, in.PartyID)
	if err != nil {
		return Entry{}, err
	}
	debit, credit, err := Direction(in.PartyType, in.EntryType, in.Amount)
	if err != nil {
		return Entry{}, err
	}
	return s.Post(ctx, PostInput{
		PartyType:     in.PartyType,
		PartyID:       in.PartyID,
		EntryType:     in.EntryType,
		Debit:         debit,
		Credit:        credit,
		Scope:         party.Scope,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Description:   in.Description,
		CreatedBy:     in.CreatedBy,
	})
}

// CreatePaymentEntry records a payment: a debit for suppliers, a credit for customers.
func (s *Service) CreatePaymentEntry(ctx context.Context, in AmountInput) (Entry, error) {
	in.EntryType = EntryPayment
	return s.PostAmount(ctx, in)
}

// Party exposes the directory lookup for callers that scope-check before posting.
func (s *Service) Party(ctx context.Context, partyType PartyType, partyID int64) (Party, error) {
	if !partyType.Valid() {
		return Party{}, ErrInvalidPartyType
	}
	return s.parties.GetParty(ctx, partyType, partyID)
}

// Statement returns every entry of a party with running balances from its opening balance.
func (s *Service) Statement(ctx context.Context, partyType PartyType, partyID int64) (Statement, error) {
	party, err := s.Party(ctx, partyType, partyID)
	if err != nil {
		return Statement{}, err
	}
	entries, err := s.repo.ListByParty(ctx, partyType, partyID)
	if err != nil {
		return Statement{}, fmt.Errorf("ledger: list entries: %w", err)
	}
	lines := RunningBalances(partyType, party.OpeningBalance, entries)
	balance := party.OpeningBalance
	if len(lines) > 0 {
		balance = lines[len(lines)-1].Balance
	}
	return Statement{
		PartyType:      partyType,
		PartyID:        partyID,
		OpeningBalance: party.OpeningBalance,
		Entries:        lines,
		Balance:        balance,
	}, nil
}

// Outstanding returns clamped outstanding balances per party within scope.
func (s *Service) Outstanding(ctx context.Context, partyType PartyType, scope shared.ScopeFilter) ([]Outstanding, error) {
	if !partyType.Valid() {
		return nil, ErrInvalidPartyType
	}
	totals, err := s.repo.PartyTotals(ctx, partyType, scope)
	if err != nil {
		return nil, fmt.Errorf("ledger: party totals: %w", err)
	}
	return OutstandingFromTotals(partyType, totals), nil
}

// PaidAmount sums payment entries referencing a document.
func (s *Service) PaidAmount(ctx context.Context, refType ReferenceType, refID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SumByReference(ctx, refType, refID, EntryPayment)
}

func validatePost(in PostInput) error {
	if !in.PartyType.Valid() {
		return ErrInvalidPartyType
	}
	if !in.EntryType.Valid() {
		return ErrInvalidEntryType
	}
	if in.PartyID <= 0 {
		return shared.Validationf("ledger: party id required")
	}
	if in.Debit.IsNegative() || in.Credit.IsNegative() {
		return ErrInvalidAmount
	}
	if in.Debit.IsZero() && in.Credit.IsZero() {
		return ErrInvalidAmount
	}
	if in.Scope.CountryID <= 0 || in.Scope.BranchID <= 0 {
		return shared.Validationf("ledger: country and branch scope required")
	}
	return nil
}
