// Package finance orchestrates the financial operations exposed to callers:
// lock guard first, then currency snapshot, then workflow or ledger, then
// report invalidation.
package finance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/fincore/internal/counter"
	"github.com/odyssey-erp/fincore/internal/currency"
	"github.com/odyssey-erp/fincore/internal/documents"
	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/periodlock"
	"github.com/odyssey-erp/fincore/internal/shared"
)

// Invalidator clears every cached report.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

// ApprovalLog records workflow transitions.
type ApprovalLog interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Idempotency claims request keys.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Observer receives operation outcomes for metrics.
type Observer interface {
	ObserveTransition(kind, from, to, outcome string)
	ObserveLedgerPost(entryType string)
	ObserveLockRejection(operation string)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Guard       *periodlock.Guard
	Locks       *periodlock.Service
	Currency    *currency.Provider
	Ledger      *ledger.Service
	Counter     *counter.Service
	Documents   *documents.Registry
	Branches    documents.BranchDirectory
	Approvals   ApprovalLog
	Idempotency Idempotency
	Invalidator Invalidator
	Observer    Observer
	Logger      *slog.Logger
}

// Service implements the financial operations.
type Service struct {
	guard       *periodlock.Guard
	locks       *periodlock.Service
	currency    *currency.Provider
	ledger      *ledger.Service
	counter     *counter.Service
	docs        *documents.Registry
	branches    documents.BranchDirectory
	approvals   ApprovalLog
	idempotency Idempotency
	invalidator Invalidator
	observer    Observer
	logger      *slog.Logger
	now         func() time.Time
	docLocks    docLocks
}

// NewService constructs the finance service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &Service{
		guard:       deps.Guard,
		locks:       deps.Locks,
		currency:    deps.Currency,
		ledger:      deps.Ledger,
		counter:     deps.Counter,
		docs:        deps.Documents,
		branches:    deps.Branches,
		approvals:   deps.Approvals,
		idempotency: deps.Idempotency,
		invalidator: deps.Invalidator,
		observer:    observer,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// invalidate never fails the calling operation.
func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateAll(ctx)
}

func (s *Service) checkLock(err error, operation string) error {
	if errors.Is(err, shared.ErrAccountingLocked) {
		s.observer.ObserveLockRejection(operation)
	}
	return err
}

// claim reserves an idempotency key and returns its release func for failures.
func (s *Service) claim(ctx context.Context, key, module string) (func(), error) {
	if key == "" || s.idempotency == nil {
		return func() {}, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, module); err != nil {
		return nil, err
	}
	return func() {
		if err := s.idempotency.Delete(ctx, key, module); err != nil {
			s.logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", err))
		}
	}, nil
}

func requireBranchScope(caller shared.Caller) error {
	if caller.CountryID == nil || caller.BranchID == nil {
		return shared.Validationf("caller country and branch are required")
	}
	return nil
}

func visible(caller shared.Caller, countryID, branchID int64, what string) error {
	if !caller.InScope(countryID, branchID) {
		return shared.NotFoundf("%s not found", what)
	}
	return nil
}

type noopObserver struct{}

func (noopObserver) ObserveTransition(string, string, string, string) {}
func (noopObserver) ObserveLedgerPost(string)                         {}
func (noopObserver) ObserveLockRejection(string)                      {}
