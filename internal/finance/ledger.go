package finance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/documents"
	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/periodlock"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

// PostEntryInput is a manual ledger posting.
type PostEntryInput struct {
	PartyType      ledger.PartyType
	PartyID        int64
	EntryType      ledger.EntryType
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// PostLedgerEntry appends a manual entry for a party in the caller's scope.
func (s *Service) PostLedgerEntry(ctx context.Context, caller shared.Caller, in PostEntryInput) (ledger.Entry, error) {
	if err := caller.Require(shared.CapPostLedger); err != nil {
		return ledger.Entry{}, err
	}
	party, err := s.visibleParty(ctx, caller, in.PartyType, in.PartyID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if _, _, err := ledger.Direction(in.PartyType, in.EntryType, in.Amount); err != nil {
		return ledger.Entry{}, err
	}
	if err := s.guard.AssertNotLocked(ctx, party.Scope.CountryID, party.Scope.BranchID, s.now()); err != nil {
		return ledger.Entry{}, s.checkLock(err, "ledger_post")
	}
	release, err := s.claim(ctx, in.IdempotencyKey, "ledger_post")
	if err != nil {
		return ledger.Entry{}, err
	}
	entry, err := s.ledger.PostAmount(ctx, ledger.AmountInput{
		PartyType:   in.PartyType,
		PartyID:     in.PartyID,
		EntryType:   in.EntryType,
		Amount:      in.Amount,
		Description: in.Description,
		CreatedBy:   caller.UserID,
	})
	if err != nil {
		release()
		return ledger.Entry{}, err
	}
	s.observer.ObserveLedgerPost(string(entry.EntryType))
	s.invalidate(ctx)
	return entry, nil
}

// PayInput records a payment against an approved bill or invoice.
type PayInput struct {
	Kind           documents.Kind
	ID             uuid.UUID
	Amount         decimal.Decimal
	Note           string
	IdempotencyKey string
}

// PaymentResult is the payment entry and the document after its status update.
type PaymentResult struct {
	Document documents.Document `json:"document"`
	Entry    ledger.Entry       `json:"entry"`
	Paid     decimal.Decimal    `json:"paid"`
	Balance  decimal.Decimal    `json:"balance"`
}

// Pay posts a payment entry referencing the document and updates its paid status.
func (s *Service) Pay(ctx context.Context, caller shared.Caller, in PayInput) (PaymentResult, error) {
	if err := caller.Require(shared.CapPay); err != nil {
		return PaymentResult{}, err
	}
	if !in.Kind.Financial() {
		return PaymentResult{}, shared.Validationf("%s documents do not accept payments", in.Kind)
	}
	if !in.Amount.IsPositive() {
		return PaymentResult{}, ledger.ErrInvalidAmount
	}
	unlock := s.docLocks.lock(in.ID)
	defer unlock()
	store, doc, err := s.load(ctx, caller, in.Kind, in.ID)
	if err != nil {
		return PaymentResult{}, err
	}
	if st := doc.Workflow.Status; st != workflow.StatusApproved && st != workflow.StatusLocked {
		return PaymentResult{}, shared.Validationf("%s %s must be approved before payment", in.Kind, doc.Number)
	}
	if err := s.guard.AssertNotLocked(ctx, doc.CountryID, doc.BranchID, s.now()); err != nil {
		return PaymentResult{}, s.checkLock(err, "pay")
	}
	release, err := s.claim(ctx, in.IdempotencyKey, "payment")
	if err != nil {
		return PaymentResult{}, err
	}

	ref := doc.Kind.ReferenceType()
	paid, err := s.ledger.PaidAmount(ctx, ref, doc.ID)
	if err != nil {
		release()
		return PaymentResult{}, fmt.Errorf("finance: paid amount: %w", err)
	}
	remaining := doc.TotalAmount.Sub(paid)
	if !remaining.IsPositive() {
		release()
		return PaymentResult{}, shared.Validationf("%s %s has no outstanding balance", in.Kind, doc.Number)
	}
	if in.Amount.GreaterThan(remaining) {
		release()
		return PaymentResult{}, shared.Validationf("payment %s exceeds outstanding %s", in.Amount.StringFixed(2), remaining.StringFixed(2))
	}
	description := in.Note
	if description == "" {
		description = "payment for " + doc.Number
	}
	id := doc.ID
	entry, err := s.ledger.CreatePaymentEntry(ctx, ledger.AmountInput{
		PartyType:     doc.PartyType,
		PartyID:       doc.PartyID,
		Amount:        in.Amount,
		ReferenceType: ref,
		ReferenceID:   &id,
		Description:   description,
		CreatedBy:     caller.UserID,
	})
	if err != nil {
		release()
		return PaymentResult{}, err
	}
	s.observer.ObserveLedgerPost(string(entry.EntryType))

	paid = paid.Add(in.Amount)
	status := paidStatus(doc.Kind, paid, doc.TotalAmount)
	var statusErr error
	if status != doc.Status {
		if statusErr = store.SetStatus(ctx, doc.ID, status); statusErr == nil {
			doc.Status = status
		} else {
			s.logger.Error("update payment status", slog.String("number", doc.Number), slog.Any("error", statusErr))
		}
	}
	s.invalidate(ctx)
	result := PaymentResult{Document: doc, Entry: entry, Paid: paid, Balance: doc.TotalAmount.Sub(paid)}
	if statusErr != nil {
		return result, fmt.Errorf("finance: set %s status: %w", doc.Number, statusErr)
	}
	return result, nil
}

// paidStatus derives the payment status of a financial document.
func paidStatus(kind documents.Kind, paid, total decimal.Decimal) string {
	switch {
	case !paid.IsPositive():
		return kind.InitialStatus()
	case !paid.LessThan(total):
		return documents.StatusPaid
	default:
		return documents.StatusPartiallyPaid
	}
}

// refreshPaidStatus recomputes the payment status after the total changed.
func (s *Service) refreshPaidStatus(ctx context.Context, store documents.Store, doc documents.Document) (documents.Document, error) {
	paid, err := s.ledger.PaidAmount(ctx, doc.Kind.ReferenceType(), doc.ID)
	if err != nil {
		return doc, fmt.Errorf("finance: paid amount: %w", err)
	}
	status := paidStatus(doc.Kind, paid, doc.TotalAmount)
	if status == doc.Status {
		return doc, nil
	}
	if err := store.SetStatus(ctx, doc.ID, status); err != nil {
		return doc, fmt.Errorf("finance: set %s status: %w", doc.Number, err)
	}
	doc.Status = status
	return doc, nil
}

// GetLedger returns the statement of a party in the caller's scope.
func (s *Service) GetLedger(ctx context.Context, caller shared.Caller, partyType ledger.PartyType, partyID int64) (ledger.Statement, error) {
	if _, err := s.visibleParty(ctx, caller, partyType, partyID); err != nil {
		return ledger.Statement{}, err
	}
	return s.ledger.Statement(ctx, partyType, partyID)
}

// GetOutstanding lists clamped outstanding balances within the caller's scope.
func (s *Service) GetOutstanding(ctx context.Context, caller shared.Caller, partyType ledger.PartyType) ([]ledger.Outstanding, error) {
	return s.ledger.Outstanding(ctx, partyType, caller.Scope())
}

// SetLockDate changes a lock date and clears cached reports.
func (s *Service) SetLockDate(ctx context.Context, caller shared.Caller, in periodlock.SetLockInput) error {
	if err := s.locks.SetLockDate(ctx, caller, in); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// LockStatus reports the lock dates in force for a country and branch.
func (s *Service) LockStatus(ctx context.Context, caller shared.Caller, countryID, branchID int64) (periodlock.Status, error) {
	if err := visible(caller, countryID, branchID, "branch"); err != nil {
		return periodlock.Status{}, err
	}
	return s.guard.Status(ctx, countryID, branchID)
}

func (s *Service) visibleParty(ctx context.Context, caller shared.Caller, partyType ledger.PartyType, partyID int64) (ledger.Party, error) {
	party, err := s.ledger.Party(ctx, partyType, partyID)
	if err != nil {
		return ledger.Party{}, err
	}
	if err := visible(caller, party.Scope.CountryID, party.Scope.BranchID, string(partyType)); err != nil {
		return ledger.Party{}, err
	}
	return party, nil
}
