package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/documents"
	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

// CreateInput carries a new document. Totals are always derived from Lines.
type CreateInput struct {
	Kind            documents.Kind
	PartyID         int64
	Lines           []documents.Line
	TransactionDate time.Time
	DueDate         *time.Time
	Reference       string
	Notes           string
	Attributes      map[string]any
}

// CreateDocument validates, guards, snapshots, numbers and stores a new Draft document.
func (s *Service) CreateDocument(ctx context.Context, caller shared.Caller, in CreateInput) (documents.Document, error) {
	if err := caller.Require(shared.CapCreate); err != nil {
		return documents.Document{}, err
	}
	if err := requireBranchScope(caller); err != nil {
		return documents.Document{}, err
	}
	store, err := s.docs.For(in.Kind)
	if err != nil {
		return documents.Document{}, err
	}
	if in.Kind.Financial() {
		if len(in.Lines) == 0 {
			return documents.Document{}, shared.Validationf("line items required")
		}
		if in.PartyID <= 0 {
			return documents.Document{}, shared.Validationf("%s party required", in.Kind.PartyType())
		}
	}
	if err := documents.ValidateLines(in.Lines); err != nil {
		return documents.Document{}, err
	}
	countryID, branchID := *caller.CountryID, *caller.BranchID
	if in.PartyID > 0 {
		party, err := s.ledger.Party(ctx, in.Kind.PartyType(), in.PartyID)
		if err != nil {
			return documents.Document{}, err
		}
		if party.Scope.CountryID != countryID {
			return documents.Document{}, shared.NotFoundf("%s %d not found", in.Kind.PartyType(), in.PartyID)
		}
	}

	now := s.now().UTC()
	txDate := in.TransactionDate
	if txDate.IsZero() {
		txDate = now
	}
	if in.Kind.Financial() {
		if err := s.guard.AssertNotLocked(ctx, countryID, branchID, txDate); err != nil {
			return documents.Document{}, s.checkLock(err, "create")
		}
	}

	snap, err := s.currency.Snapshot(ctx, countryID)
	if err != nil {
		return documents.Document{}, err
	}
	branch, err := s.branches.GetBranch(ctx, branchID)
	if err != nil {
		return documents.Document{}, err
	}
	number, err := s.counter.NextNumber(ctx, in.Kind.Prefix(), branchID, branch.Code)
	if err != nil {
		return documents.Document{}, err
	}

	doc := documents.Document{
		ID:              uuid.New(),
		Kind:            in.Kind,
		Number:          number,
		PartyType:       in.Kind.PartyType(),
		PartyID:         in.PartyID,
		Lines:           in.Lines,
		Currency:        snap.Currency,
		CurrencySymbol:  snap.CurrencySymbol,
		ExchangeRate:    snap.ExchangeRate,
		Status:          in.Kind.InitialStatus(),
		TransactionDate: txDate,
		DueDate:         in.DueDate,
		Reference:       in.Reference,
		Notes:           in.Notes,
		Attributes:      in.Attributes,
		Workflow:        workflow.NewState(),
		CountryID:       countryID,
		BranchID:        branchID,
		CreatedBy:       caller.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	if doc.Lines == nil {
		doc.Lines = []documents.Line{}
	}
	doc.Recompute()
	if err := store.Create(ctx, doc); err != nil {
		return documents.Document{}, fmt.Errorf("finance: create %s: %w", in.Kind, err)
	}
	s.invalidate(ctx)
	s.logger.Info("document created",
		slog.String("kind", string(doc.Kind)),
		slog.String("number", doc.Number),
		slog.String("total_usd", doc.TotalUSD.StringFixed(2)),
		slog.Int64("actor_id", caller.UserID),
	)
	return doc, nil
}

// GetDocument loads a document visible to the caller.
func (s *Service) GetDocument(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID) (documents.Document, error) {
	_, doc, err := s.load(ctx, caller, kind, id)
	return doc, err
}

// History lists the workflow transitions recorded for a document.
func (s *Service) History(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID) ([]shared.ApprovalLog, error) {
	if _, _, err := s.load(ctx, caller, kind, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	return s.approvals.List(ctx, string(kind), id)
}

// Transition moves a document along the workflow. A concurrent writer that
// advanced the document first makes this call fail with ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID, target workflow.Status, note string) (documents.Document, error) {
	store, doc, err := s.load(ctx, caller, kind, id)
	if err != nil {
		return documents.Document{}, err
	}
	from := doc.Workflow.Status
	t, err := workflow.Authorize(caller, from, target)
	if err != nil {
		s.observer.ObserveTransition(string(kind), string(from), string(target), shared.KindName(err))
		return documents.Document{}, err
	}
	posts := target == workflow.StatusApproved && kind.Financial()
	if posts {
		if err := s.guard.AssertEditable(ctx, doc.CountryID, doc.BranchID, doc.TransactionDate); err != nil {
			return documents.Document{}, s.checkLock(err, "approve")
		}
	}

	now := s.now().UTC()
	next := doc
	next.Workflow = doc.Workflow.Apply(t, caller.UserID, now)
	next.UpdatedAt = now
	saved, err := store.Save(ctx, next, from, doc.Version)
	if err != nil {
		if errors.Is(err, documents.ErrStale) {
			err = shared.NewError(shared.ErrInvalidTransition, "%s %s is no longer %s", kind, doc.Number, from)
		}
		s.observer.ObserveTransition(string(kind), string(from), string(target), shared.KindName(err))
		return documents.Document{}, err
	}
	s.observer.ObserveTransition(string(kind), string(from), string(target), "ok")

	s.recordApproval(ctx, shared.ApprovalLog{Module: string(kind), RefID: doc.ID, ActorID: caller.UserID, Action: t.Action, Note: note, At: now})
	var postErr error
	if posts && saved.TotalAmount.IsPositive() {
		postErr = s.postApproval(ctx, caller, saved)
	}
	s.invalidate(ctx)
	if postErr != nil {
		return saved, postErr
	}
	return saved, nil
}

// postApproval books a supplier purchase credit or a customer invoice debit.
func (s *Service) postApproval(ctx context.Context, caller shared.Caller, doc documents.Document) error {
	entryType := ledger.EntryPurchase
	if doc.Kind == documents.KindInvoice {
		entryType = ledger.EntryInvoice
	}
	return s.postForDocument(ctx, caller, doc, entryType, doc.TotalAmount, "approval of "+doc.Number)
}

func (s *Service) postForDocument(ctx context.Context, caller shared.Caller, doc documents.Document, entryType ledger.EntryType, amount decimal.Decimal, description string) error {
	debit, credit, err := ledger.Direction(doc.PartyType, entryType, amount)
	if err != nil {
		return err
	}
	ref := doc.ID
	entry, err := s.ledger.Post(ctx, ledger.PostInput{
		PartyType:     doc.PartyType,
		PartyID:       doc.PartyID,
		EntryType:     entryType,
		Debit:         debit,
		Credit:        credit,
		Scope:         ledger.Scope{CountryID: doc.CountryID, BranchID: doc.BranchID},
		ReferenceType: doc.Kind.ReferenceType(),
		ReferenceID:   &ref,
		Description:   description,
		CreatedBy:     caller.UserID,
	})
	if err != nil {
		s.logger.Error("ledger post for document failed",
			slog.String("kind", string(doc.Kind)),
			slog.String("number", doc.Number),
			slog.Any("error", err),
		)
		return fmt.Errorf("finance: post %s for %s: %w", entryType, doc.Number, err)
	}
	s.observer.ObserveLedgerPost(string(entry.EntryType))
	return nil
}

// Edit applies an update body. A body holding only workflowStatus plus audit
// metadata is treated as a transition; mixing both is rejected.
func (s *Service) Edit(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID, body map[string]any) (documents.Document, error) {
	reqKind, err := workflow.Classify(body)
	if err != nil {
		return documents.Document{}, err
	}
	if reqKind == workflow.KindTransition {
		raw, _ := body[workflow.FieldWorkflowStatus].(string)
		target, err := workflow.ParseStatus(raw)
		if err != nil {
			return documents.Document{}, err
		}
		note, _ := body[workflow.FieldNote].(string)
		return s.Transition(ctx, caller, kind, id, target, note)
	}

	if kind.Financial() {
		unlock := s.docLocks.lock(id)
		defer unlock()
	}
	store, doc, err := s.load(ctx, caller, kind, id)
	if err != nil {
		return documents.Document{}, err
	}
	if err := s.guard.AssertEditable(ctx, doc.CountryID, doc.BranchID, doc.CreatedAt); err != nil {
		return documents.Document{}, s.checkLock(err, "edit")
	}
	reason, _ := body[workflow.FieldRevisionReason].(string)
	revision, err := workflow.CheckEdit(caller, doc.Workflow, reason)
	if err != nil {
		return documents.Document{}, err
	}
	next, diffFields, err := documents.ApplyEdit(doc, workflow.EditFields(body), body)
	if err != nil {
		return documents.Document{}, err
	}
	if kind.Financial() && !next.TransactionDate.Equal(doc.TransactionDate) {
		if err := s.guard.AssertNotLocked(ctx, doc.CountryID, doc.BranchID, next.TransactionDate); err != nil {
			return documents.Document{}, s.checkLock(err, "edit")
		}
	}

	now := s.now().UTC()
	if revision {
		changes, err := workflow.Diff(doc.Snapshot(), next.Snapshot(), diffFields)
		if err != nil {
			return documents.Document{}, err
		}
		if changes == nil {
			changes = []workflow.Change{}
		}
		next.Workflow = next.Workflow.AppendRevision(workflow.Revision{
			Changes:   changes,
			Reason:    reason,
			UpdatedBy: caller.UserID,
			UpdatedAt: now,
		})
	}
	next.UpdatedAt = now
	saved, err := store.Save(ctx, next, doc.Workflow.Status, doc.Version)
	if err != nil {
		return documents.Document{}, err
	}

	var postErr error
	if kind.Financial() && doc.Workflow.Status == workflow.StatusApproved {
		if delta := saved.TotalAmount.Sub(doc.TotalAmount); !delta.IsZero() {
			postErr = s.postForDocument(ctx, caller, saved, ledger.EntryAdjustment, delta, "revision of "+saved.Number+": "+reason)
			var statusErr error
			if saved, statusErr = s.refreshPaidStatus(ctx, store, saved); statusErr != nil {
				s.logger.Error("refresh payment status", slog.String("number", saved.Number), slog.Any("error", statusErr))
				postErr = errors.Join(postErr, statusErr)
			}
		}
	}
	s.invalidate(ctx)
	return saved, postErr
}

// Delete removes a Draft document.
func (s *Service) Delete(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID) error {
	store, doc, err := s.load(ctx, caller, kind, id)
	if err != nil {
		return err
	}
	if err := workflow.CheckDelete(caller, doc.Workflow); err != nil {
		return err
	}
	if err := store.DeleteDraft(ctx, id); err != nil {
		if errors.Is(err, documents.ErrStale) {
			return shared.NewError(shared.ErrInvalidTransition, "%s %s is no longer a draft", kind, doc.Number)
		}
		return err
	}
	s.invalidate(ctx)
	s.logger.Info("draft deleted", slog.String("kind", string(kind)), slog.String("number", doc.Number), slog.Int64("actor_id", caller.UserID))
	return nil
}

func (s *Service) load(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID) (documents.Store, documents.Document, error) {
	store, err := s.docs.For(kind)
	if err != nil {
		return nil, documents.Document{}, err
	}
	doc, err := store.Get(ctx, id)
	if err != nil {
		return nil, documents.Document{}, err
	}
	if err := visible(caller, doc.CountryID, doc.BranchID, string(kind)); err != nil {
		return nil, documents.Document{}, err
	}
	return store, doc, nil
}

func (s *Service) recordApproval(ctx context.Context, log shared.ApprovalLog) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, log); err != nil {
		s.logger.Warn("record approval", slog.String("module", log.Module), slog.Any("error", err))
	}
}
