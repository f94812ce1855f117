// Package financehttp exposes the financial operations over JSON.
package financehttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/documents"
	"github.com/odyssey-erp/fincore/internal/finance"
	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/periodlock"
	"github.com/odyssey-erp/fincore/internal/platform/httpx"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

// IdempotencyHeader carries the client supplied key for postings and payments.
const IdempotencyHeader = "Idempotency-Key"

// Service is the subset of finance.Service the handler drives.
type Service interface {
	CreateDocument(ctx context.Context, caller shared.Caller, in finance.CreateInput) (documents.Document, error)
	GetDocument(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID) (documents.Document, error)
	History(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID) ([]shared.ApprovalLog, error)
	Transition(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID, target workflow.Status, note string) (documents.Document, error)
	Edit(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID, body map[string]any) (documents.Document, error)
	Delete(ctx context.Context, caller shared.Caller, kind documents.Kind, id uuid.UUID) error
	PostLedgerEntry(ctx context.Context, caller shared.Caller, in finance.PostEntryInput) (ledger.Entry, error)
	Pay(ctx context.Context, caller shared.Caller, in finance.PayInput) (finance.PaymentResult, error)
	GetLedger(ctx context.Context, caller shared.Caller, partyType ledger.PartyType, partyID int64) (ledger.Statement, error)
	GetOutstanding(ctx context.Context, caller shared.Caller, partyType ledger.PartyType) ([]ledger.Outstanding, error)
	SetLockDate(ctx context.Context, caller shared.Caller, in periodlock.SetLockInput) error
	LockStatus(ctx context.Context, caller shared.Caller, countryID, branchID int64) (periodlock.Status, error)
}

// Handler serves document, ledger and lock endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the financial endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents/{kind}", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleEdit)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/transition", h.handleTransition)
		r.Post("/{id}/payments", h.handlePay)
		r.Get("/{id}/history", h.handleHistory)
	})
	r.Post("/ledger/entries", h.handlePostEntry)
	r.Get("/ledger/{partyType}/{partyID}", h.handleLedger)
	r.Get("/outstanding/{partyType}", h.handleOutstanding)
	r.Put("/locks", h.handleSetLock)
	r.Get("/locks", h.handleLockStatus)
}

type createRequest struct {
	PartyID         int64            `json:"partyId" validate:"required,gt=0"`
	Lines           []documents.Line `json:"lines" validate:"omitempty,dive"`
	TransactionDate string           `json:"transactionDate" validate:"required"`
	DueDate         string           `json:"dueDate"`
	Reference       string           `json:"reference" validate:"max=120"`
	Notes           string           `json:"notes"`
	Attributes      map[string]any   `json:"attributes"`
}

type transitionRequest struct {
	WorkflowStatus string `json:"workflowStatus" validate:"required"`
	Note           string `json:"note"`
}

type postEntryRequest struct {
	PartyType   string          `json:"partyType" validate:"required,oneof=customer supplier"`
	PartyID     int64           `json:"partyId" validate:"required,gt=0"`
	EntryType   string          `json:"entryType" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

type payRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type lockRequest struct {
	CountryID *int64 `json:"countryId"`
	BranchID  *int64 `json:"branchId"`
	Until     string `json:"until"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, kind, ok := h.callerAndKind(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	txDate, err := shared.ParseDate(req.TransactionDate)
	if err != nil {
		h.fail(w, "create document", err)
		return
	}
	var due *time.Time
	if req.DueDate != "" {
		d, err := shared.ParseDate(req.DueDate)
		if err != nil {
			h.fail(w, "create document", err)
			return
		}
		due = &d
	}
	doc, err := h.service.CreateDocument(r.Context(), caller, finance.CreateInput{
		Kind:            kind,
		PartyID:         req.PartyID,
		Lines:           req.Lines,
		TransactionDate: txDate,
		DueDate:         due,
		Reference:       req.Reference,
		Notes:           req.Notes,
		Attributes:      req.Attributes,
	})
	if err != nil {
		h.fail(w, "create document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	caller, kind, id, ok := h.documentRef(w, r)
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(r.Context(), caller, kind, id)
	if err != nil {
		h.fail(w, "get document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	caller, kind, id, ok := h.documentRef(w, r)
	if !ok {
		return
	}
	logs, err := h.service.History(r.Context(), caller, kind, id)
	if err != nil {
		h.fail(w, "document history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	caller, kind, id, ok := h.documentRef(w, r)
	if !ok {
		return
	}
	body, err := httpx.DecodeMap(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Edit(r.Context(), caller, kind, id, body)
	if err != nil {
		h.fail(w, "edit document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	caller, kind, id, ok := h.documentRef(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	target, err := workflow.ParseStatus(req.WorkflowStatus)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Transition(r.Context(), caller, kind, id, target, req.Note)
	if err != nil {
		h.fail(w, "transition document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	caller, kind, id, ok := h.documentRef(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), caller, kind, id); err != nil {
		h.fail(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	caller, kind, id, ok := h.documentRef(w, r)
	if !ok {
		return
	}
	var req payRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Pay(r.Context(), caller, finance.PayInput{
		Kind:           kind,
		ID:             id,
		Amount:         req.Amount,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		h.fail(w, "pay document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req postEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.service.PostLedgerEntry(r.Context(), caller, finance.PostEntryInput{
		PartyType:      ledger.PartyType(req.PartyType),
		PartyID:        req.PartyID,
		EntryType:      ledger.EntryType(req.EntryType),
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		h.fail(w, "post ledger entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	partyType, err := parsePartyType(chi.URLParam(r, "partyType"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	partyID, err := strconv.ParseInt(chi.URLParam(r, "partyID"), 10, 64)
	if err != nil || partyID <= 0 {
		httpx.RespondError(w, shared.Validationf("invalid party id"))
		return
	}
	statement, err := h.service.GetLedger(r.Context(), caller, partyType, partyID)
	if err != nil {
		h.fail(w, "get ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	partyType, err := parsePartyType(chi.URLParam(r, "partyType"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.GetOutstanding(r.Context(), caller, partyType)
	if err != nil {
		h.fail(w, "get outstanding", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleSetLock(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := periodlock.SetLockInput{CountryID: req.CountryID, BranchID: req.BranchID}
	if req.Until != "" {
		until, err := shared.ParseDate(req.Until)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.Until = &until
	}
	if err := h.service.SetLockDate(r.Context(), caller, in); err != nil {
		h.fail(w, "set lock date", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	countryID, err := queryID(r, "countryId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	branchID, err := queryID(r, "branchId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := h.service.LockStatus(r.Context(), caller, countryID, branchID)
	if err != nil {
		h.fail(w, "lock status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (shared.Caller, bool) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return shared.Caller{}, false
	}
	return caller, true
}

func (h *Handler) callerAndKind(w http.ResponseWriter, r *http.Request) (shared.Caller, documents.Kind, bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return shared.Caller{}, "", false
	}
	kind, err := documents.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Caller{}, "", false
	}
	return caller, kind, true
}

func (h *Handler) documentRef(w http.ResponseWriter, r *http.Request) (shared.Caller, documents.Kind, uuid.UUID, bool) {
	caller, kind, ok := h.callerAndKind(w, r)
	if !ok {
		return shared.Caller{}, "", uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid document id"))
		return shared.Caller{}, "", uuid.Nil, false
	}
	return caller, kind, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			httpx.RespondError(w, shared.Validationf("%s failed %s", fe.Namespace(), fe.Tag()))
			return false
		}
		httpx.RespondError(w, shared.Validationf("%v", err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(IdempotencyHeader))
}

func parsePartyType(raw string) (ledger.PartyType, error) {
	pt := ledger.PartyType(raw)
	if !pt.Valid() {
		return "", ledger.ErrInvalidPartyType
	}
	return pt, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, shared.Validationf("invalid %s", name)
	}
	return id, nil
}
