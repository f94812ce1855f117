// Package reporthttp serves the cached financial reports.
package reporthttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/fincore/internal/platform/httpx"
	"github.com/odyssey-erp/fincore/internal/report"
	"github.com/odyssey-erp/fincore/internal/shared"
)

// Service produces the report payloads.
type Service interface {
	GetSummary(ctx context.Context, caller shared.Caller, r report.DateRange) (report.Summary, error)
	GetCountryConsolidation(ctx context.Context, caller shared.Caller, r report.DateRange) (report.Consolidation, error)
}

// Handler serves report endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/summary", h.handleSummary)
	r.Get("/reports/consolidation", h.handleConsolidation)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	caller, dr, ok := h.prepare(w, r)
	if !ok {
		return
	}
	summary, err := h.service.GetSummary(r.Context(), caller, dr)
	if err != nil {
		h.fail(w, "summary report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleConsolidation(w http.ResponseWriter, r *http.Request) {
	caller, dr, ok := h.prepare(w, r)
	if !ok {
		return
	}
	c, err := h.service.GetCountryConsolidation(r.Context(), caller, dr)
	if err != nil {
		h.fail(w, "country consolidation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (shared.Caller, report.DateRange, bool) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return shared.Caller{}, report.DateRange{}, false
	}
	dr, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Caller{}, report.DateRange{}, false
	}
	return caller, dr, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// parseRange reads from/to as dates. The to date covers the whole day.
func parseRange(r *http.Request) (report.DateRange, error) {
	var dr report.DateRange
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return dr, shared.Validationf("invalid from date %q", raw)
		}
		dr.From = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return dr, shared.Validationf("invalid to date %q", raw)
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		dr.To = &end
	}
	return dr, dr.Validate()
}
