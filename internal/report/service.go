package report

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/shared"
)

// Report names used in cache keys and metrics.
const (
	ReportSummary       = "summary"
	ReportConsolidation = "country_consolidation"
)

// DateRange bounds a report. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return shared.Validationf("date range end %s precedes start %s", r.To.Format(time.DateOnly), r.From.Format(time.DateOnly))
	}
	return nil
}

func (r DateRange) params() string {
	return dateToken(r.From) + ".." + dateToken(r.To)
}

func dateToken(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Filter narrows the aggregation queries.
type Filter struct {
	Scope shared.ScopeFilter
	Range DateRange
}

// LedgerRow is one grouped slice of ledger entries. USD amounts already
// default missing values to zero.
type LedgerRow struct {
	CountryID int64
	PartyType ledger.PartyType
	EntryType ledger.EntryType
	Count     int64
	DebitUSD  decimal.Decimal
	CreditUSD decimal.Decimal
}

// DocumentRow is one grouped slice of workflow documents.
type DocumentRow struct {
	CountryID      int64
	Kind           string
	WorkflowStatus string
	Count          int64
	Total          decimal.Decimal
	TotalUSD       decimal.Decimal
}

// Repository runs side-effect-free aggregation queries.
type Repository interface {
	LedgerTotals(ctx context.Context, filter Filter) ([]LedgerRow, error)
	DocumentTotals(ctx context.Context, filter Filter) ([]DocumentRow, error)
}

// DocumentBucket counts documents of one kind in one workflow status.
type DocumentBucket struct {
	Kind           string          `json:"kind"`
	WorkflowStatus string          `json:"workflowStatus"`
	Count          int64           `json:"count"`
	TotalUSD       decimal.Decimal `json:"totalUSD"`
}

// Figures are the USD aggregates shared by both reports.
type Figures struct {
	ReceivablesUSD      decimal.Decimal `json:"receivablesUSD"`
	PayablesUSD         decimal.Decimal `json:"payablesUSD"`
	SalesUSD            decimal.Decimal `json:"salesUSD"`
	PurchasesUSD        decimal.Decimal `json:"purchasesUSD"`
	PaymentsReceivedUSD decimal.Decimal `json:"paymentsReceivedUSD"`
	PaymentsMadeUSD     decimal.Decimal `json:"paymentsMadeUSD"`
	LedgerEntries       int64           `json:"ledgerEntries"`
	Documents           int64           `json:"documents"`
}

// Summary is the scoped aggregate for the caller.
type Summary struct {
	Figures
	Scope       shared.ScopeFilter `json:"scope"`
	From        *time.Time         `json:"from,omitempty"`
	To          *time.Time         `json:"to,omitempty"`
	Breakdown   []DocumentBucket   `json:"documentBreakdown"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// CountryFigures is one consolidation line.
type CountryFigures struct {
	CountryID int64 `json:"countryId"`
	Figures
}

// Consolidation lists figures per country plus the grand total.
type Consolidation struct {
	From        *time.Time       `json:"from,omitempty"`
	To          *time.Time       `json:"to,omitempty"`
	Countries   []CountryFigures `json:"countries"`
	Total       Figures          `json:"total"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

func (f *Figures) addLedger(row LedgerRow) {
	f.LedgerEntries += row.Count
	switch row.PartyType {
	case ledger.PartyCustomer:
		f.ReceivablesUSD = f.ReceivablesUSD.Add(row.DebitUSD).Sub(row.CreditUSD)
		switch row.EntryType {
		case ledger.EntryInvoice:
			f.SalesUSD = f.SalesUSD.Add(row.DebitUSD)
		case ledger.EntryPayment:
			f.PaymentsReceivedUSD = f.PaymentsReceivedUSD.Add(row.CreditUSD)
		}
	case ledger.PartySupplier:
		f.PayablesUSD = f.PayablesUSD.Add(row.CreditUSD).Sub(row.DebitUSD)
		switch row.EntryType {
		case ledger.EntryPurchase:
			f.PurchasesUSD = f.PurchasesUSD.Add(row.CreditUSD)
		case ledger.EntryPayment:
			f.PaymentsMadeUSD = f.PaymentsMadeUSD.Add(row.DebitUSD)
		}
	}
}

func (f *Figures) add(other Figures) {
	f.ReceivablesUSD = f.ReceivablesUSD.Add(other.ReceivablesUSD)
	f.PayablesUSD = f.PayablesUSD.Add(other.PayablesUSD)
	f.SalesUSD = f.SalesUSD.Add(other.SalesUSD)
	f.PurchasesUSD = f.PurchasesUSD.Add(other.PurchasesUSD)
	f.PaymentsReceivedUSD = f.PaymentsReceivedUSD.Add(other.PaymentsReceivedUSD)
	f.PaymentsMadeUSD = f.PaymentsMadeUSD.Add(other.PaymentsMadeUSD)
	f.LedgerEntries += other.LedgerEntries
	f.Documents += other.Documents
}

// BuildSummary folds the grouped rows into one summary.
func BuildSummary(ledgerRows []LedgerRow, docRows []DocumentRow) Summary {
	var s Summary
	for _, row := range ledgerRows {
		s.addLedger(row)
	}
	buckets := make(map[[2]string]*DocumentBucket)
	for _, row := range docRows {
		s.Documents += row.Count
		k := [2]string{row.Kind, row.WorkflowStatus}
		b, ok := buckets[k]
		if !ok {
			b = &DocumentBucket{Kind: row.Kind, WorkflowStatus: row.WorkflowStatus}
			buckets[k] = b
		}
		b.Count += row.Count
		b.TotalUSD = b.TotalUSD.Add(row.TotalUSD)
	}
	s.Breakdown = make([]DocumentBucket, 0, len(buckets))
	for _, b := range buckets {
		s.Breakdown = append(s.Breakdown, *b)
	}
	sort.Slice(s.Breakdown, func(i, j int) bool {
		if s.Breakdown[i].Kind != s.Breakdown[j].Kind {
			return s.Breakdown[i].Kind < s.Breakdown[j].Kind
		}
		return s.Breakdown[i].WorkflowStatus < s.Breakdown[j].WorkflowStatus
	})
	return s
}

// BuildConsolidation groups the rows per country, ordered by country id.
func BuildConsolidation(ledgerRows []LedgerRow, docRows []DocumentRow) Consolidation {
	byCountry := make(map[int64]*CountryFigures)
	get := func(id int64) *CountryFigures {
		cf, ok := byCountry[id]
		if !ok {
			cf = &CountryFigures{CountryID: id}
			byCountry[id] = cf
		}
		return cf
	}
	for _, row := range ledgerRows {
		get(row.CountryID).addLedger(row)
	}
	for _, row := range docRows {
		get(row.CountryID).Documents += row.Count
	}
	var c Consolidation
	c.Countries = make([]CountryFigures, 0, len(byCountry))
	for _, cf := range byCountry {
		c.Countries = append(c.Countries, *cf)
		c.Total.add(cf.Figures)
	}
	sort.Slice(c.Countries, func(i, j int) bool { return c.Countries[i].CountryID < c.Countries[j].CountryID })
	return c
}

// Service serves cached, caller-scoped reports.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the report service around a shared cache.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock used for GeneratedAt.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) key(report string, caller shared.Caller, scope shared.ScopeFilter, r DateRange) Key {
	return Key{Report: report, Role: caller.Role, CountryID: scope.CountryID, BranchID: scope.BranchID, Params: r.params()}
}

// GetSummary aggregates ledger and document totals within the caller scope.
func (s *Service) GetSummary(ctx context.Context, caller shared.Caller, r DateRange) (Summary, error) {
	if err := caller.Require(shared.CapViewReports); err != nil {
		return Summary{}, err
	}
	if err := r.Validate(); err != nil {
		return Summary{}, err
	}
	scope := caller.Scope()
	filter := Filter{Scope: scope, Range: r}
	return Fetch(ctx, s.cache, s.key(ReportSummary, caller, scope, r), func(ctx context.Context) (Summary, error) {
		ledgerRows, err := s.repo.LedgerTotals(ctx, filter)
		if err != nil {
			return Summary{}, err
		}
		docRows, err := s.repo.DocumentTotals(ctx, filter)
		if err != nil {
			return Summary{}, err
		}
		summary := BuildSummary(ledgerRows, docRows)
		summary.Scope = scope
		summary.From, summary.To = r.From, r.To
		summary.GeneratedAt = s.now().UTC()
		s.logger.Debug("summary report computed", slog.String("role", string(caller.Role)), slog.Int64("entries", summary.LedgerEntries))
		return summary, nil
	})
}

// GetCountryConsolidation returns per-country totals within the caller scope.
func (s *Service) GetCountryConsolidation(ctx context.Context, caller shared.Caller, r DateRange) (Consolidation, error) {
	if err := caller.Require(shared.CapViewReports); err != nil {
		return Consolidation{}, err
	}
	if err := r.Validate(); err != nil {
		return Consolidation{}, err
	}
	scope := caller.Scope()
	filter := Filter{Scope: scope, Range: r}
	return Fetch(ctx, s.cache, s.key(ReportConsolidation, caller, scope, r), func(ctx context.Context) (Consolidation, error) {
		ledgerRows, err := s.repo.LedgerTotals(ctx, filter)
		if err != nil {
			return Consolidation{}, err
		}
		docRows, err := s.repo.DocumentTotals(ctx, filter)
		if err != nil {
			return Consolidation{}, err
		}
		c := BuildConsolidation(ledgerRows, docRows)
		c.From, c.To = r.From, r.To
		c.GeneratedAt = s.now().UTC()
		return c, nil
	})
}
