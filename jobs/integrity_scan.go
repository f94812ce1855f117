package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/fincore/internal/documents"
	jobmetrics "github.com/odyssey-erp/fincore/internal/jobs"
	"github.com/odyssey-erp/fincore/internal/platform/db"
)

const (
	integrityLockKey     = "fincore:jobs:ledger_integrity_scan"
	defaultIntegrityTTL  = 10 * time.Minute
	defaultIntegrityScan = 500
)

// Finding categories reported by the scan.
const (
	FindingOrphanEntry     = "orphan_ledger_entry"
	FindingMissingSnapshot = "missing_usd_snapshot"
)

// OrphanEntry is a ledger entry whose referenced document no longer exists.
type OrphanEntry struct {
	EntryID       uuid.UUID
	ReferenceType string
	ReferenceID   uuid.UUID
}

// MissingSnapshot is a document stored without a usable USD conversion.
type MissingSnapshot struct {
	Kind      documents.Kind
	ID        uuid.UUID
	Number    string
	CountryID int64
}

// IntegritySource runs the read-only integrity queries.
type IntegritySource interface {
	OrphanEntries(ctx context.Context, limit int) ([]OrphanEntry, error)
	DocumentsWithoutUSD(ctx context.Context, limit int) ([]MissingSnapshot, error)
}

// Locker obtains the cluster-wide scan lock.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// IntegrityReport summarises one scan.
type IntegrityReport struct {
	Orphans  []OrphanEntry
	Missing  []MissingSnapshot
	Skipped  bool
	Duration time.Duration
}

// IntegrityScanJob reports inconsistencies left by half-completed operations.
// It never modifies data.
type IntegrityScanJob struct {
	Source  IntegritySource
	Locker  Locker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
	clock   func() time.Time
}

// NewIntegrityScanJob initialises the scan handler.
func NewIntegrityScanJob(source IntegritySource, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{
		Source:  source,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		LockTTL: defaultIntegrityTTL,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes a scan from an asynq task.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run scans once unless another worker holds the lock.
func (j *IntegrityScanJob) Run(ctx context.Context, payload IntegrityScanPayload) (IntegrityReport, error) {
	if j.Source == nil {
		return IntegrityReport{}, errors.New("integrity scan: source not configured")
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultIntegrityScan
	}
	logger := j.logger().With(slog.Int("limit", payload.Limit))

	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, integrityLockKey, j.lockTTL(), nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("integrity scan already running elsewhere")
			return IntegrityReport{Skipped: true}, nil
		}
		if err != nil {
			return IntegrityReport{}, fmt.Errorf("integrity scan: obtain lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.Warn("release integrity lock", slog.Any("error", err))
			}
		}()
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrityScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger.Info("starting ledger integrity scan")

	orphans, err := j.Source.OrphanEntries(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("orphan scan failed", slog.Any("error", err))
		return IntegrityReport{}, resultErr
	}
	missing, err := j.Source.DocumentsWithoutUSD(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("snapshot scan failed", slog.Any("error", err))
		return IntegrityReport{}, resultErr
	}

	for _, o := range orphans {
		logger.Warn("orphaned ledger entry",
			slog.String("entry_id", o.EntryID.String()),
			slog.String("reference_type", o.ReferenceType),
			slog.String("reference_id", o.ReferenceID.String()),
		)
	}
	for _, m := range missing {
		logger.Warn("document without USD snapshot",
			slog.String("kind", string(m.Kind)),
			slog.String("id", m.ID.String()),
			slog.String("number", m.Number),
			slog.Int64("country_id", m.CountryID),
		)
	}
	j.metrics().AddFindings(FindingOrphanEntry, len(orphans))
	j.metrics().AddFindings(FindingMissingSnapshot, len(missing))

	report := IntegrityReport{Orphans: orphans, Missing: missing, Duration: j.now().Sub(start)}
	logger.Info("completed ledger integrity scan",
		slog.Int("orphans", len(orphans)),
		slog.Int("missing_snapshots", len(missing)),
		slog.Duration("duration", report.Duration),
	)
	return report, resultErr
}

func (j *IntegrityScanJob) lockTTL() time.Duration {
	if j.LockTTL > 0 {
		return j.LockTTL
	}
	return defaultIntegrityTTL
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrityScan))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrityScan))
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// PGIntegritySource queries the ledger and document tables.
type PGIntegritySource struct {
	db db.DBTX
}

// NewPGIntegritySource constructs the source.
func NewPGIntegritySource(conn db.DBTX) *PGIntegritySource {
	return &PGIntegritySource{db: conn}
}

// OrphanEntries lists entries referencing a document that does not exist.
func (s *PGIntegritySource) OrphanEntries(ctx context.Context, limit int) ([]OrphanEntry, error) {
	var out []OrphanEntry
	for _, kind := range documents.Kinds() {
		remaining := limit - len(out)
		if remaining <= 0 {
			break
		}
		rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT l.id, l.reference_type, l.reference_id
FROM ledger_entries l
WHERE l.reference_type = $1 AND l.reference_id IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM %s d WHERE d.id = l.reference_id)
ORDER BY l.created_at
LIMIT $2`, kind.Table()), string(kind.ReferenceType()), remaining)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var o OrphanEntry
			if err := rows.Scan(&o.EntryID, &o.ReferenceType, &o.ReferenceID); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, o)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DocumentsWithoutUSD lists documents missing a rate or a USD total.
func (s *PGIntegritySource) DocumentsWithoutUSD(ctx context.Context, limit int) ([]MissingSnapshot, error) {
	var out []MissingSnapshot
	for _, kind := range documents.Kinds() {
		remaining := limit - len(out)
		if remaining <= 0 {
			break
		}
		rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT id, number, country_id FROM %s
WHERE total_usd IS NULL OR exchange_rate_used IS NULL OR exchange_rate_used <= 0
ORDER BY created_at
LIMIT $1`, kind.Table()), remaining)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			m := MissingSnapshot{Kind: kind}
			if err := rows.Scan(&m.ID, &m.Number, &m.CountryID); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
