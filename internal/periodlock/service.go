package periodlock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// Writer persists lock dates. A nil date clears the lock.
type Writer interface {
	SetGlobalLockUntil(ctx context.Context, until *time.Time) error
	SetCountryLockUntil(ctx context.Context, countryID int64, until *time.Time) error
	SetBranchLockUntil(ctx context.Context, branchID int64, until *time.Time) error
	BranchCountry(ctx context.Context, branchID int64) (int64, error)
}

// AuditSink records lock date changes.
type AuditSink interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SetLockInput targets one scope. Both ids nil means the global lock.
type SetLockInput struct {
	CountryID *int64
	BranchID  *int64
	Until     *time.Time
}

// Level returns the scope the input addresses.
func (in SetLockInput) Level() Level {
	switch {
	case in.BranchID != nil:
		return LevelBranch
	case in.CountryID != nil:
		return LevelCountry
	default:
		return LevelGlobal
	}
}

// Service manages lock dates.
type Service struct {
	writer Writer
	audit  AuditSink
	logger *slog.Logger
}

// NewService constructs the lock date service.
func NewService(writer Writer, audit AuditSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{writer: writer, audit: audit, logger: logger}
}

// SetLockDate changes the lock date at the requested scope after checking the caller may do so.
func (s *Service) SetLockDate(ctx context.Context, caller shared.Caller, in SetLockInput) error {
	if in.BranchID != nil && in.CountryID != nil {
		return shared.Validationf("lock scope must be either country or branch")
	}
	var branchCountry int64
	if in.BranchID != nil {
		var err error
		branchCountry, err = s.writer.BranchCountry(ctx, *in.BranchID)
		if err != nil {
			return err
		}
	}
	if !caller.CanSetLock(in.CountryID, in.BranchID, branchCountry) {
		return shared.Forbiddenf("role %q cannot change the %s lock date", caller.Role, in.Level())
	}

	var (
		err      error
		entityID string
	)
	switch in.Level() {
	case LevelBranch:
		err = s.writer.SetBranchLockUntil(ctx, *in.BranchID, in.Until)
		entityID = strconv.FormatInt(*in.BranchID, 10)
	case LevelCountry:
		err = s.writer.SetCountryLockUntil(ctx, *in.CountryID, in.Until)
		entityID = strconv.FormatInt(*in.CountryID, 10)
	default:
		err = s.writer.SetGlobalLockUntil(ctx, in.Until)
		entityID = "global"
	}
	if err != nil {
		return fmt.Errorf("periodlock: set %s lock: %w", in.Level(), err)
	}

	meta := map[string]any{"level": string(in.Level())}
	if in.Until != nil {
		meta["until"] = in.Until.Format(time.RFC3339)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  caller.UserID,
			Action:   shared.AuditLockChanged,
			Entity:   "accounting_lock_" + string(in.Level()),
			EntityID: entityID,
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("audit lock date change", slog.Any("error", err), slog.String("level", string(in.Level())))
		}
	}
	s.logger.Info("accounting lock date changed", slog.String("level", string(in.Level())), slog.String("entity_id", entityID), slog.Int64("actor_id", caller.UserID))
	return nil
}
