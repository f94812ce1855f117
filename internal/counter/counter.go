// Package counter allocates collision-free document sequence numbers.
package counter

import (
	"context"
	"fmt"
	"strings"
)

// Store performs an atomic increment-and-read for key.
type Store interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// Service formats sequence numbers into human readable document numbers.
type Service struct {
	store Store
	width int
}

// NewService constructs a counter service. Sequences are zero padded to five digits.
func NewService(store Store) *Service {
	return &Service{store: store, width: 5}
}

// Next returns the next sequence value for key.
func (s *Service) Next(ctx context.Context, key string) (int64, error) {
	if strings.TrimSpace(key) == "" {
		return 0, fmt.Errorf("counter: key required")
	}
	seq, err := s.store.Increment(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("counter: increment %s: %w", key, err)
	}
	return seq, nil
}

// NextNumber allocates the next number for prefix within a branch, e.g. BILL-LHR-00001.
func (s *Service) NextNumber(ctx context.Context, prefix string, branchID int64, branchCode string) (string, error) {
	seq, err := s.Next(ctx, Key(prefix, branchID))
	if err != nil {
		return "", err
	}
	return Format(prefix, branchCode, seq, s.width), nil
}

// Key builds the composite counter key for a prefix and branch.
func Key(prefix string, branchID int64) string {
	return fmt.Sprintf("%s:%d", strings.ToUpper(prefix), branchID)
}

// Format renders a document number.
func Format(prefix, branchCode string, seq int64, width int) string {
	code := strings.ToUpper(strings.TrimSpace(branchCode))
	if code == "" {
		return fmt.Sprintf("%s-%0*d", strings.ToUpper(prefix), width, seq)
	}
	return fmt.Sprintf("%s-%s-%0*d", strings.ToUpper(prefix), code, width, seq)
}
