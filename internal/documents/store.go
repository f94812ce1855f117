package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

// ErrStale is returned when a conditional write finds the document changed.
var ErrStale = shared.NewError(shared.ErrConflict, "document was modified concurrently")

// Store persists one kind of document.
type Store interface {
	Create(ctx context.Context, doc Document) error
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	// Save writes doc only if the stored row still has the expected workflow
	// status and version. It bumps the version and fails with ErrStale otherwise.
	Save(ctx context.Context, doc Document, expected workflow.Status, expectedVersion int64) (Document, error)
	// SetStatus updates the domain status without touching the workflow.
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	// DeleteDraft removes the document only while it is in Draft.
	DeleteDraft(ctx context.Context, id uuid.UUID) error
}

// BranchDirectory resolves branch codes for numbering.
type BranchDirectory interface {
	GetBranch(ctx context.Context, branchID int64) (Branch, error)
}

// Registry dispatches each kind to its store.
type Registry struct {
	stores map[Kind]Store
}

// NewRegistry builds a registry from explicit per-kind stores.
func NewRegistry(stores map[Kind]Store) *Registry {
	copied := make(map[Kind]Store, len(stores))
	for k, s := range stores {
		copied[k] = s
	}
	return &Registry{stores: copied}
}

// For returns the store for kind.
func (r *Registry) For(kind Kind) (Store, error) {
	store, ok := r.stores[kind]
	if !ok {
		return nil, shared.Validationf("unsupported document kind %q", kind)
	}
	return store, nil
}
