package ledger

import "github.com/odyssey-erp/fincore/internal/shared"

var (
	// ErrInvalidPartyType is returned for party types other than customer or supplier.
	ErrInvalidPartyType = shared.NewError(shared.ErrValidation, "ledger: party type must be customer or supplier")
	// ErrInvalidEntryType is returned for unknown entry types.
	ErrInvalidEntryType = shared.NewError(shared.ErrValidation, "ledger: unknown entry type")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = shared.NewError(shared.ErrValidation, "ledger: amount must be positive")
	// ErrEntryNotAllowed is returned when an entry type does not apply to the party type.
	ErrEntryNotAllowed = shared.NewError(shared.ErrValidation, "ledger: entry type not allowed for party type")
)
