package workflow

import (
	"strings"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// EditCapability returns the capability required to edit a document in status.
// Locked documents cannot be edited by anyone.
func EditCapability(status Status) (shared.Capability, error) {
	switch status {
	case StatusDraft:
		return shared.CapEditDraft, nil
	case StatusSubmitted:
		return shared.CapEditSubmitted, nil
	case StatusApproved:
		return shared.CapEditApproved, nil
	case StatusLocked:
		return "", shared.NewError(shared.ErrDocumentLocked, "document is locked")
	default:
		return "", shared.Validationf("unknown workflow status %q", status)
	}
}

// CheckEdit applies the field-edit policy and reports whether the edit must be
// recorded as a revision.
func CheckEdit(caller shared.Caller, state State, reason string) (revision bool, err error) {
	if state.IsLocked {
		return false, shared.NewError(shared.ErrDocumentLocked, "document is locked")
	}
	capability, err := EditCapability(state.Status)
	if err != nil {
		return false, err
	}
	if err := caller.Require(capability); err != nil {
		return false, err
	}
	if state.Status != StatusApproved {
		return false, nil
	}
	if strings.TrimSpace(reason) == "" {
		return false, shared.Validationf("revisionReason is required to edit an approved document")
	}
	return true, nil
}

// CheckDelete permits deletion only in Draft and only for branch admins.
func CheckDelete(caller shared.Caller, state State) error {
	if state.Status != StatusDraft {
		return shared.Validationf("only draft documents can be deleted")
	}
	return caller.Require(shared.CapDeleteDraft)
}
