package workflow

import "github.com/odyssey-erp/fincore/internal/shared"

// Transition is one permitted edge of the lifecycle.
type Transition struct {
	From       Status
	To         Status
	Capability shared.Capability
	Action     shared.ApprovalAction
}

var transitions = []Transition{
	{From: StatusDraft, To: StatusSubmitted, Capability: shared.CapSubmit, Action: shared.ApprovalSubmit},
	{From: StatusSubmitted, To: StatusDraft, Capability: shared.CapReject, Action: shared.ApprovalReject},
	{From: StatusSubmitted, To: StatusApproved, Capability: shared.CapApprove, Action: shared.ApprovalApprove},
	{From: StatusApproved, To: StatusLocked, Capability: shared.CapLock, Action: shared.ApprovalLock},
}

// Lookup finds the edge from -> to or fails with shared.ErrInvalidTransition.
func Lookup(from, to Status) (Transition, error) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, nil
		}
	}
	return Transition{}, shared.NewError(shared.ErrInvalidTransition, "cannot move from %s to %s", from, to)
}

// Authorize resolves the edge and checks the caller holds its capability.
func Authorize(caller shared.Caller, from, to Status) (Transition, error) {
	t, err := Lookup(from, to)
	if err != nil {
		return Transition{}, err
	}
	if err := caller.Require(t.Capability); err != nil {
		return Transition{}, err
	}
	return t, nil
}

// Allowed lists the targets the caller may move a document to from its current status.
func Allowed(caller shared.Caller, from Status) []Status {
	var out []Status
	for _, t := range transitions {
		if t.From == from && caller.Role.Can(t.Capability) {
			out = append(out, t.To)
		}
	}
	return out
}
