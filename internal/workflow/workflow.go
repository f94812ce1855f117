// Package workflow implements the Draft, Submitted, Approved, Locked document lifecycle.
package workflow

import (
	"time"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// Status is the workflow position of a document, independent of its domain status.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusLocked    Status = "Locked"
)

// ParseStatus validates a status name.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusLocked:
		return s, nil
	}
	return "", shared.Validationf("unknown workflow status %q", raw)
}

// Change is one field difference captured in a revision.
type Change struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// Revision is an audited edit of an Approved document.
type Revision struct {
	Changes   []Change  `json:"changes"`
	Reason    string    `json:"reason"`
	UpdatedBy int64     `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the workflow portion shared by every workflow-bearing document.
type State struct {
	Status      Status     `json:"workflow_status"`
	SubmittedBy *int64     `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy  *int64     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	LockedBy    *int64     `json:"locked_by,omitempty"`
	LockedAt    *time.Time `json:"locked_at,omitempty"`
	IsLocked    bool       `json:"is_locked"`
	Revisions   []Revision `json:"revisions"`
}

// NewState returns the state of a freshly created document.
func NewState() State {
	return State{Status: StatusDraft, Revisions: []Revision{}}
}

// Apply returns the state after t, stamping or clearing the actor fields.
func (s State) Apply(t Transition, actorID int64, at time.Time) State {
	next := s
	next.Status = t.To
	actor := actorID
	stamp := at
	switch {
	case t.From == StatusDraft && t.To == StatusSubmitted:
		next.SubmittedBy, next.SubmittedAt = &actor, &stamp
	case t.From == StatusSubmitted && t.To == StatusDraft:
		next.SubmittedBy, next.SubmittedAt = nil, nil
	case t.To == StatusApproved:
		next.ApprovedBy, next.ApprovedAt = &actor, &stamp
	case t.To == StatusLocked:
		next.LockedBy, next.LockedAt = &actor, &stamp
	}
	next.IsLocked = next.Status == StatusLocked
	return next
}

// AppendRevision returns a copy of s with rev appended.
func (s State) AppendRevision(rev Revision) State {
	next := s
	next.Revisions = append(append(make([]Revision, 0, len(s.Revisions)+1), s.Revisions...), rev)
	return next
}
