package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/fincore/internal/shared"
)

var (
	staff       = shared.Caller{UserID: 1, Role: shared.RoleStaff}
	branchAdmin = shared.Caller{UserID: 2, Role: shared.RoleBranchAdmin}
	countryAdm  = shared.Caller{UserID: 3, Role: shared.RoleCountryAdmin}
	superAdmin  = shared.Caller{UserID: 4, Role: shared.RoleSuperAdmin}
	allStatuses = []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusLocked}
)

func TestFreshDocumentOnlySubmits(t *testing.T) {
	state := NewState()
	require.Equal(t, StatusDraft, state.Status)
	for _, to := range allStatuses {
		_, err := Lookup(state.Status, to)
		if to == StatusSubmitted {
			assert.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, shared.ErrInvalidTransition, "Draft -> %s", to)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		caller shared.Caller
		from   Status
		to     Status
		err    error
	}{
		{staff, StatusDraft, StatusSubmitted, nil},
		{branchAdmin, StatusDraft, StatusSubmitted, nil},
		{countryAdm, StatusDraft, StatusSubmitted, shared.ErrForbidden},
		{staff, StatusSubmitted, StatusDraft, shared.ErrForbidden},
		{branchAdmin, StatusSubmitted, StatusDraft, nil},
		{countryAdm, StatusSubmitted, StatusApproved, nil},
		{staff, StatusSubmitted, StatusApproved, shared.ErrForbidden},
		{branchAdmin, StatusApproved, StatusLocked, nil},
		{countryAdm, StatusApproved, StatusLocked, shared.ErrForbidden},
		{superAdmin, StatusApproved, StatusLocked, shared.ErrForbidden},
		{branchAdmin, StatusDraft, StatusApproved, shared.ErrInvalidTransition},
		{branchAdmin, StatusApproved, StatusSubmitted, shared.ErrInvalidTransition},
		{branchAdmin, StatusLocked, StatusApproved, shared.ErrInvalidTransition},
		{branchAdmin, StatusApproved, StatusApproved, shared.ErrInvalidTransition},
	}
	for _, tc := range cases {
		_, err := Authorize(tc.caller, tc.from, tc.to)
		if tc.err == nil {
			assert.NoError(t, err, "%s %s->%s", tc.caller.Role, tc.from, tc.to)
			continue
		}
		assert.ErrorIs(t, err, tc.err, "%s %s->%s", tc.caller.Role, tc.from, tc.to)
	}
}

func TestApplyStampsAndClears(t *testing.T) {
	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	state := NewState()

	submit, err := Lookup(StatusDraft, StatusSubmitted)
	require.NoError(t, err)
	state = state.Apply(submit, 1, at)
	require.NotNil(t, state.SubmittedBy)
	assert.Equal(t, int64(1), *state.SubmittedBy)

	reject, err := Lookup(StatusSubmitted, StatusDraft)
	require.NoError(t, err)
	rejected := state.Apply(reject, 2, at)
	assert.Equal(t, StatusDraft, rejected.Status)
	assert.Nil(t, rejected.SubmittedBy)
	assert.Nil(t, rejected.SubmittedAt)
	assert.NotNil(t, state.SubmittedBy, "apply does not mutate the receiver")

	approve, _ := Lookup(StatusSubmitted, StatusApproved)
	lock, _ := Lookup(StatusApproved, StatusLocked)
	state = state.Apply(approve, 3, at).Apply(lock, 2, at.Add(time.Hour))
	assert.Equal(t, StatusLocked, state.Status)
	assert.True(t, state.IsLocked)
	assert.Equal(t, int64(3), *state.ApprovedBy)
	assert.Equal(t, at.Add(time.Hour), *state.LockedAt)
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []Status{StatusDraft, StatusApproved}, Allowed(branchAdmin, StatusSubmitted))
	assert.Empty(t, Allowed(staff, StatusSubmitted))
	assert.Empty(t, Allowed(branchAdmin, StatusLocked))
}

func TestLockedRejectsEveryEdit(t *testing.T) {
	state := State{Status: StatusLocked, IsLocked: true}
	for _, caller := range []shared.Caller{staff, branchAdmin, countryAdm, superAdmin} {
		_, err := CheckEdit(caller, state, "fix typo")
		assert.ErrorIs(t, err, shared.ErrDocumentLocked, string(caller.Role))
	}
}

func TestEditPolicyByStatus(t *testing.T) {
	draft := State{Status: StatusDraft}
	submitted := State{Status: StatusSubmitted}
	approved := State{Status: StatusApproved}

	rev, err := CheckEdit(staff, draft, "")
	require.NoError(t, err)
	assert.False(t, rev)

	_, err = CheckEdit(staff, submitted, "")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = CheckEdit(branchAdmin, submitted, "")
	assert.NoError(t, err)

	_, err = CheckEdit(branchAdmin, approved, "  ")
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = CheckEdit(staff, approved, "price correction")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	rev, err = CheckEdit(branchAdmin, approved, "price correction")
	require.NoError(t, err)
	assert.True(t, rev)
}

func TestCheckDelete(t *testing.T) {
	assert.NoError(t, CheckDelete(branchAdmin, State{Status: StatusDraft}))
	assert.ErrorIs(t, CheckDelete(staff, State{Status: StatusDraft}), shared.ErrForbidden)
	assert.ErrorIs(t, CheckDelete(branchAdmin, State{Status: StatusSubmitted}), shared.ErrValidation)
}

func TestAppendRevisionCopies(t *testing.T) {
	base := NewState()
	next := base.AppendRevision(Revision{Reason: "r1"})
	assert.Empty(t, base.Revisions)
	assert.Len(t, next.Revisions, 1)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("Approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)
	_, err = ParseStatus("approved")
	assert.ErrorIs(t, err, shared.ErrValidation)
}
