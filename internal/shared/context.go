package shared

import (
	"context"
	"slices"
)

// Caller identifies the user acting on a request together with their scope.
type Caller struct {
	UserID    int64
	Role      Role
	CountryID *int64
	BranchID  *int64
}

// ScopeFilter narrows reads to a country and/or branch. Nil fields are unrestricted.
type ScopeFilter struct {
	CountryID *int64 `json:"countryId,omitempty"`
	BranchID  *int64 `json:"branchId,omitempty"`
}

type callerContextKey struct{}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}

// Scope returns the read filter implied by the caller role.
func (c Caller) Scope() ScopeFilter {
	switch c.Role {
	case RoleSuperAdmin:
		return ScopeFilter{}
	case RoleCountryAdmin:
		return ScopeFilter{CountryID: c.CountryID}
	default:
		return ScopeFilter{CountryID: c.CountryID, BranchID: c.BranchID}
	}
}

// InScope reports whether a record owned by country/branch is visible to the caller.
func (c Caller) InScope(countryID, branchID int64) bool {
	return c.Scope().Allows(countryID, branchID)
}

// Allows reports whether the filter admits the given owner.
func (f ScopeFilter) Allows(countryID, branchID int64) bool {
	if f.CountryID != nil && *f.CountryID != countryID {
		return false
	}
	if f.BranchID != nil && *f.BranchID != branchID {
		return false
	}
	return true
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// Role is the caller role name.
type Role string

const (
	RoleSuperAdmin   Role = "superadmin"
	RoleCountryAdmin Role = "countryadmin"
	RoleBranchAdmin  Role = "branchadmin"
	RoleStaff        Role = "staff"
)

// ParseRole validates a role name.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	if slices.Contains([]Role{RoleSuperAdmin, RoleCountryAdmin, RoleBranchAdmin, RoleStaff}, role) {
		return role, true
	}
	return "", false
}
