package shared

// Capability names a guarded action.
type Capability string

const (
	CapCreate        Capability = "document.create"
	CapSubmit        Capability = "workflow.submit"
	CapReject        Capability = "workflow.reject"
	CapApprove       Capability = "workflow.approve"
	CapLock          Capability = "workflow.lock"
	CapEditDraft     Capability = "document.edit.draft"
	CapEditSubmitted Capability = "document.edit.submitted"
	CapEditApproved  Capability = "document.edit.approved"
	CapDeleteDraft   Capability = "document.delete.draft"
	CapPay           Capability = "document.pay"
	CapPostLedger    Capability = "ledger.post"
	CapViewReports   Capability = "report.view"
)

// superadmin manages lock dates and reads everything but does not act on documents.
var capabilityRoles = map[Capability][]Role{
	CapCreate:        {RoleStaff, RoleBranchAdmin},
	CapSubmit:        {RoleStaff, RoleBranchAdmin},
	CapReject:        {RoleBranchAdmin, RoleCountryAdmin},
	CapApprove:       {RoleBranchAdmin, RoleCountryAdmin},
	CapLock:          {RoleBranchAdmin},
	CapEditDraft:     {RoleStaff, RoleBranchAdmin},
	CapEditSubmitted: {RoleBranchAdmin},
	CapEditApproved:  {RoleBranchAdmin},
	CapDeleteDraft:   {RoleBranchAdmin},
	CapPay:           {RoleStaff, RoleBranchAdmin},
	CapPostLedger:    {RoleBranchAdmin, RoleCountryAdmin},
	CapViewReports:   {RoleSuperAdmin, RoleCountryAdmin, RoleBranchAdmin, RoleStaff},
}

// Can reports whether role holds the capability.
func (r Role) Can(capability Capability) bool {
	for _, allowed := range capabilityRoles[capability] {
		if allowed == r {
			return true
		}
	}
	return false
}

// Require returns a forbidden error when the caller lacks capability.
func (c Caller) Require(capability Capability) error {
	if c.Role.Can(capability) {
		return nil
	}
	return Forbiddenf("role %q cannot %s", c.Role, capability)
}

// CanSetLock reports whether the caller may change the lock date at the given scope.
// A nil country means the global lock. Country admins may only lock branches in their own country.
func (c Caller) CanSetLock(countryID, branchID *int64, branchCountryID int64) bool {
	switch c.Role {
	case RoleSuperAdmin:
		return true
	case RoleCountryAdmin:
		// Country and global locks stay with superadmin.
		if branchID == nil || c.CountryID == nil {
			return false
		}
		return branchCountryID == *c.CountryID
	default:
		return false
	}
}
