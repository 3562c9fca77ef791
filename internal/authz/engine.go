package authz

// Authorize decides whether the caller may perform the requested operation.
//
// Privileged callers (SuperAdmin, Admin) are allowed everything, including
// role changes on any record; the engine makes no distinction between the
// two privileged roles. Unprivileged callers may read untargeted resources
// and touch their own record, but may never change a role flag or create a
// privileged account.
func Authorize(req Request) Decision {
	if !req.Caller.Exists {
		return Deny
	}
	if req.Caller.Role.Privileged() {
		return Allow
	}
	if req.Op == OpCreatePrivileged {
		return Deny
	}
	if req.TargetID == nil {
		if req.Op == OpRead {
			return Allow
		}
		return Deny
	}
	if *req.TargetID != req.Caller.UserID {
		return Deny
	}
	if req.Op == OpWriteAdminFlag {
		return Deny
	}
	return Allow
}
