package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleOwner      UserRole = "OWNER"
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
)

// Permission names a capability checked before a guarded operation.
type Permission string

const (
	PermStudentRead    Permission = "student:read"
	PermStudentWrite   Permission = "student:write"
	PermIntakeView     Permission = "intake:view"
	PermIntakeAssign   Permission = "intake:assign"
	PermIntakeApprove  Permission = "intake:approve"
	PermIntakeDismiss  Permission = "intake:dismiss"
	PermIntakeMerge    Permission = "intake:merge"
	PermInstructorRead Permission = "instructor:read"
	PermRosterManage   Permission = "roster:manage"
	PermSettingsRead   Permission = "settings:read"
	PermSettingsWrite  Permission = "settings:write"
	PermReportRequest  Permission = "report:request"
	PermSessionWrite   Permission = "session:write"
	PermDocumentRead   Permission = "document:read"
	PermDocumentWrite  Permission = "document:write"
)

var rolePermissions = map[UserRole]map[Permission]struct{}{
	RoleOwner:      permissionSet(allPermissions()...),
	RoleAdmin:      permissionSet(allPermissions()...),
	RoleInstructor: permissionSet(PermStudentRead, PermIntakeView, PermIntakeApprove, PermSessionWrite, PermSettingsRead, PermDocumentRead),
}

func allPermissions() []Permission {
	return []Permission{
		PermStudentRead, PermStudentWrite,
		PermIntakeView, PermIntakeAssign, PermIntakeApprove, PermIntakeDismiss, PermIntakeMerge,
		PermInstructorRead, PermRosterManage,
		PermSettingsRead, PermSettingsWrite,
		PermReportRequest, PermSessionWrite,
		PermDocumentRead, PermDocumentWrite,
	}
}

func permissionSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Authorize reports whether a role carries the given permission. All
// role-based branching funnels through this single check.
func Authorize(role UserRole, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}

// IsElevated reports whether the role is an admin-tier role. Approval on
// behalf of another instructor and all queue mutations require it.
func IsElevated(role UserRole) bool {
	return role == RoleAdmin || role == RoleOwner
}
