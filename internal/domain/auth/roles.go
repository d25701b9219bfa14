package auth

import "strings"

const (
	RoleStaff      = "Staff"
	RoleSupervisor = "Supervisor"
	RoleHOD        = "HOD"
	RoleHR         = "HR"
	RoleCEO        = "CEO"
	RoleSuperAdmin = "Super Admin"
)

// UserContext is the authenticated actor attached to a request.
type UserContext struct {
	UserID       int64
	RoleID       int64
	RoleName     string
	DepartmentID int64
}

// Role names are free text in the roles table, so routing decisions classify
// them by name rather than by exact match.

func IsSupervisorRole(roleName string) bool {
	return normalizeRole(roleName) == "supervisor"
}

func IsHODRole(roleName string) bool {
	name := normalizeRole(roleName)
	return name == "hod" || strings.Contains(name, "head of department")
}

func IsHRRole(roleName string) bool {
	name := normalizeRole(roleName)
	if strings.Contains(name, "human resource") {
		return true
	}
	for _, word := range strings.FieldsFunc(name, isRoleSeparator) {
		if word == "hr" {
			return true
		}
	}
	return false
}

func IsCEORole(roleName string) bool {
	name := normalizeRole(roleName)
	return strings.Contains(name, "ceo") || strings.Contains(name, "chief executive")
}

func IsAdminRole(roleName string) bool {
	name := normalizeRole(roleName)
	return name == "admin" || name == "super admin" || name == "superadmin" || name == "system admin"
}

// RoutesToCEO reports whether requests raised by this role skip the
// supervisor gate and go straight to the CEO.
func RoutesToCEO(roleName string) bool {
	return IsHODRole(roleName) || IsHRRole(roleName)
}

func normalizeRole(roleName string) string {
	return strings.Join(strings.Fields(strings.ToLower(roleName)), " ")
}

// NormalizedRoleSQL is the SQL form of normalizeRole applied to column.
func NormalizedRoleSQL(column string) string {
	return "btrim(regexp_replace(lower(" + column + "), '[[:space:]]+', ' ', 'g'))"
}

// SupervisorRoleSQL is a predicate on column matching IsSupervisorRole.
func SupervisorRoleSQL(column string) string {
	return NormalizedRoleSQL(column) + " = '" + normalizeRole(RoleSupervisor) + "'"
}

func isRoleSeparator(r rune) bool {
	return r == ' ' || r == '-' || r == '_' || r == '/' || r == '(' || r == ')'
}
