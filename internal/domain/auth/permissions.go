package auth

const (
	PermDirectoryRead       = "directory.read"
	PermDirectoryWrite      = "directory.write"
	PermLeaveRead           = "leave.read"
	PermLeaveWrite          = "leave.write"
	PermLeaveApprove        = "leave.approve"
	PermLeaveTypesWrite     = "leave.types.write"
	PermPerformanceRead     = "performance.read"
	PermPerformanceWrite    = "performance.write"
	PermPerformanceReview   = "performance.review"
	PermPerformanceFinalize = "performance.finalize"
	PermPerformanceAdmin    = "performance.admin"
	PermAuditRead           = "audit.read"
	PermSystemAdmin         = "admin.system"
)

var DefaultPermissions = []string{
	PermDirectoryRead,
	PermDirectoryWrite,
	PermLeaveRead,
	PermLeaveWrite,
	PermLeaveApprove,
	PermLeaveTypesWrite,
	PermPerformanceRead,
	PermPerformanceWrite,
	PermPerformanceReview,
	PermPerformanceFinalize,
	PermPerformanceAdmin,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleStaff: {
		PermDirectoryRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermPerformanceRead,
		PermPerformanceWrite,
	},
	RoleSupervisor: {
		PermDirectoryRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
	},
	RoleHOD: {
		PermDirectoryRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
	},
	RoleHR: {
		PermDirectoryRead,
		PermDirectoryWrite,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveTypesWrite,
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
		PermPerformanceAdmin,
		PermAuditRead,
	},
	RoleCEO: {
		PermDirectoryRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermPerformanceRead,
		PermPerformanceWrite,
		PermPerformanceReview,
		PermPerformanceFinalize,
		PermAuditRead,
	},
	RoleSuperAdmin: {
		PermDirectoryRead,
		PermDirectoryWrite,
		PermLeaveRead,
		PermLeaveTypesWrite,
		PermPerformanceRead,
		PermPerformanceAdmin,
		PermAuditRead,
		PermSystemAdmin,
	},
}
