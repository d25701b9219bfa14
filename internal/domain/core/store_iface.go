package core

import "context"

type StoreAPI interface {
	GetUser(ctx context.Context, userID int64) (User, error)
	ListUsers(ctx context.Context, departmentID int64, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context, departmentID int64) (int, error)
	CreateUser(ctx context.Context, in NewUser, passwordHash string) (int64, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListRoles(ctx context.Context) ([]Role, error)
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	DepartmentExists(ctx context.Context, departmentID int64) (bool, error)
	CreateDepartment(ctx context.Context, name string) (int64, error)
	DepartmentHODs(ctx context.Context, departmentID int64) ([]int64, error)
	CEOCandidates(ctx context.Context) ([]int64, error)
}
