package core

import (
	"context"
	"strings"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/apperror"
)

var (
	ErrEmailTaken        = apperror.Conflict("email_taken", "a user with this email already exists")
	ErrUnknownRole       = apperror.Validation("unknown_role", "role does not exist")
	ErrUnknownDepartment = apperror.Validation("unknown_department", "department does not exist")
	ErrUnknownSupervisor = apperror.Validation("unknown_supervisor", "supervisor does not exist")
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) GetUser(ctx context.Context, userID int64) (User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context, departmentID int64, limit, offset int) ([]User, int, error) {
	users, err := s.store.ListUsers(ctx, departmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountUsers(ctx, departmentID)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Service) CreateUser(ctx context.Context, in NewUser) (int64, error) {
	in.Email = strings.TrimSpace(in.Email)
	exists, err := s.store.EmailExists(ctx, in.Email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrEmailTaken
	}
	ok, err := s.store.RoleExists(ctx, in.RoleID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnknownRole
	}
	if in.DepartmentID != nil {
		ok, err := s.store.DepartmentExists(ctx, *in.DepartmentID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrUnknownDepartment
		}
	}
	if in.SupervisorID != nil {
		if _, err := s.store.GetUser(ctx, *in.SupervisorID); err != nil {
			if apperror.KindOf(err) == apperror.KindNotFound {
				return 0, ErrUnknownSupervisor
			}
			return 0, err
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return 0, err
	}
	return s.store.CreateUser(ctx, in, hash)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.store.ListDepartments(ctx)
}

func (s *Service) CreateDepartment(ctx context.Context, name string) (int64, error) {
	return s.store.CreateDepartment(ctx, strings.TrimSpace(name))
}

func (s *Service) DepartmentHODs(ctx context.Context, departmentID int64) ([]int64, error) {
	return s.store.DepartmentHODs(ctx, departmentID)
}

func (s *Service) CEOCandidates(ctx context.Context) ([]int64, error) {
	return s.store.CEOCandidates(ctx)
}
