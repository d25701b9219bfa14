package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/apperror"
	"staffdesk/internal/platform/querier"
)

var (
	ErrUserNotFound       = apperror.NotFound("user_not_found", "user not found")
	ErrDepartmentNotFound = apperror.NotFound("department_not_found", "department not found")
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const userColumns = `
    u.id, u.email, u.first_name, u.last_name, COALESCE(u.staff_ref, ''),
    u.role_id, r.name, u.department_id, COALESCE(d.name, ''), u.supervisor_id,
    u.status, u.last_login, u.created_at
  `

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.StaffRef,
		&u.RoleID, &u.RoleName, &u.DepartmentID, &u.DepartmentName, &u.SupervisorID,
		&u.Status, &u.LastLogin, &u.CreatedAt,
	)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, userID int64) (User, error) {
	user, err := scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users u
    JOIN roles r ON u.role_id = r.id
    LEFT JOIN departments d ON u.department_id = d.id
    WHERE u.id = $1 AND u.deleted_at IS NULL
  `, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

func (s *Store) ListUsers(ctx context.Context, departmentID int64, limit, offset int) ([]User, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+userColumns+`
    FROM users u
    JOIN roles r ON u.role_id = r.id
    LEFT JOIN departments d ON u.department_id = d.id
    WHERE u.deleted_at IS NULL AND ($1::bigint = 0 OR u.department_id = $1)
    ORDER BY u.last_name, u.first_name, u.id
    LIMIT $2 OFFSET $3
  `, departmentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context, departmentID int64) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM users
    WHERE deleted_at IS NULL AND ($1::bigint = 0 OR department_id = $1)
  `, departmentID).Scan(&total)
	return total, err
}

func (s *Store) CreateUser(ctx context.Context, in NewUser, passwordHash string) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, first_name, last_name, staff_ref, role_id, department_id, supervisor_id, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, strings.ToLower(in.Email), passwordHash, in.FirstName, in.LastName, nullIfEmpty(in.StaffRef),
		in.RoleID, in.DepartmentID, in.SupervisorID, UserStatusActive,
	).Scan(&id)
	return id, err
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL
  `, email).Scan(&count)
	return count > 0, err
}

func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name FROM roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (s *Store) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM roles WHERE id = $1", roleID).Scan(&count)
	return count > 0, err
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, created_at FROM departments ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var dep Department
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

func (s *Store) DepartmentExists(ctx context.Context, departmentID int64) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM departments WHERE id = $1", departmentID).Scan(&count)
	return count > 0, err
}

func (s *Store) CreateDepartment(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, "INSERT INTO departments (name) VALUES ($1) RETURNING id", name).Scan(&id)
	return id, err
}

// activeCandidates returns active users ordered by ascending id, optionally
// restricted to one department.
func (s *Store) activeCandidates(ctx context.Context, departmentID int64) ([]Candidate, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id, r.name
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE u.deleted_at IS NULL AND u.status = 'active'
      AND ($1::bigint = 0 OR u.department_id = $1)
    ORDER BY u.id
  `, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.RoleName); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DepartmentHODs lists HOD user ids in a department, lowest id first.
func (s *Store) DepartmentHODs(ctx context.Context, departmentID int64) ([]int64, error) {
	if departmentID <= 0 {
		return nil, nil
	}
	candidates, err := s.activeCandidates(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	return filterCandidates(candidates, auth.IsHODRole), nil
}

// CEOCandidates lists users holding a CEO role, lowest id first.
func (s *Store) CEOCandidates(ctx context.Context) ([]int64, error) {
	candidates, err := s.activeCandidates(ctx, 0)
	if err != nil {
		return nil, err
	}
	return filterCandidates(candidates, auth.IsCEORole), nil
}

func filterCandidates(candidates []Candidate, match func(string) bool) []int64 {
	var out []int64
	for _, c := range candidates {
		if match(c.RoleName) {
			out = append(out, c.ID)
		}
	}
	return out
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
