package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/platform/config"
)

const defaultDepartment = "General"

var defaultLeaveTypes = []struct {
	name        string
	code        string
	requiresDoc bool
}{
	{"Annual Leave", "ANNUAL", false},
	{"Sick Leave", "SICK", true},
	{"Compassionate Leave", "COMPASSIONATE", false},
}

// Seed installs roles, permissions, reference data and the bootstrap admin.
// Every step is idempotent so it runs on each startup.
func Seed(ctx context.Context, pool *Pool, cfg config.Config) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		if err := ensurePermissions(ctx, tx); err != nil {
			return err
		}
		roleIDs, err := ensureRoles(ctx, tx)
		if err != nil {
			return err
		}
		if err := ensureRolePermissions(ctx, tx, roleIDs); err != nil {
			return err
		}
		departmentID, err := ensureDepartment(ctx, tx, defaultDepartment)
		if err != nil {
			return err
		}
		if err := ensureLeaveTypes(ctx, tx); err != nil {
			return err
		}
		return ensureAdminUser(ctx, tx, roleIDs[auth.RoleSuperAdmin], departmentID, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	})
}

func ensurePermissions(ctx context.Context, tx pgx.Tx) error {
	for _, perm := range auth.DefaultPermissions {
		if _, err := tx.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm); err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, tx pgx.Tx) (map[string]int64, error) {
	roleIDs := map[string]int64{}
	for roleName := range auth.RolePermissions {
		var id int64
		err := tx.QueryRow(ctx, `
      INSERT INTO roles (name) VALUES ($1)
      ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
      RETURNING id
    `, roleName).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("seed role %s: %w", roleName, err)
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, tx pgx.Tx, roleIDs map[string]int64) error {
	permMap := map[string]int64{}
	rows, err := tx.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return err
	}
	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return err
		}
		permMap[key] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := permMap[permKey]
			if !ok {
				return errors.New("permission not found: " + permKey)
			}
			_, err := tx.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureDepartment(ctx context.Context, tx pgx.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
    INSERT INTO departments (name) VALUES ($1)
    ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
  `, name).Scan(&id)
	return id, err
}

func ensureLeaveTypes(ctx context.Context, tx pgx.Tx) error {
	for _, lt := range defaultLeaveTypes {
		_, err := tx.Exec(ctx, `
      INSERT INTO leave_types (name, code, requires_doc) VALUES ($1, $2, $3)
      ON CONFLICT (code) DO NOTHING
    `, lt.name, lt.code, lt.requiresDoc)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, tx pgx.Tx, roleID, departmentID int64, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		slog.Info("seed admin skipped", "reason", "SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD not set")
		return nil
	}

	var count int
	if err := tx.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE lower(email) = $1 AND deleted_at IS NULL", email).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO users (email, password_hash, first_name, last_name, role_id, department_id, status)
    VALUES ($1, $2, 'System', 'Administrator', $3, $4, 'active')
  `, email, hash, roleID, departmentID)
	if err != nil {
		return err
	}
	slog.Info("seed admin created", "email", email)
	return nil
}
