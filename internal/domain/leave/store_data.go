package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"staffdesk/internal/domain/auth"
)

func (s *Store) ListTypes(ctx context.Context) ([]LeaveType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, code, requires_doc, created_at
    FROM leave_types
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []LeaveType
	for rows.Next() {
		var t LeaveType
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.RequiresDoc, &t.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Store) CreateType(ctx context.Context, payload LeaveType) (int64, error) {
	var id int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_types (name, code, requires_doc)
    VALUES ($1,$2,$3)
    RETURNING id
  `, payload.Name, payload.Code, payload.RequiresDoc).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) LeaveTypeExists(ctx context.Context, leaveTypeID int64) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM leave_types WHERE id = $1", leaveTypeID).Scan(&count)
	return count > 0, err
}

const requestColumns = `
    lr.id, lr.requester_id, lr.leave_type_id, COALESCE(lt.name, ''), lr.start_date, lr.end_date,
    lr.days_requested, lr.reason, COALESCE(lr.document_url, ''), lr.requires_ceo_approval,
    lr.supervisor_approver_id, lr.supervisor_status, COALESCE(lr.supervisor_comment, ''), lr.supervisor_acted_at,
    lr.hr_approver_id, lr.hr_status, COALESCE(lr.hr_comment, ''), lr.hr_acted_at,
    lr.ceo_approver_id, lr.ceo_status, COALESCE(lr.ceo_comment, ''), lr.ceo_acted_at,
    lr.status, lr.created_at, lr.updated_at, lr.deleted_at
  `

func scanRequest(row pgx.Row) (LeaveRequest, error) {
	var req LeaveRequest
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.LeaveTypeID, &req.LeaveTypeName, &req.StartDate, &req.EndDate,
		&req.DaysRequested, &req.Reason, &req.DocumentURL, &req.RequiresCEOApproval,
		&req.Supervisor.ApproverID, &req.Supervisor.Status, &req.Supervisor.Comment, &req.Supervisor.ActedAt,
		&req.HR.ApproverID, &req.HR.Status, &req.HR.Comment, &req.HR.ActedAt,
		&req.CEO.ApproverID, &req.CEO.Status, &req.CEO.Comment, &req.CEO.ActedAt,
		&req.Status, &req.CreatedAt, &req.UpdatedAt, &req.DeletedAt,
	)
	return req, err
}

func (s *Store) CreateRequest(ctx context.Context, req *LeaveRequest) error {
	return s.DB.QueryRow(ctx, `
    INSERT INTO leave_requests (
      requester_id, leave_type_id, start_date, end_date, days_requested, reason, document_url,
      requires_ceo_approval, supervisor_approver_id, supervisor_status, hr_status,
      ceo_approver_id, ceo_status, status
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id, created_at, updated_at
  `,
		req.RequesterID, req.LeaveTypeID, req.StartDate, req.EndDate, req.DaysRequested, req.Reason,
		nullIfEmpty(req.DocumentURL), req.RequiresCEOApproval, req.Supervisor.ApproverID, req.Supervisor.Status,
		req.HR.Status, req.CEO.ApproverID, req.CEO.Status, req.Status,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
}

func (s *Store) GetRequest(ctx context.Context, requestID int64) (LeaveRequest, error) {
	return s.getRequest(ctx, requestID, "")
}

func (s *Store) GetRequestForUpdate(ctx context.Context, requestID int64) (LeaveRequest, error) {
	return s.getRequest(ctx, requestID, " FOR UPDATE OF lr")
}

func (s *Store) getRequest(ctx context.Context, requestID int64, lock string) (LeaveRequest, error) {
	req, err := scanRequest(s.DB.QueryRow(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests lr
    LEFT JOIN leave_types lt ON lt.id = lr.leave_type_id
    WHERE lr.id = $1 AND lr.deleted_at IS NULL`+lock, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveRequest{}, ErrRequestNotFound
	}
	return req, err
}

// UpdateRequest writes every mutable column of the request.
func (s *Store) UpdateRequest(ctx context.Context, req LeaveRequest) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE leave_requests
    SET start_date = $1,
        end_date = $2,
        days_requested = $3,
        reason = $4,
        supervisor_approver_id = $5,
        supervisor_status = $6,
        supervisor_comment = $7,
        supervisor_acted_at = $8,
        hr_approver_id = $9,
        hr_status = $10,
        hr_comment = $11,
        hr_acted_at = $12,
        ceo_approver_id = $13,
        ceo_status = $14,
        ceo_comment = $15,
        ceo_acted_at = $16,
        status = $17,
        deleted_at = $18,
        updated_at = now()
    WHERE id = $19 AND deleted_at IS NULL
  `,
		req.StartDate, req.EndDate, req.DaysRequested, req.Reason,
		req.Supervisor.ApproverID, req.Supervisor.Status, nullIfEmpty(req.Supervisor.Comment), req.Supervisor.ActedAt,
		req.HR.ApproverID, req.HR.Status, nullIfEmpty(req.HR.Comment), req.HR.ActedAt,
		req.CEO.ApproverID, req.CEO.Status, nullIfEmpty(req.CEO.Comment), req.CEO.ActedAt,
		req.Status, req.DeletedAt, req.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, filter ListFilter, limit, offset int) (RequestListResult, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM leave_requests lr WHERE "+where, args...).Scan(&total); err != nil {
		return RequestListResult{}, err
	}

	query := `
    SELECT ` + requestColumns + `
    FROM leave_requests lr
    LEFT JOIN leave_types lt ON lt.id = lr.leave_type_id
    WHERE ` + where
	query += fmt.Sprintf(" ORDER BY lr.created_at DESC, lr.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return RequestListResult{}, err
	}
	defer rows.Close()

	var requests []LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return RequestListResult{}, err
		}
		requests = append(requests, req)
	}
	return RequestListResult{Requests: requests, Total: total}, rows.Err()
}

func buildListWhere(filter ListFilter) (string, []any) {
	clauses := []string{"lr.deleted_at IS NULL"}
	var args []any
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RequesterID > 0 {
		clauses = append(clauses, "lr.requester_id = "+arg(filter.RequesterID))
	}
	if filter.Status != "" {
		clauses = append(clauses, "lr.status = "+arg(filter.Status))
	}

	if filter.approvals() {
		var pending []string
		if filter.PendingSupervisorFor > 0 {
			pending = append(pending, fmt.Sprintf(
				"(NOT lr.requires_ceo_approval AND lr.supervisor_status = '%s' AND lr.supervisor_approver_id = %s)",
				StatusPending, arg(filter.PendingSupervisorFor)))
		}
		if filter.PendingSupervisorDepartment > 0 {
			pending = append(pending, fmt.Sprintf(`(NOT lr.requires_ceo_approval AND lr.supervisor_status = '%s' AND EXISTS (
        SELECT 1 FROM users u JOIN roles r ON r.id = u.role_id
        WHERE u.id = lr.requester_id AND u.department_id = %s AND %s))`,
				StatusPending, arg(filter.PendingSupervisorDepartment), auth.SupervisorRoleSQL("r.name")))
		}
		if filter.PendingHR {
			pending = append(pending, fmt.Sprintf(
				"(NOT lr.requires_ceo_approval AND lr.supervisor_status = '%s' AND lr.hr_status = '%s')",
				StatusApproved, StatusPending))
		}
		if filter.PendingCEOAny {
			pending = append(pending, fmt.Sprintf("(lr.requires_ceo_approval AND lr.ceo_status = '%s')", StatusPending))
		} else if filter.PendingCEOFor > 0 {
			pending = append(pending, fmt.Sprintf(
				"(lr.requires_ceo_approval AND lr.ceo_status = '%s' AND lr.ceo_approver_id = %s)",
				StatusPending, arg(filter.PendingCEOFor)))
		}
		clauses = append(clauses, "("+strings.Join(pending, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), args
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
