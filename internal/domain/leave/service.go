package leave

import (
	"context"
	"strings"
	"time"

	"staffdesk/internal/domain/approval"
	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
)

type Directory interface {
	GetUser(ctx context.Context, userID int64) (core.User, error)
}

type ApproverResolver interface {
	ResolveFor(ctx context.Context, subject approval.Subject, fallback *int64) (approval.Route, error)
	IsDepartmentHOD(ctx context.Context, actorID int64, departmentID *int64) (bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type TransitionCounter interface {
	Transition(workflow, transition string)
}

type Service struct {
	store    StoreAPI
	users    Directory
	resolver ApproverResolver
	audit    AuditRecorder
	metrics  TransitionCounter
	now      func() time.Time
}

func NewService(store StoreAPI, users Directory, resolver ApproverResolver, recorder AuditRecorder, metrics TransitionCounter) *Service {
	return &Service{
		store:    store,
		users:    users,
		resolver: resolver,
		audit:    recorder,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *Service) ListTypes(ctx context.Context) ([]LeaveType, error) {
	return s.store.ListTypes(ctx)
}

func (s *Service) CreateType(ctx context.Context, actor auth.UserContext, payload LeaveType) (int64, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Code = strings.ToUpper(strings.TrimSpace(payload.Code))
	id, err := s.store.CreateType(ctx, payload)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actor.UserID, "leave.type.create", audit.EntityLeaveType, id, payload)
	return id, nil
}

func (s *Service) CreateRequest(ctx context.Context, actor auth.UserContext, in CreateInput) (LeaveRequest, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return LeaveRequest{}, ErrReasonRequired
	}
	days, err := CalculateDays(in.StartDate, in.EndDate)
	if err != nil {
		return LeaveRequest{}, err
	}
	exists, err := s.store.LeaveTypeExists(ctx, in.LeaveTypeID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !exists {
		return LeaveRequest{}, ErrUnknownLeaveType
	}

	requester, err := s.users.GetUser(ctx, actor.UserID)
	if err != nil {
		return LeaveRequest{}, err
	}
	route, err := s.resolver.ResolveFor(ctx, approval.SubjectFromUser(requester), requester.SupervisorID)
	if err != nil {
		return LeaveRequest{}, err
	}

	req := NewRequest(requester.ID, in, days, route)
	if err := s.store.WithinTx(ctx, func(tx StoreAPI) error {
		return tx.CreateRequest(ctx, &req)
	}); err != nil {
		return LeaveRequest{}, err
	}

	s.record(ctx, actor.UserID, "leave.create", audit.EntityLeaveRequest, req.ID, map[string]any{
		"daysRequested":       req.DaysRequested,
		"requiresCeoApproval": req.RequiresCEOApproval,
		"approverId":          route.ApproverID,
		"rule":                route.Rule,
	})
	s.count("created")
	return req, nil
}

// ActOnRequest records an approver decision on one stage. The row is locked
// for the read-decide-write sequence so concurrent approvers serialize.
func (s *Service) ActOnRequest(ctx context.Context, actor auth.UserContext, requestID int64, stage Stage, decision Decision, comment string) (LeaveRequest, error) {
	var updated LeaveRequest
	var previous string
	err := s.store.WithinTx(ctx, func(tx StoreAPI) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		requester, err := s.users.GetUser(ctx, req.RequesterID)
		if err != nil {
			return err
		}

		acting := Actor{UserID: actor.UserID, RoleName: actor.RoleName}
		if stage == StageSupervisor && auth.IsSupervisorRole(requester.RoleName) {
			acting.DepartmentHOD, err = s.resolver.IsDepartmentHOD(ctx, actor.UserID, requester.DepartmentID)
			if err != nil {
				return err
			}
		}

		previous = req.Status
		if err := ApplyDecision(&req, stage, decision, comment, acting, requester.RoleName, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}

	s.record(ctx, actor.UserID, "leave.decide", audit.EntityLeaveRequest, requestID, map[string]any{
		"stage":          stage,
		"decision":       decision,
		"comment":        strings.TrimSpace(comment),
		"previousStatus": previous,
		"status":         updated.Status,
	})
	s.count(string(stage) + ":" + string(decision))
	return updated, nil
}

func (s *Service) CancelRequest(ctx context.Context, actor auth.UserContext, requestID int64) error {
	err := s.store.WithinTx(ctx, func(tx StoreAPI) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := Cancel(&req, actor.UserID, s.now()); err != nil {
			return err
		}
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor.UserID, "leave.cancel", audit.EntityLeaveRequest, requestID, nil)
	s.count("cancelled")
	return nil
}

func (s *Service) EditRequest(ctx context.Context, actor auth.UserContext, requestID int64, in EditInput) (LeaveRequest, error) {
	var before, after LeaveRequest
	err := s.store.WithinTx(ctx, func(tx StoreAPI) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		before = req
		if err := Edit(&req, actor.UserID, in, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		after = req
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}
	s.record(ctx, actor.UserID, "leave.edit", audit.EntityLeaveRequest, requestID, map[string]any{
		"before": dateSummary(before),
		"after":  dateSummary(after),
	})
	return after, nil
}

// GetRequest hides requests the actor has no part in behind NotFound.
func (s *Service) GetRequest(ctx context.Context, actor auth.UserContext, requestID int64) (LeaveRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	visible, err := s.canView(ctx, actor, req)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !visible {
		return LeaveRequest{}, ErrRequestNotFound
	}
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, actor auth.UserContext, scope Scope, status string, limit, offset int) (RequestListResult, error) {
	var filter ListFilter
	switch scope {
	case ScopeMine, "":
		filter.RequesterID = actor.UserID
	case ScopeApprovals:
		filter = approvalsFilter(actor)
	case ScopeAll:
		if !canSeeAll(actor.RoleName) {
			return RequestListResult{}, ErrScopeForbidden
		}
	default:
		return RequestListResult{}, ErrInvalidScope
	}
	filter.Status = status
	return s.store.ListRequests(ctx, filter, limit, offset)
}

func approvalsFilter(actor auth.UserContext) ListFilter {
	filter := ListFilter{
		PendingSupervisorFor: actor.UserID,
		PendingCEOFor:        actor.UserID,
		PendingHR:            auth.IsHRRole(actor.RoleName),
		PendingCEOAny:        auth.IsCEORole(actor.RoleName),
	}
	if auth.IsHODRole(actor.RoleName) && actor.DepartmentID > 0 {
		filter.PendingSupervisorDepartment = actor.DepartmentID
	}
	return filter
}

func canSeeAll(roleName string) bool {
	return auth.IsHRRole(roleName) || auth.IsCEORole(roleName) || auth.IsAdminRole(roleName)
}

func (s *Service) canView(ctx context.Context, actor auth.UserContext, req LeaveRequest) (bool, error) {
	if actor.UserID == req.RequesterID || canSeeAll(actor.RoleName) {
		return true, nil
	}
	for _, stage := range []StageState{req.Supervisor, req.HR, req.CEO} {
		if stage.ApproverID != nil && *stage.ApproverID == actor.UserID {
			return true, nil
		}
	}
	if !auth.IsHODRole(actor.RoleName) {
		return false, nil
	}
	requester, err := s.users.GetUser(ctx, req.RequesterID)
	if err != nil {
		return false, err
	}
	return s.resolver.IsDepartmentHOD(ctx, actor.UserID, requester.DepartmentID)
}

func (s *Service) record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
}

func (s *Service) count(transition string) {
	if s.metrics != nil {
		s.metrics.Transition("leave", transition)
	}
}

func dateSummary(req LeaveRequest) map[string]any {
	return map[string]any{
		"startDate":     req.StartDate.Format(time.DateOnly),
		"endDate":       req.EndDate.Format(time.DateOnly),
		"daysRequested": req.DaysRequested,
		"reason":        req.Reason,
	}
}
