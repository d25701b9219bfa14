package leave

import (
	"strings"
	"time"

	"staffdesk/internal/domain/approval"
	"staffdesk/internal/domain/auth"
)

// Actor is the user acting on a request, with the relationship facts the
// state machine needs to authorize the action.
type Actor struct {
	UserID   int64
	RoleName string
	// DepartmentHOD is set when the actor heads the requester's department.
	DepartmentHOD bool
}

// NewRequest lays out the stages for a freshly created request from the
// resolved route. Off-route stages are marked Not Required.
func NewRequest(requesterID int64, in CreateInput, days int, route approval.Route) LeaveRequest {
	req := LeaveRequest{
		RequesterID:         requesterID,
		LeaveTypeID:         in.LeaveTypeID,
		StartDate:           CalendarDate(in.StartDate),
		EndDate:             CalendarDate(in.EndDate.In(in.StartDate.Location())),
		DaysRequested:       days,
		Reason:              strings.TrimSpace(in.Reason),
		DocumentURL:         strings.TrimSpace(in.DocumentURL),
		RequiresCEOApproval: route.RequiresCEOApproval,
		Status:              StatusPending,
	}
	if route.RequiresCEOApproval {
		req.Supervisor = StageState{Status: StatusNotRequired}
		req.HR = StageState{Status: StatusNotRequired}
		req.CEO = StageState{ApproverID: route.ApproverID, Status: StatusPending}
		return req
	}
	req.Supervisor = StageState{ApproverID: route.ApproverID, Status: StatusPending}
	req.HR = StageState{Status: StatusPending}
	req.CEO = StageState{Status: StatusNotRequired}
	return req
}

func ParseStage(value string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(value))) {
	case StageSupervisor, "hod":
		return StageSupervisor, nil
	case StageHR:
		return StageHR, nil
	case StageCEO:
		return StageCEO, nil
	}
	return "", ErrInvalidStage
}

func ParseDecision(value string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "approved", "approve":
		return DecisionApproved, nil
	case "rejected", "reject":
		return DecisionRejected, nil
	}
	return "", ErrInvalidDecision
}

// DeriveOverallStatus computes the request status from its stages.
func DeriveOverallStatus(req LeaveRequest) string {
	if req.Status == StatusCancelled {
		return StatusCancelled
	}
	if req.RequiresCEOApproval {
		if isDecided(req.CEO.Status) {
			return req.CEO.Status
		}
		return StatusPending
	}
	switch req.Supervisor.Status {
	case StatusRejected:
		return StatusRejected
	case StatusApproved:
		if isDecided(req.HR.Status) {
			return req.HR.Status
		}
	}
	return StatusPending
}

// ApplyDecision records decision on one stage. The supervisor gate accepts a
// single decision; the HR and CEO gates may be decided again.
func ApplyDecision(req *LeaveRequest, stage Stage, decision Decision, comment string, actor Actor, requesterRole string, now time.Time) error {
	if req.Status == StatusCancelled || req.DeletedAt != nil {
		return ErrRequestClosed
	}
	if decision != DecisionApproved && decision != DecisionRejected {
		return ErrInvalidDecision
	}
	if actor.UserID == req.RequesterID {
		return ErrSelfApproval
	}

	var target *StageState
	switch stage {
	case StageSupervisor:
		if req.RequiresCEOApproval {
			return ErrStageNotApplicable
		}
		if !canActAsSupervisor(req, actor, requesterRole) {
			return ErrNotApprover
		}
		if req.Supervisor.Status != StatusPending {
			return ErrAlreadyProcessed
		}
		target = &req.Supervisor
	case StageHR:
		if req.RequiresCEOApproval {
			return ErrStageNotApplicable
		}
		if !auth.IsHRRole(actor.RoleName) {
			return ErrNotApprover
		}
		if req.Supervisor.Status != StatusApproved {
			return ErrSupervisorPending
		}
		target = &req.HR
	case StageCEO:
		if !req.RequiresCEOApproval {
			return ErrStageNotApplicable
		}
		assigned := req.CEO.ApproverID != nil && *req.CEO.ApproverID == actor.UserID
		if !assigned && !auth.IsCEORole(actor.RoleName) {
			return ErrNotApprover
		}
		target = &req.CEO
	default:
		return ErrInvalidStage
	}

	actorID := actor.UserID
	actedAt := now
	target.ApproverID = &actorID
	target.Status = string(decision)
	target.Comment = strings.TrimSpace(comment)
	target.ActedAt = &actedAt
	req.Status = DeriveOverallStatus(*req)
	req.UpdatedAt = now
	return nil
}

func canActAsSupervisor(req *LeaveRequest, actor Actor, requesterRole string) bool {
	if req.Supervisor.ApproverID != nil && *req.Supervisor.ApproverID == actor.UserID {
		return true
	}
	return auth.IsSupervisorRole(requesterRole) && actor.DepartmentHOD
}

// FirstGate is the stage whose decision locks the request against edits.
func FirstGate(req LeaveRequest) Stage {
	if req.RequiresCEOApproval {
		return StageCEO
	}
	return StageSupervisor
}

// CanModify reports whether the requester may still edit or cancel.
func CanModify(req LeaveRequest) error {
	if req.Status == StatusCancelled || req.DeletedAt != nil {
		return ErrRequestClosed
	}
	gate := req.Supervisor
	if FirstGate(req) == StageCEO {
		gate = req.CEO
	}
	if gate.Status != "" && gate.Status != StatusPending {
		return ErrAlreadyProcessed
	}
	return nil
}

func Cancel(req *LeaveRequest, actorID int64, now time.Time) error {
	if req.RequesterID != actorID {
		return ErrNotRequester
	}
	if err := CanModify(*req); err != nil {
		return err
	}
	deletedAt := now
	req.Status = StatusCancelled
	req.DeletedAt = &deletedAt
	req.UpdatedAt = now
	return nil
}

func Edit(req *LeaveRequest, actorID int64, in EditInput, now time.Time) error {
	if req.RequesterID != actorID {
		return ErrNotRequester
	}
	if err := CanModify(*req); err != nil {
		return err
	}

	start, end := req.StartDate, req.EndDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	days, err := CalculateDays(start, end)
	if err != nil {
		return err
	}
	if in.Reason != nil {
		reason := strings.TrimSpace(*in.Reason)
		if reason == "" {
			return ErrReasonRequired
		}
		req.Reason = reason
	}
	req.StartDate = CalendarDate(start)
	req.EndDate = CalendarDate(end.In(start.Location()))
	req.DaysRequested = days
	req.UpdatedAt = now
	return nil
}

func isDecided(status string) bool {
	return status == StatusApproved || status == StatusRejected
}
