package leave

import "staffdesk/internal/platform/apperror"

var (
	ErrInvalidDateRange   = apperror.Validation("invalid_date_range", "end date must be after start date")
	ErrReasonRequired     = apperror.Validation("reason_required", "reason is required")
	ErrUnknownLeaveType   = apperror.Validation("unknown_leave_type", "leave type does not exist")
	ErrInvalidDecision    = apperror.Validation("invalid_decision", "decision must be Approved or Rejected")
	ErrInvalidStage       = apperror.Validation("invalid_stage", "stage must be supervisor, hr or ceo")
	ErrInvalidScope       = apperror.Validation("invalid_scope", "scope must be mine, approvals or all")
	ErrNotApprover        = apperror.Authorization("not_approver", "you are not an approver for this stage")
	ErrSelfApproval       = apperror.Authorization("self_approval", "you cannot act on your own request")
	ErrNotRequester       = apperror.Authorization("not_requester", "only the requester can change this request")
	ErrScopeForbidden     = apperror.Authorization("scope_forbidden", "you cannot list all leave requests")
	ErrAlreadyProcessed   = apperror.Conflict("already_processed", "leave request has already been processed")
	ErrSupervisorPending  = apperror.Conflict("supervisor_approval_required", "supervisor approval is required first")
	ErrStageNotApplicable = apperror.Conflict("stage_not_applicable", "this stage does not apply to the request")
	ErrRequestClosed      = apperror.Conflict("request_closed", "leave request is cancelled")
	ErrRequestNotFound    = apperror.NotFound("leave_request_not_found", "leave request not found")
)
