package leave

import "time"

const (
	StatusPending     = "Pending"
	StatusApproved    = "Approved"
	StatusRejected    = "Rejected"
	StatusCancelled   = "Cancelled"
	StatusNotRequired = "Not Required"
)

type Stage string

const (
	StageSupervisor Stage = "supervisor"
	StageHR         Stage = "hr"
	StageCEO        Stage = "ceo"
)

type Decision string

const (
	DecisionApproved Decision = StatusApproved
	DecisionRejected Decision = StatusRejected
)

type LeaveType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	RequiresDoc bool      `json:"requiresDoc"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StageState is one approval gate of a request.
type StageState struct {
	ApproverID *int64     `json:"approverId"`
	Status     string     `json:"status"`
	Comment    string     `json:"comment,omitempty"`
	ActedAt    *time.Time `json:"actedAt,omitempty"`
}

type LeaveRequest struct {
	ID                  int64      `json:"id"`
	RequesterID         int64      `json:"requesterId"`
	LeaveTypeID         int64      `json:"leaveTypeId"`
	LeaveTypeName       string     `json:"leaveTypeName,omitempty"`
	StartDate           time.Time  `json:"startDate"`
	EndDate             time.Time  `json:"endDate"`
	DaysRequested       int        `json:"daysRequested"`
	Reason              string     `json:"reason"`
	DocumentURL         string     `json:"documentUrl,omitempty"`
	RequiresCEOApproval bool       `json:"requiresCeoApproval"`
	Supervisor          StageState `json:"supervisor"`
	HR                  StageState `json:"hr"`
	CEO                 StageState `json:"ceo"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	DeletedAt           *time.Time `json:"deletedAt,omitempty"`
}

type CreateInput struct {
	LeaveTypeID int64
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	DocumentURL string
}

// EditInput carries the fields a requester may change; nil means unchanged.
type EditInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Reason    *string
}

type Scope string

const (
	ScopeMine      Scope = "mine"
	ScopeApprovals Scope = "approvals"
	ScopeAll       Scope = "all"
)

// ListFilter selects requests for a listing. Approval fields are OR-ed
// together; RequesterID and Status narrow the result.
type ListFilter struct {
	RequesterID                 int64
	Status                      string
	PendingSupervisorFor        int64
	PendingSupervisorDepartment int64
	PendingHR                   bool
	PendingCEOFor               int64
	PendingCEOAny               bool
}

func (f ListFilter) approvals() bool {
	return f.PendingSupervisorFor > 0 || f.PendingSupervisorDepartment > 0 || f.PendingHR ||
		f.PendingCEOFor > 0 || f.PendingCEOAny
}

type RequestListResult struct {
	Requests []LeaveRequest `json:"requests"`
	Total    int            `json:"total"`
}
