package audit

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EntityLeaveRequest = "leave_request"
	EntityLeaveType    = "leave_type"
	EntityAppraisal    = "performance_appraisal"
	EntityUser         = "user"
	EntityDepartment   = "department"
)

// Entry is one audit record as produced by the workflow services.
type Entry struct {
	ActorID    int64     `json:"actorId"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   int64     `json:"entityId"`
	Details    any       `json:"details,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	IP         string    `json:"ip,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Event is a persisted audit row.
type Event struct {
	ID         int64           `json:"id"`
	ActorID    *int64          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   int64           `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Details    json.RawMessage `json:"details,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   int64
	ActorID    int64
}

// Sink persists or forwards audit entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

type SinkFunc func(ctx context.Context, entry Entry) error

func (f SinkFunc) Write(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

func marshalDetails(details any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	if raw, ok := details.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(details)
}
