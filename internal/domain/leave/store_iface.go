package leave

import "context"

type StoreAPI interface {
	// WithinTx runs fn against a store bound to a single transaction.
	WithinTx(ctx context.Context, fn func(tx StoreAPI) error) error

	ListTypes(ctx context.Context) ([]LeaveType, error)
	CreateType(ctx context.Context, payload LeaveType) (int64, error)
	LeaveTypeExists(ctx context.Context, leaveTypeID int64) (bool, error)

	CreateRequest(ctx context.Context, req *LeaveRequest) error
	GetRequest(ctx context.Context, requestID int64) (LeaveRequest, error)
	// GetRequestForUpdate locks the row until the surrounding transaction ends.
	GetRequestForUpdate(ctx context.Context, requestID int64) (LeaveRequest, error)
	UpdateRequest(ctx context.Context, req LeaveRequest) error
	ListRequests(ctx context.Context, filter ListFilter, limit, offset int) (RequestListResult, error)
}
