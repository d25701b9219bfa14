package leave

import (
	"context"
	"errors"
	"testing"
	"time"

	"staffdesk/internal/domain/approval"
	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/platform/apperror"
)

type memoryStore struct {
	types    map[int64]LeaveType
	requests map[int64]LeaveRequest
	nextID   int64
	failTx   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		types:    map[int64]LeaveType{1: {ID: 1, Name: "Annual", Code: "AL"}},
		requests: map[int64]LeaveRequest{},
	}
}

func (m *memoryStore) WithinTx(_ context.Context, fn func(tx StoreAPI) error) error {
	snapshot := make(map[int64]LeaveRequest, len(m.requests))
	for id, req := range m.requests {
		snapshot[id] = req
	}
	if err := fn(m); err != nil {
		m.requests = snapshot
		return err
	}
	return m.failTx
}

func (m *memoryStore) ListTypes(context.Context) ([]LeaveType, error) {
	var out []LeaveType
	for _, t := range m.types {
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryStore) CreateType(_ context.Context, payload LeaveType) (int64, error) {
	m.nextID++
	payload.ID = m.nextID + 100
	m.types[payload.ID] = payload
	return payload.ID, nil
}

func (m *memoryStore) LeaveTypeExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.types[id]
	return ok, nil
}

func (m *memoryStore) CreateRequest(_ context.Context, req *LeaveRequest) error {
	m.nextID++
	req.ID = m.nextID
	req.CreatedAt = testNow
	m.requests[req.ID] = *req
	return nil
}

func (m *memoryStore) GetRequest(_ context.Context, id int64) (LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok || req.DeletedAt != nil {
		return LeaveRequest{}, ErrRequestNotFound
	}
	return req, nil
}

func (m *memoryStore) GetRequestForUpdate(ctx context.Context, id int64) (LeaveRequest, error) {
	return m.GetRequest(ctx, id)
}

func (m *memoryStore) UpdateRequest(_ context.Context, req LeaveRequest) error {
	if _, ok := m.requests[req.ID]; !ok {
		return ErrRequestNotFound
	}
	m.requests[req.ID] = req
	return nil
}

func (m *memoryStore) ListRequests(_ context.Context, filter ListFilter, _, _ int) (RequestListResult, error) {
	var out []LeaveRequest
	for _, req := range m.requests {
		if req.DeletedAt != nil {
			continue
		}
		if filter.RequesterID > 0 && req.RequesterID != filter.RequesterID {
			continue
		}
		if filter.PendingSupervisorFor > 0 {
			if req.Supervisor.Status != StatusPending || req.Supervisor.ApproverID == nil || *req.Supervisor.ApproverID != filter.PendingSupervisorFor {
				continue
			}
		}
		out = append(out, req)
	}
	return RequestListResult{Requests: out, Total: len(out)}, nil
}

type directory struct {
	users map[int64]core.User
}

func (d *directory) GetUser(_ context.Context, id int64) (core.User, error) {
	user, ok := d.users[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return user, nil
}

func (d *directory) DepartmentHODs(_ context.Context, departmentID int64) ([]int64, error) {
	var out []int64
	for id := int64(1); id <= 100; id++ {
		user, ok := d.users[id]
		if ok && auth.IsHODRole(user.RoleName) && user.DepartmentID != nil && *user.DepartmentID == departmentID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (d *directory) CEOCandidates(context.Context) ([]int64, error) {
	var out []int64
	for id := int64(1); id <= 100; id++ {
		if user, ok := d.users[id]; ok && auth.IsCEORole(user.RoleName) {
			out = append(out, id)
		}
	}
	return out, nil
}

type auditLog struct {
	entries []audit.Entry
}

func (a *auditLog) Record(_ context.Context, entry audit.Entry) {
	a.entries = append(a.entries, entry)
}

type counter map[string]int

func (c counter) Transition(workflow, transition string) {
	c[workflow+"."+transition]++
}

type fixture struct {
	svc     *Service
	store   *memoryStore
	audit   *auditLog
	metrics counter
}

// Department 5: CEO 1, HOD 2, Supervisor 3 (no stored supervisor), Staff 4
// reporting to 3, HR 6 reporting to 2.
func newFixture() fixture {
	dept := int64(5)
	dir := &directory{users: map[int64]core.User{
		1: {ID: 1, RoleName: "CEO"},
		2: {ID: 2, RoleName: "HOD", DepartmentID: &dept},
		3: {ID: 3, RoleName: "Supervisor", DepartmentID: &dept, SupervisorID: ptr(4)},
		4: {ID: 4, RoleName: "Staff", DepartmentID: &dept, SupervisorID: ptr(3)},
		6: {ID: 6, RoleName: "HR", DepartmentID: &dept, SupervisorID: ptr(2)},
		7: {ID: 7, RoleName: "Staff"},
	}}
	store := newMemoryStore()
	log := &auditLog{}
	metrics := counter{}
	svc := NewService(store, dir, approval.NewResolver(dir), log, metrics)
	svc.now = func() time.Time { return testNow }
	return fixture{svc: svc, store: store, audit: log, metrics: metrics}
}

func user(id int64, role string) auth.UserContext {
	return auth.UserContext{UserID: id, RoleName: role, DepartmentID: 5}
}

func createInput() CreateInput {
	return CreateInput{
		LeaveTypeID: 1,
		StartDate:   time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 8, 8, 0, 0, 0, 0, time.UTC),
		Reason:      "holiday",
	}
}

func TestCreateRequestRoutesStaffToSupervisor(t *testing.T) {
	f := newFixture()
	req, err := f.svc.CreateRequest(context.Background(), user(4, "Staff"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if req.DaysRequested != 5 || req.Supervisor.ApproverID == nil || *req.Supervisor.ApproverID != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Action != "leave.create" {
		t.Fatalf("expected create audit entry, got %+v", f.audit.entries)
	}
	if f.metrics["leave.created"] != 1 {
		t.Fatalf("expected created transition, got %v", f.metrics)
	}
}

func TestCreateRequestRoutesSupervisorToHOD(t *testing.T) {
	f := newFixture()
	req, err := f.svc.CreateRequest(context.Background(), user(3, "Supervisor"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if req.Supervisor.ApproverID == nil || *req.Supervisor.ApproverID != 2 {
		t.Fatalf("supervisor should be routed to HOD 2, got %v", req.Supervisor.ApproverID)
	}
}

func TestCreateRequestRoutesHRToCEO(t *testing.T) {
	f := newFixture()
	req, err := f.svc.CreateRequest(context.Background(), user(6, "HR"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !req.RequiresCEOApproval || req.Supervisor.Status != StatusNotRequired {
		t.Fatalf("expected short flow, got %+v", req)
	}
	if req.CEO.ApproverID == nil || *req.CEO.ApproverID != 1 {
		t.Fatalf("expected CEO approver 1, got %v", req.CEO.ApproverID)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := createInput()
	in.EndDate = in.StartDate.AddDate(0, 0, -2)
	if _, err := f.svc.CreateRequest(ctx, user(4, "Staff"), in); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}

	in = createInput()
	in.StartDate = time.Date(2025, 8, 4, 10, 0, 0, 0, time.UTC)
	in.EndDate = time.Date(2025, 8, 4, 5, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateRequest(ctx, user(4, "Staff"), in); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected invalid range for an earlier end time, got %v", err)
	}

	in = createInput()
	in.LeaveTypeID = 99
	if _, err := f.svc.CreateRequest(ctx, user(4, "Staff"), in); !errors.Is(err, ErrUnknownLeaveType) {
		t.Fatalf("expected unknown type, got %v", err)
	}

	in = createInput()
	in.Reason = "   "
	if _, err := f.svc.CreateRequest(ctx, user(4, "Staff"), in); apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := f.svc.CreateRequest(ctx, user(7, "Staff"), createInput()); !errors.Is(err, approval.ErrNoApprover) {
		t.Fatalf("expected no approver, got %v", err)
	}
	if len(f.store.requests) != 0 {
		t.Fatal("failed creations must not persist")
	}
}

func TestFullApprovalJourney(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, user(4, "Staff"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := f.svc.ActOnRequest(ctx, user(3, "Supervisor"), req.ID, StageSupervisor, DecisionApproved, "ok")
	if err != nil {
		t.Fatalf("supervisor approve failed: %v", err)
	}
	if updated.Status != StatusPending {
		t.Fatalf("expected Pending after supervisor approval, got %s", updated.Status)
	}

	if _, err := f.svc.ActOnRequest(ctx, user(3, "Supervisor"), req.ID, StageSupervisor, DecisionRejected, ""); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}

	updated, err = f.svc.ActOnRequest(ctx, user(6, "HR"), req.ID, StageHR, DecisionApproved, "")
	if err != nil {
		t.Fatalf("hr approve failed: %v", err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("expected Approved, got %s", updated.Status)
	}
	if f.metrics["leave.supervisor:Approved"] != 1 || f.metrics["leave.hr:Approved"] != 1 {
		t.Fatalf("unexpected transitions: %v", f.metrics)
	}

	if err := f.svc.CancelRequest(ctx, user(4, "Staff"), req.ID); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected conflict cancelling processed request, got %v", err)
	}
}

func TestHODDelegationForSupervisorApplicant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, user(3, "Supervisor"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// Reassign the gate so only the delegation rule can authorize the HOD.
	stored := f.store.requests[req.ID]
	stored.Supervisor.ApproverID = ptr(50)
	f.store.requests[req.ID] = stored

	if _, err := f.svc.ActOnRequest(ctx, user(2, "HOD"), req.ID, StageSupervisor, DecisionApproved, ""); err != nil {
		t.Fatalf("HOD delegation failed: %v", err)
	}
}

func TestFailedDecisionLeavesRequestUntouched(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, user(4, "Staff"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := f.svc.ActOnRequest(ctx, user(6, "HR"), req.ID, StageHR, DecisionApproved, ""); !errors.Is(err, ErrSupervisorPending) {
		t.Fatalf("expected supervisor pending, got %v", err)
	}
	if f.store.requests[req.ID].HR.Status != StatusPending {
		t.Fatal("HR stage must not change on a rejected transition")
	}
	if len(f.audit.entries) != 1 {
		t.Fatalf("failed transitions must not be audited, got %d entries", len(f.audit.entries))
	}
}

func TestCancelHidesRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, user(4, "Staff"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.svc.CancelRequest(ctx, user(3, "Supervisor"), req.ID); !errors.Is(err, ErrNotRequester) {
		t.Fatalf("expected not requester, got %v", err)
	}
	if err := f.svc.CancelRequest(ctx, user(4, "Staff"), req.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := f.svc.GetRequest(ctx, user(4, "Staff"), req.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("cancelled request should be invisible, got %v", err)
	}
	list, err := f.svc.ListRequests(ctx, user(4, "Staff"), ScopeMine, "", 20, 0)
	if err != nil || list.Total != 0 {
		t.Fatalf("cancelled request should not be listed, got %+v err=%v", list, err)
	}
}

func TestEditRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, user(4, "Staff"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	end := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)

	updated, err := f.svc.EditRequest(ctx, user(4, "Staff"), req.ID, EditInput{EndDate: &end})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if updated.DaysRequested != 2 {
		t.Fatalf("expected 2 days, got %d", updated.DaysRequested)
	}
	last := f.audit.entries[len(f.audit.entries)-1]
	if last.Action != "leave.edit" {
		t.Fatalf("expected edit audit entry, got %s", last.Action)
	}
}

func TestGetRequestVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, user(4, "Staff"), createInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, viewer := range []auth.UserContext{user(4, "Staff"), user(3, "Supervisor"), user(6, "HR"), user(2, "HOD")} {
		if _, err := f.svc.GetRequest(ctx, viewer, req.ID); err != nil {
			t.Fatalf("viewer %d should see request: %v", viewer.UserID, err)
		}
	}
	if _, err := f.svc.GetRequest(ctx, user(7, "Staff"), req.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("unrelated staff should not see request, got %v", err)
	}
}

func TestListRequestsScopes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.CreateRequest(ctx, user(4, "Staff"), createInput()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	pending, err := f.svc.ListRequests(ctx, user(3, "Supervisor"), ScopeApprovals, "", 20, 0)
	if err != nil || pending.Total != 1 {
		t.Fatalf("expected one pending approval, got %+v err=%v", pending, err)
	}
	if _, err := f.svc.ListRequests(ctx, user(4, "Staff"), ScopeAll, "", 20, 0); !errors.Is(err, ErrScopeForbidden) {
		t.Fatalf("expected forbidden scope, got %v", err)
	}
	if _, err := f.svc.ListRequests(ctx, user(4, "Staff"), Scope("team"), "", 20, 0); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("expected invalid scope, got %v", err)
	}
}

func TestCreateRequestStoresCalendarDates(t *testing.T) {
	f := newFixture()
	in := createInput()
	in.StartDate = time.Date(2025, 8, 4, 10, 0, 0, 0, time.UTC)
	in.EndDate = time.Date(2025, 8, 5, 9, 0, 0, 0, time.UTC)
	req, err := f.svc.CreateRequest(context.Background(), user(4, "Staff"), in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if req.DaysRequested != 2 {
		t.Fatalf("expected 2 days, got %d", req.DaysRequested)
	}
	if !req.StartDate.Equal(time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)) || !req.EndDate.Equal(time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected dates truncated to midnight, got %s %s", req.StartDate, req.EndDate)
	}
}
