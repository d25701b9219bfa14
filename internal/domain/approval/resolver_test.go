package approval

import (
	"context"
	"errors"
	"testing"

	"staffdesk/internal/domain/core"
)

func ptr(v int64) *int64 { return &v }

func TestResolveSupervisorRoutesToDepartmentHOD(t *testing.T) {
	subject := Subject{UserID: 20, RoleName: "Supervisor", DepartmentID: ptr(3), SupervisorID: ptr(99)}

	route, err := Resolve(subject, []int64{14, 8, 31}, nil, ptr(77))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.ApproverID == nil || *route.ApproverID != 8 {
		t.Fatalf("expected lowest HOD 8, got %v", route.ApproverID)
	}
	if route.RequiresCEOApproval {
		t.Fatal("supervisor requests keep the supervisor gate")
	}
	if *route.ApproverID == *subject.SupervisorID {
		t.Fatal("supervisor must never be routed to their stored supervisor")
	}
}

func TestResolveSupervisorWithoutHODFails(t *testing.T) {
	subject := Subject{UserID: 20, RoleName: "supervisor", DepartmentID: ptr(3), SupervisorID: ptr(99)}

	_, err := Resolve(subject, nil, nil, ptr(77))
	if !errors.Is(err, ErrNoApprover) {
		t.Fatalf("expected ErrNoApprover, got %v", err)
	}
}

func TestResolveHODAndHRRouteToCEO(t *testing.T) {
	cases := []string{"HOD", "Head of Department", "HR", "HR Manager", "Human Resources"}
	for _, role := range cases {
		route, err := Resolve(Subject{UserID: 5, RoleName: role, SupervisorID: ptr(6)}, nil, []int64{12, 2}, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", role, err)
		}
		if !route.RequiresCEOApproval || route.Rule != RuleCEO {
			t.Fatalf("%s: expected CEO route, got %+v", role, route)
		}
		if route.ApproverID == nil || *route.ApproverID != 2 {
			t.Fatalf("%s: expected CEO 2, got %v", role, route.ApproverID)
		}
	}
}

func TestResolveCEORouteFallsBack(t *testing.T) {
	route, err := Resolve(Subject{UserID: 5, RoleName: "HR"}, nil, nil, ptr(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.ApproverID == nil || *route.ApproverID != 40 {
		t.Fatalf("expected fallback 40, got %v", route.ApproverID)
	}

	route, err = Resolve(Subject{UserID: 5, RoleName: "HR"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("CEO route without approver should not fail: %v", err)
	}
	if route.ApproverID != nil || !route.RequiresCEOApproval {
		t.Fatalf("expected unassigned CEO route, got %+v", route)
	}
}

func TestResolveStaffUsesSupervisorThenFallback(t *testing.T) {
	route, err := Resolve(Subject{UserID: 9, RoleName: "Staff", SupervisorID: ptr(4)}, nil, nil, ptr(40))
	if err != nil || route.ApproverID == nil || *route.ApproverID != 4 {
		t.Fatalf("expected supervisor 4, got %+v err=%v", route, err)
	}

	route, err = Resolve(Subject{UserID: 9, RoleName: "Staff"}, nil, nil, ptr(40))
	if err != nil || route.ApproverID == nil || *route.ApproverID != 40 {
		t.Fatalf("expected fallback 40, got %+v err=%v", route, err)
	}

	_, err = Resolve(Subject{UserID: 9, RoleName: "Staff"}, nil, nil, nil)
	if !errors.Is(err, ErrNoApprover) {
		t.Fatalf("expected ErrNoApprover, got %v", err)
	}
}

func TestResolveSupervisorWithoutDepartmentUsesSupervisor(t *testing.T) {
	route, err := Resolve(Subject{UserID: 9, RoleName: "Supervisor", SupervisorID: ptr(4)}, []int64{1}, nil, nil)
	if err != nil || route.ApproverID == nil || *route.ApproverID != 4 {
		t.Fatalf("expected supervisor 4, got %+v err=%v", route, err)
	}
}

type fakeDirectory struct {
	users    map[int64]core.User
	hods     map[int64][]int64
	ceos     []int64
	hodCalls int
	ceoCalls int
}

func (f *fakeDirectory) GetUser(_ context.Context, id int64) (core.User, error) {
	user, ok := f.users[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeDirectory) DepartmentHODs(_ context.Context, departmentID int64) ([]int64, error) {
	f.hodCalls++
	return f.hods[departmentID], nil
}

func (f *fakeDirectory) CEOCandidates(context.Context) ([]int64, error) {
	f.ceoCalls++
	return f.ceos, nil
}

func TestResolverLoadsOnlyNeededCandidates(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]core.User{
			1: {ID: 1, RoleName: "Staff", SupervisorID: ptr(2)},
			2: {ID: 2, RoleName: "Supervisor", DepartmentID: ptr(10)},
			3: {ID: 3, RoleName: "HOD", DepartmentID: ptr(10)},
		},
		hods: map[int64][]int64{10: {3}},
		ceos: []int64{50},
	}
	resolver := NewResolver(dir)
	ctx := context.Background()

	route, err := resolver.ResolveApprover(ctx, 1, nil)
	if err != nil || *route.ApproverID != 2 {
		t.Fatalf("staff route: %+v err=%v", route, err)
	}
	if dir.hodCalls != 0 || dir.ceoCalls != 0 {
		t.Fatal("staff routing should not query candidates")
	}

	route, err = resolver.ResolveApprover(ctx, 2, nil)
	if err != nil || *route.ApproverID != 3 {
		t.Fatalf("supervisor route: %+v err=%v", route, err)
	}

	route, err = resolver.ResolveApprover(ctx, 3, nil)
	if err != nil || *route.ApproverID != 50 || !route.RequiresCEOApproval {
		t.Fatalf("hod route: %+v err=%v", route, err)
	}

	ok, err := resolver.IsDepartmentHOD(ctx, 3, ptr(10))
	if err != nil || !ok {
		t.Fatalf("expected user 3 to be HOD of 10, ok=%v err=%v", ok, err)
	}

	if _, err := resolver.ResolveApprover(ctx, 404, nil); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
