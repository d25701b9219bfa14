// Package approval decides who must sign off a request raised by a user.
package approval

import (
	"context"
	"slices"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/platform/apperror"
)

var ErrNoApprover = apperror.Validation("no_approver_assigned", "No supervisor or HOD assigned. Please contact HR.")

type Rule string

const (
	RuleDepartmentHOD Rule = "department_hod"
	RuleCEO           Rule = "ceo"
	RuleSupervisor    Rule = "supervisor"
)

type Subject struct {
	UserID       int64
	RoleName     string
	DepartmentID *int64
	SupervisorID *int64
}

func SubjectFromUser(u core.User) Subject {
	return Subject{
		UserID:       u.ID,
		RoleName:     u.RoleName,
		DepartmentID: u.DepartmentID,
		SupervisorID: u.SupervisorID,
	}
}

// Route is the outcome of approver resolution. ApproverID may be nil only
// when RequiresCEOApproval is set and no CEO exists yet.
type Route struct {
	ApproverID          *int64 `json:"approverId"`
	RequiresCEOApproval bool   `json:"requiresCeoApproval"`
	Rule                Rule   `json:"rule"`
}

// Resolve applies the routing rules in order:
//  1. a Supervisor with a department goes to that department's HOD,
//  2. HOD and HR roles go to the CEO and skip the supervisor gate,
//  3. everyone else goes to their stored supervisor.
//
// hods and ceos are candidate user ids; the lowest id wins. fallback is used
// when rules 2 and 3 find nobody.
func Resolve(subject Subject, hods, ceos []int64, fallback *int64) (Route, error) {
	switch {
	case auth.IsSupervisorRole(subject.RoleName) && subject.DepartmentID != nil:
		hod, ok := lowest(hods, subject.UserID)
		if !ok {
			return Route{Rule: RuleDepartmentHOD}, ErrNoApprover
		}
		return Route{ApproverID: &hod, Rule: RuleDepartmentHOD}, nil

	case auth.RoutesToCEO(subject.RoleName):
		route := Route{RequiresCEOApproval: true, Rule: RuleCEO}
		if ceo, ok := lowest(ceos, subject.UserID); ok {
			route.ApproverID = &ceo
		} else if fallback != nil {
			id := *fallback
			route.ApproverID = &id
		}
		return route, nil

	default:
		route := Route{Rule: RuleSupervisor}
		switch {
		case subject.SupervisorID != nil:
			id := *subject.SupervisorID
			route.ApproverID = &id
		case fallback != nil:
			id := *fallback
			route.ApproverID = &id
		default:
			return route, ErrNoApprover
		}
		return route, nil
	}
}

// lowest picks the smallest id other than self.
func lowest(ids []int64, self int64) (int64, bool) {
	candidates := slices.DeleteFunc(slices.Clone(ids), func(id int64) bool { return id == self || id <= 0 })
	if len(candidates) == 0 {
		return 0, false
	}
	return slices.Min(candidates), true
}

type Directory interface {
	GetUser(ctx context.Context, userID int64) (core.User, error)
	DepartmentHODs(ctx context.Context, departmentID int64) ([]int64, error)
	CEOCandidates(ctx context.Context) ([]int64, error)
}

type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// ResolveApprover loads the subject and the candidate lists its role needs.
func (r *Resolver) ResolveApprover(ctx context.Context, subjectID int64, fallback *int64) (Route, error) {
	user, err := r.dir.GetUser(ctx, subjectID)
	if err != nil {
		return Route{}, err
	}
	return r.ResolveFor(ctx, SubjectFromUser(user), fallback)
}

func (r *Resolver) ResolveFor(ctx context.Context, subject Subject, fallback *int64) (Route, error) {
	var hods, ceos []int64
	var err error
	switch {
	case auth.IsSupervisorRole(subject.RoleName) && subject.DepartmentID != nil:
		hods, err = r.dir.DepartmentHODs(ctx, *subject.DepartmentID)
	case auth.RoutesToCEO(subject.RoleName):
		ceos, err = r.dir.CEOCandidates(ctx)
	}
	if err != nil {
		return Route{}, err
	}
	return Resolve(subject, hods, ceos, fallback)
}

// IsDepartmentHOD reports whether actorID is an HOD of the department.
func (r *Resolver) IsDepartmentHOD(ctx context.Context, actorID int64, departmentID *int64) (bool, error) {
	if departmentID == nil {
		return false, nil
	}
	hods, err := r.dir.DepartmentHODs(ctx, *departmentID)
	if err != nil {
		return false, err
	}
	return slices.Contains(hods, actorID), nil
}
