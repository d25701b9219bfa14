package core

import (
	"testing"
	"time"

	"staffdesk/internal/domain/auth"
)

func sampleUser() *User {
	login := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &User{
		ID:        7,
		Email:     "ada@example.com",
		StaffRef:  "ST-007",
		LastLogin: &login,
	}
}

func TestFilterUserFieldsHR(t *testing.T) {
	user := sampleUser()
	FilterUserFields(user, auth.UserContext{UserID: 1, RoleName: "Human Resources Officer"})

	if user.Email == "" || user.StaffRef == "" || user.LastLogin == nil {
		t.Fatal("HR should retain contact fields")
	}
}

func TestFilterUserFieldsSelf(t *testing.T) {
	user := sampleUser()
	FilterUserFields(user, auth.UserContext{UserID: 7, RoleName: auth.RoleStaff})

	if user.Email == "" {
		t.Fatal("user should see their own email")
	}
}

func TestFilterUserFieldsColleague(t *testing.T) {
	user := sampleUser()
	FilterUserFields(user, auth.UserContext{UserID: 3, RoleName: auth.RoleSupervisor})

	if user.Email != "" || user.StaffRef != "" || user.LastLogin != nil {
		t.Fatal("colleague should not see contact fields")
	}
}

func TestFilterCandidatesKeepsOrder(t *testing.T) {
	candidates := []Candidate{
		{ID: 2, RoleName: "Staff"},
		{ID: 4, RoleName: "HOD"},
		{ID: 9, RoleName: "Head of Department"},
		{ID: 11, RoleName: "Chief Executive Officer"},
	}

	hods := filterCandidates(candidates, auth.IsHODRole)
	if len(hods) != 2 || hods[0] != 4 || hods[1] != 9 {
		t.Fatalf("unexpected HODs: %v", hods)
	}
	ceos := filterCandidates(candidates, auth.IsCEORole)
	if len(ceos) != 1 || ceos[0] != 11 {
		t.Fatalf("unexpected CEOs: %v", ceos)
	}
}
