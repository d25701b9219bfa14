package core

import "time"

type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email,omitempty"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	StaffRef       string     `json:"staffRef,omitempty"`
	RoleID         int64      `json:"roleId"`
	RoleName       string     `json:"role"`
	DepartmentID   *int64     `json:"departmentId,omitempty"`
	DepartmentName string     `json:"departmentName,omitempty"`
	SupervisorID   *int64     `json:"supervisorId,omitempty"`
	Status         string     `json:"status"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type NewUser struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	StaffRef     string
	RoleID       int64
	DepartmentID *int64
	SupervisorID *int64
}

type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Candidate is a user considered when routing approvals.
type Candidate struct {
	ID       int64
	RoleName string
}

const UserStatusActive = "active"
