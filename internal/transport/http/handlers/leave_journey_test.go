package handlers_test

import (
	"net/http"
	"testing"
)

type leaveView struct {
	ID                  int64  `json:"id"`
	Status              string `json:"status"`
	DaysRequested       int    `json:"daysRequested"`
	RequiresCEOApproval bool   `json:"requiresCeoApproval"`
	Supervisor          struct {
		ApproverID *int64 `json:"approverId"`
		Status     string `json:"status"`
	} `json:"supervisor"`
	HR struct {
		Status string `json:"status"`
	} `json:"hr"`
	CEO struct {
		Status string `json:"status"`
	} `json:"ceo"`
}

func TestLeaveThreeGateJourney(t *testing.T) {
	h := newHarness(t)
	o := h.newOrg()
	leaveTypeID := annualLeaveTypeID(t, h, o.staff.token)

	var req leaveView
	decodeData(t, postJSONStatus(t, h.client, h.url("/leave/requests"), o.staff.token, map[string]any{
		"leaveTypeId": leaveTypeID,
		"startDate":   "2030-03-04",
		"endDate":     "2030-03-06",
		"reason":      "Family visit",
	}, http.StatusCreated), &req)

	if req.Status != "Pending" || req.DaysRequested != 3 || req.RequiresCEOApproval {
		t.Fatalf("unexpected new request: %+v", req)
	}
	if req.Supervisor.ApproverID == nil || *req.Supervisor.ApproverID != o.supervisor.id {
		t.Fatalf("expected supervisor %d to be routed, got %v", o.supervisor.id, req.Supervisor.ApproverID)
	}
	if req.CEO.Status != "Not Required" {
		t.Fatalf("expected CEO stage off-route, got %q", req.CEO.Status)
	}

	// The requester may still edit before the first decision.
	decodeData(t, sendJSONStatus(t, h.client, http.MethodPut, h.url(idPath("/leave/requests/%d", req.ID)), o.staff.token, map[string]any{
		"endDate": "2030-03-07",
	}, http.StatusOK), &req)
	if req.DaysRequested != 4 {
		t.Fatalf("expected 4 days after edit, got %d", req.DaysRequested)
	}

	env := postJSONStatus(t, h.client, h.url(idPath("/leave/requests/%d/decisions", req.ID)), o.hr.token, map[string]any{
		"stage": "hr", "decision": "Approved",
	}, http.StatusConflict)
	assertErrorCode(t, env, "supervisor_approval_required")

	env = postJSONStatus(t, h.client, h.url(idPath("/leave/requests/%d/decisions", req.ID)), o.hod.token, map[string]any{
		"stage": "supervisor", "decision": "Approved",
	}, http.StatusForbidden)
	assertErrorCode(t, env, "not_approver")

	decodeData(t, postJSON(t, h.client, h.url(idPath("/leave/requests/%d/approve", req.ID)), o.supervisor.token, map[string]any{
		"stage": "supervisor", "comment": "Covered",
	}), &req)
	if req.Supervisor.Status != "Approved" || req.Status != "Pending" {
		t.Fatalf("unexpected status after supervisor approval: %+v", req)
	}

	postJSONStatus(t, h.client, h.url(idPath("/leave/requests/%d/decisions", req.ID)), o.supervisor.token, map[string]any{
		"stage": "supervisor", "decision": "Rejected",
	}, http.StatusConflict)
	sendJSONStatus(t, h.client, http.MethodPut, h.url(idPath("/leave/requests/%d", req.ID)), o.staff.token, map[string]any{
		"reason": "changed",
	}, http.StatusConflict)

	decodeData(t, postJSON(t, h.client, h.url(idPath("/leave/requests/%d/decisions", req.ID)), o.hr.token, map[string]any{
		"stage": "hr", "decision": "Approved",
	}), &req)
	if req.Status != "Approved" {
		t.Fatalf("expected Approved after HR, got %+v", req)
	}

	// HR may revise its own decision.
	decodeData(t, postJSON(t, h.client, h.url(idPath("/leave/requests/%d/reject", req.ID)), o.hr.token, map[string]any{
		"stage": "hr", "comment": "Peak period",
	}), &req)
	if req.Status != "Rejected" || req.HR.Status != "Rejected" {
		t.Fatalf("expected HR rejection to win, got %+v", req)
	}
}

func TestLeaveCEORouteForHR(t *testing.T) {
	h := newHarness(t)
	o := h.newOrg()
	leaveTypeID := annualLeaveTypeID(t, h, o.hr.token)

	var req leaveView
	decodeData(t, postJSONStatus(t, h.client, h.url("/leave/requests"), o.hr.token, map[string]any{
		"leaveTypeId": leaveTypeID,
		"startDate":   "2030-05-10",
		"endDate":     "2030-05-10",
		"reason":      "Conference",
	}, http.StatusCreated), &req)

	if !req.RequiresCEOApproval || req.Supervisor.Status != "Not Required" || req.HR.Status != "Not Required" {
		t.Fatalf("expected CEO-only route, got %+v", req)
	}
	if req.DaysRequested != 1 {
		t.Fatalf("expected a single day, got %d", req.DaysRequested)
	}

	env := postJSONStatus(t, h.client, h.url(idPath("/leave/requests/%d/decisions", req.ID)), o.supervisor.token, map[string]any{
		"stage": "supervisor", "decision": "Approved",
	}, http.StatusConflict)
	assertErrorCode(t, env, "stage_not_applicable")

	env = postJSONStatus(t, h.client, h.url(idPath("/leave/requests/%d/decisions", req.ID)), o.hr.token, map[string]any{
		"stage": "ceo", "decision": "Approved",
	}, http.StatusForbidden)
	assertErrorCode(t, env, "self_approval")

	decodeData(t, postJSON(t, h.client, h.url(idPath("/leave/requests/%d/decisions", req.ID)), o.ceo.token, map[string]any{
		"stage": "ceo", "decision": "approve",
	}), &req)
	if req.Status != "Approved" || req.CEO.Status != "Approved" {
		t.Fatalf("expected CEO approval, got %+v", req)
	}
}

func TestLeaveCancelByRequester(t *testing.T) {
	h := newHarness(t)
	o := h.newOrg()
	leaveTypeID := annualLeaveTypeID(t, h, o.staff.token)

	var req leaveView
	decodeData(t, postJSONStatus(t, h.client, h.url("/leave/requests"), o.staff.token, map[string]any{
		"leaveTypeId": leaveTypeID,
		"startDate":   "2030-07-01",
		"endDate":     "2030-07-02",
		"reason":      "Moving house",
	}, http.StatusCreated), &req)

	env := postJSONStatus(t, h.client, h.url(idPath("/leave/requests/%d/cancel", req.ID)), o.supervisor.token, nil, http.StatusForbidden)
	assertErrorCode(t, env, "not_requester")

	postJSON(t, h.client, h.url(idPath("/leave/requests/%d/cancel", req.ID)), o.staff.token, nil)
	getJSONStatus(t, h.client, h.url(idPath("/leave/requests/%d", req.ID)), o.staff.token, http.StatusNotFound)
}
