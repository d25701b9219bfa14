package handlers_test

import (
	"net/http"
	"testing"
)

type appraisalView struct {
	ID            int64   `json:"id"`
	SubjectID     int64   `json:"subjectId"`
	ApproverID    *int64  `json:"approverId"`
	Status        string  `json:"status"`
	SectionBTotal float64 `json:"sectionBTotal"`
	SectionCTotal float64 `json:"sectionCTotal"`
	OverallScore  float64 `json:"overallScore"`
	Signatures    struct {
		AppraiseeSignedAt *string `json:"appraiseeSignedAt"`
		AppraiserSignedAt *string `json:"appraiserSignedAt"`
		HODSignedAt       *string `json:"hodSignedAt"`
		HRSignedAt        *string `json:"hrSignedAt"`
		CEOSignedAt       *string `json:"ceoSignedAt"`
	} `json:"signatures"`
}

func TestAppraisalLifecycleJourney(t *testing.T) {
	h := newHarness(t)
	o := h.newOrg()

	var a appraisalView
	decodeData(t, postJSONStatus(t, h.client, h.url("/performance/appraisals"), o.staff.token, map[string]any{
		"period":   map[string]any{"type": "annual", "year": 2030},
		"comments": map[string]any{"appraisee": "Delivered the migration"},
	}, http.StatusCreated), &a)
	if a.Status != "Draft" || a.SubjectID != o.staff.id {
		t.Fatalf("unexpected new appraisal: %+v", a)
	}
	if a.ApproverID == nil || *a.ApproverID != o.supervisor.id {
		t.Fatalf("expected supervisor as approver, got %v", a.ApproverID)
	}

	env := postJSONStatus(t, h.client, h.url("/performance/appraisals"), o.staff.token, map[string]any{
		"period": map[string]any{"type": "Annual", "year": 2030},
	}, http.StatusConflict)
	assertErrorCode(t, env, "duplicate_period")

	decodeData(t, patchJSON(t, h.client, h.url(idPath("/performance/appraisals/%d", a.ID)), o.staff.token, map[string]any{
		"kraScores": []map[string]any{
			{"objective": "Uptime", "weight": 60, "weightedAverage": 90},
			{"objective": "Delivery", "weight": 40, "weightedAverage": 80},
		},
		"softSkills": []map[string]any{
			{"skill": "Teamwork", "rating": 95},
			{"skill": "Communication", "rating": 85},
		},
	}), &a)
	if a.Status != "Submitted" {
		t.Fatalf("expected Submitted once both sections are scored, got %s", a.Status)
	}
	if a.SectionBTotal <= 0 || a.SectionCTotal <= 0 || a.OverallScore <= 0 {
		t.Fatalf("expected computed totals, got %+v", a)
	}

	env = sendJSONStatus(t, h.client, http.MethodPatch, h.url(idPath("/performance/appraisals/%d", a.ID)), o.staff.token, map[string]any{
		"comments": map[string]any{"appraiser": "self review"},
	}, http.StatusForbidden)
	assertErrorCode(t, env, "comment_slot_forbidden")

	steps := []struct {
		token  string
		slot   string
		status string
	}{
		{o.supervisor.token, "appraiser", "Supervisor_Review"},
		{o.hod.token, "hod", "HOD_Review"},
		{o.hr.token, "hr", "HR_Review"},
		{o.ceo.token, "ceo", "Finalized"},
	}
	for _, step := range steps {
		decodeData(t, patchJSON(t, h.client, h.url(idPath("/performance/appraisals/%d", a.ID)), step.token, map[string]any{
			"comments": map[string]any{step.slot: "Signed off by " + step.slot},
		}), &a)
		if a.Status != step.status {
			t.Fatalf("after %s comment expected %s, got %s", step.slot, step.status, a.Status)
		}
	}
	sig := a.Signatures
	if sig.AppraiseeSignedAt == nil || sig.AppraiserSignedAt == nil || sig.HODSignedAt == nil || sig.HRSignedAt == nil || sig.CEOSignedAt == nil {
		t.Fatalf("expected every signature stamped, got %+v", sig)
	}

	env = sendJSONStatus(t, h.client, http.MethodPatch, h.url(idPath("/performance/appraisals/%d", a.ID)), o.ceo.token, map[string]any{
		"overallOverride": 95,
	}, http.StatusConflict)
	assertErrorCode(t, env, "appraisal_finalized")

	var fetched appraisalView
	decodeData(t, getJSON(t, h.client, h.url(idPath("/performance/appraisals/%d", a.ID)), o.hod.token), &fetched)
	if fetched.Status != "Finalized" || fetched.Signatures.CEOSignedAt == nil || fetched.Signatures.AppraiseeSignedAt == nil {
		t.Fatalf("expected stored signatures, got %+v", fetched)
	}
}

func TestAppraisalDeleteRestoreJourney(t *testing.T) {
	h := newHarness(t)
	o := h.newOrg()

	period := map[string]any{"type": "quarterly", "year": 2031, "quarter": 1}
	var first appraisalView
	decodeData(t, postJSONStatus(t, h.client, h.url("/performance/appraisals"), o.staff.token, map[string]any{
		"period": period,
	}, http.StatusCreated), &first)

	getJSONStatus(t, h.client, h.url(idPath("/performance/appraisals/%d", first.ID)), o.hr.token, http.StatusOK)
	sendJSONStatus(t, h.client, http.MethodDelete, h.url(idPath("/performance/appraisals/%d", first.ID)), o.staff.token, nil, http.StatusForbidden)
	sendJSONStatus(t, h.client, http.MethodDelete, h.url(idPath("/performance/appraisals/%d", first.ID)), o.hr.token, nil, http.StatusOK)

	// Restoring a deleted record is accepted twice.
	postJSON(t, h.client, h.url(idPath("/performance/appraisals/%d/restore", first.ID)), o.hr.token, nil)
	postJSON(t, h.client, h.url(idPath("/performance/appraisals/%d/restore", first.ID)), o.hr.token, nil)

	sendJSONStatus(t, h.client, http.MethodDelete, h.url(idPath("/performance/appraisals/%d", first.ID)), o.hr.token, nil, http.StatusOK)
	var second appraisalView
	decodeData(t, postJSONStatus(t, h.client, h.url("/performance/appraisals"), o.supervisor.token, map[string]any{
		"subjectId": o.staff.id,
		"period":    period,
	}, http.StatusCreated), &second)

	env := postJSONStatus(t, h.client, h.url(idPath("/performance/appraisals/%d/restore", first.ID)), o.hr.token, nil, http.StatusConflict)
	assertErrorCode(t, env, "duplicate_period")
	details := env.Error.(map[string]any)["details"].(map[string]any)
	if existing, _ := details["existingId"].(float64); int64(existing) != second.ID {
		t.Fatalf("expected existingId %d, got %+v", second.ID, details)
	}
}

func TestAppraisalUpperBandRatingsJourney(t *testing.T) {
	h := newHarness(t)
	o := h.newOrg()

	var a appraisalView
	decodeData(t, postJSONStatus(t, h.client, h.url("/performance/appraisals"), o.staff.token, map[string]any{
		"period": map[string]any{"type": "semi-annually", "year": 2032, "half": 1},
		"softSkills": []map[string]any{
			{"skill": "Teamwork", "rating": 100},
			{"skill": "Ownership", "rating": 105},
			{"skill": "Mentoring", "rating": 120},
		},
	}, http.StatusCreated), &a)
	if a.SectionCTotal != 33 {
		t.Fatalf("expected section C 33, got %+v", a)
	}

	var fetched appraisalView
	decodeData(t, getJSON(t, h.client, h.url(idPath("/performance/appraisals/%d", a.ID)), o.staff.token), &fetched)
	if fetched.SectionCTotal != 33 {
		t.Fatalf("expected stored section C 33, got %+v", fetched)
	}

	env := sendJSONStatus(t, h.client, http.MethodPatch, h.url(idPath("/performance/appraisals/%d", a.ID)), o.staff.token, map[string]any{
		"softSkills": []map[string]any{{"skill": "Teamwork", "rating": 5000}},
	}, http.StatusBadRequest)
	assertErrorCode(t, env, "score_out_of_range")

	env = sendJSONStatus(t, h.client, http.MethodPatch, h.url(idPath("/performance/appraisals/%d", a.ID)), o.staff.token, map[string]any{
		"sectionCRaw": 1500,
	}, http.StatusBadRequest)
	assertValidationErrorField(t, env, "sectionCRaw")
}
