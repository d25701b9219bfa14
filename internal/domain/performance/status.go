package performance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the appraisal lifecycle stage. It is never stored; DeriveStatus
// computes it from the scored sections and the sign-off comments.
type Status int

const (
	StatusDraft Status = iota
	StatusSubmitted
	StatusSupervisorReview
	StatusHODReview
	StatusHRReview
	StatusFinalized
)

var statusNames = [...]string{
	StatusDraft:            "Draft",
	StatusSubmitted:        "Submitted",
	StatusSupervisorReview: "Supervisor_Review",
	StatusHODReview:        "HOD_Review",
	StatusHRReview:         "HR_Review",
	StatusFinalized:        "Finalized",
}

func (s Status) String() string {
	if s < StatusDraft || s > StatusFinalized {
		return "Unknown"
	}
	return statusNames[s]
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, candidate := range statusNames {
		if strings.EqualFold(candidate, name) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown appraisal status %q", name)
}

// AtLeast reports whether s has reached other.
func (s Status) AtLeast(other Status) bool {
	return s >= other
}

type Evidence struct {
	HasSectionB bool
	HasSectionC bool
	Comments    Comments
}

func DeriveStatus(e Evidence) Status {
	switch {
	case !e.HasSectionB || !e.HasSectionC:
		return StatusDraft
	case blank(e.Comments.Appraiser):
		return StatusSubmitted
	case blank(e.Comments.HOD):
		return StatusSupervisorReview
	case blank(e.Comments.HR):
		return StatusHODReview
	case blank(e.Comments.CEO):
		return StatusHRReview
	default:
		return StatusFinalized
	}
}

// HasSectionB reports whether any KRA row carries a positive value, or the
// legacy stored total is positive.
func HasSectionB(rows []KRAScore, raw *float64) bool {
	if positive(raw) {
		return true
	}
	for _, row := range rows {
		if positive(row.Total) || positive(row.WeightedAverage) {
			return true
		}
		for _, month := range row.Monthly {
			if positive(month.Actual) || positive(month.Percent) {
				return true
			}
		}
	}
	return false
}

func HasSectionC(rows []SoftSkillScore, raw *float64) bool {
	if positive(raw) {
		return true
	}
	for _, row := range rows {
		if positive(row.Rating) {
			return true
		}
	}
	return false
}

// Evidence collects the inputs of DeriveStatus from the appraisal.
func (a Appraisal) Evidence() Evidence {
	e := Evidence{
		HasSectionB: HasSectionB(a.KRAScores, a.SectionBRaw),
		HasSectionC: HasSectionC(a.SoftSkills, a.SectionCRaw),
		Comments:    a.Comments,
	}
	if a.scoredB != nil {
		e.HasSectionB = e.HasSectionB || *a.scoredB
	}
	if a.scoredC != nil {
		e.HasSectionC = e.HasSectionC || *a.scoredC
	}
	return e
}

// StampSignatures sets the signature date of every stage status has reached.
// Existing dates are never overwritten.
func StampSignatures(sig *Signatures, status Status, now time.Time) bool {
	stamps := []struct {
		reached Status
		field   **time.Time
	}{
		{StatusSubmitted, &sig.AppraiseeSignedAt},
		{StatusSupervisorReview, &sig.AppraiserSignedAt},
		{StatusHODReview, &sig.HODSignedAt},
		{StatusHRReview, &sig.HRSignedAt},
		{StatusFinalized, &sig.CEOSignedAt},
	}
	changed := false
	for _, stamp := range stamps {
		if status.AtLeast(stamp.reached) && *stamp.field == nil {
			at := now
			*stamp.field = &at
			changed = true
		}
	}
	return changed
}

func blank(value string) bool {
	return strings.TrimSpace(value) == ""
}
