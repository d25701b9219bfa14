package performance

import (
	"strings"
	"time"
)

const (
	PeriodQuarterly    = "Quarterly"
	PeriodSemiAnnually = "Semi-annually"
	PeriodAnnual       = "Annual"
)

type Period struct {
	Type    string `json:"type"`
	Year    int    `json:"year"`
	Quarter *int   `json:"quarter,omitempty"`
	Half    *int   `json:"half,omitempty"`
}

// MonthlyScore is one month of a KRA row. Any field may be missing on a
// partially filled form.
type MonthlyScore struct {
	Month   string   `json:"month,omitempty"`
	Target  *float64 `json:"target"`
	Actual  *float64 `json:"actual"`
	Percent *float64 `json:"percent"`
}

type KRAScore struct {
	ID              int64          `json:"id,omitempty"`
	Objective       string         `json:"objective"`
	Weight          *float64       `json:"weight"`
	Monthly         []MonthlyScore `json:"monthly"`
	Total           *float64       `json:"total"`
	WeightedAverage *float64       `json:"weightedAverage"`
}

type SoftSkillScore struct {
	ID            int64    `json:"id,omitempty"`
	Skill         string   `json:"skill"`
	Rating        *float64 `json:"rating"`
	Weight        int      `json:"weight"`
	WeightedScore float64  `json:"weightedScore"`
}

type Course struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title"`
}

type DevelopmentPlan struct {
	ID         int64      `json:"id,omitempty"`
	Area       string     `json:"area"`
	Action     string     `json:"action"`
	TargetDate *time.Time `json:"targetDate,omitempty"`
}

type Comments struct {
	Appraisee string `json:"appraisee"`
	Appraiser string `json:"appraiser"`
	HOD       string `json:"hod"`
	HR        string `json:"hr"`
	CEO       string `json:"ceo"`
}

type Signatures struct {
	AppraiseeSignedAt *time.Time `json:"appraiseeSignedAt,omitempty"`
	AppraiserSignedAt *time.Time `json:"appraiserSignedAt,omitempty"`
	HODSignedAt       *time.Time `json:"hodSignedAt,omitempty"`
	HRSignedAt        *time.Time `json:"hrSignedAt,omitempty"`
	CEOSignedAt       *time.Time `json:"ceoSignedAt,omitempty"`
}

type Appraisal struct {
	ID               int64             `json:"id"`
	SubjectID        int64             `json:"subjectId"`
	ApproverID       *int64            `json:"approverId"`
	StaffRef         string            `json:"staffRef,omitempty"`
	Period           Period            `json:"period"`
	Comments         Comments          `json:"comments"`
	Signatures       Signatures        `json:"signatures"`
	SectionBRaw      *float64          `json:"sectionBRaw,omitempty"`
	SectionCRaw      *float64          `json:"sectionCRaw,omitempty"`
	OverallOverride  *float64          `json:"overallOverride,omitempty"`
	SectionBTotal    float64           `json:"sectionBTotal"`
	SectionCTotal    float64           `json:"sectionCTotal"`
	OverallScore     float64           `json:"overallScore"`
	Status           Status            `json:"status"`
	KRAScores        []KRAScore        `json:"kraScores"`
	SoftSkills       []SoftSkillScore  `json:"softSkills"`
	Courses          []Course          `json:"courses"`
	DevelopmentPlans []DevelopmentPlan `json:"developmentPlans"`
	Warnings         []string          `json:"warnings,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	DeletedAt        *time.Time        `json:"deletedAt,omitempty"`

	// Set by listings that do not load child rows.
	scoredB *bool
	scoredC *bool
}

// CommentsPatch sets individual comment slots; nil leaves a slot unchanged.
type CommentsPatch struct {
	Appraisee *string
	Appraiser *string
	HOD       *string
	HR        *string
	CEO       *string
}

func (c CommentsPatch) empty() bool {
	return c.Appraisee == nil && c.Appraiser == nil && c.HOD == nil && c.HR == nil && c.CEO == nil
}

// Patch is a partial appraisal update. Collections replace the stored rows
// wholesale when non-nil.
type Patch struct {
	Comments         CommentsPatch
	KRAScores        *[]KRAScore
	SoftSkills       *[]SoftSkillScore
	Courses          *[]Course
	DevelopmentPlans *[]DevelopmentPlan
	SectionBRaw      *float64
	SectionCRaw      *float64
	OverallOverride  *float64
}

func (p Patch) touchesContent() bool {
	return p.KRAScores != nil || p.SoftSkills != nil || p.Courses != nil || p.DevelopmentPlans != nil ||
		p.SectionBRaw != nil || p.SectionCRaw != nil
}

type CreateInput struct {
	SubjectID int64
	Period    Period
	Content   Patch
}

type ListFilter struct {
	SubjectID  int64
	ApproverID int64
	Year       int
	PeriodType string
	// VisibleTo limits results to appraisals the user is subject or approver of.
	VisibleTo int64
}

type ListResult struct {
	Appraisals []Appraisal `json:"appraisals"`
	Total      int         `json:"total"`
}

func (p Period) Normalize() Period {
	p.Type = normalizePeriodType(p.Type)
	switch p.Type {
	case PeriodQuarterly:
		p.Half = nil
	case PeriodSemiAnnually:
		p.Quarter = nil
	case PeriodAnnual:
		p.Quarter = nil
		p.Half = nil
	}
	return p
}

func (p Period) Validate() error {
	if p.Year < 2000 || p.Year > 2100 {
		return ErrInvalidPeriod.WithDetail("field", "year")
	}
	switch p.Type {
	case PeriodQuarterly:
		if p.Quarter == nil || *p.Quarter < 1 || *p.Quarter > 4 {
			return ErrInvalidPeriod.WithDetail("field", "quarter")
		}
	case PeriodSemiAnnually:
		if p.Half == nil || *p.Half < 1 || *p.Half > 2 {
			return ErrInvalidPeriod.WithDetail("field", "half")
		}
	case PeriodAnnual:
	default:
		return ErrInvalidPeriod.WithDetail("field", "type")
	}
	return nil
}

func normalizePeriodType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "quarterly":
		return PeriodQuarterly
	case "semi-annually", "semi-annual", "semiannual", "semi annually":
		return PeriodSemiAnnually
	case "annual", "annually", "yearly":
		return PeriodAnnual
	}
	return strings.TrimSpace(value)
}
