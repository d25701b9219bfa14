package performancehandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/performance"
	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
	"staffdesk/internal/transport/http/shared"
)

const maxRows = 100

type AppraisalService interface {
	CreateAppraisal(ctx context.Context, actor auth.UserContext, in performance.CreateInput) (performance.Appraisal, error)
	UpdateAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64, patch performance.Patch) (performance.Appraisal, error)
	GetAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64) (performance.Appraisal, error)
	ListAppraisals(ctx context.Context, actor auth.UserContext, filter performance.ListFilter, limit, offset int) (performance.ListResult, error)
	DeleteAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64) error
	RestoreAppraisal(ctx context.Context, actor auth.UserContext, appraisalID int64) (performance.Appraisal, error)
}

type Handler struct {
	Service AppraisalService
	Perms   middleware.PermissionStore
}

func NewHandler(service AppraisalService, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance/appraisals", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermPerformanceWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)).Get("/{appraisalID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermPerformanceWrite, h.Perms)).Patch("/{appraisalID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermPerformanceAdmin, h.Perms)).Delete("/{appraisalID}", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermPerformanceAdmin, h.Perms)).Post("/{appraisalID}/restore", h.handleRestore)
	})
}

type periodPayload struct {
	Type    string `json:"type" validate:"required"`
	Year    int    `json:"year" validate:"required,gte=2000,lte=2100"`
	Quarter *int   `json:"quarter" validate:"omitempty,gte=1,lte=4"`
	Half    *int   `json:"half" validate:"omitempty,gte=1,lte=2"`
}

type commentsPayload struct {
	Appraisee *string `json:"appraisee" validate:"omitempty,max=5000"`
	Appraiser *string `json:"appraiser" validate:"omitempty,max=5000"`
	HOD       *string `json:"hod" validate:"omitempty,max=5000"`
	HR        *string `json:"hr" validate:"omitempty,max=5000"`
	CEO       *string `json:"ceo" validate:"omitempty,max=5000"`
}

type planPayload struct {
	Area       string  `json:"area" validate:"max=300"`
	Action     string  `json:"action" validate:"max=2000"`
	TargetDate *string `json:"targetDate"`
}

type contentPayload struct {
	Comments         *commentsPayload              `json:"comments"`
	KRAScores        *[]performance.KRAScore       `json:"kraScores"`
	SoftSkills       *[]performance.SoftSkillScore `json:"softSkills"`
	Courses          *[]performance.Course         `json:"courses"`
	DevelopmentPlans *[]planPayload                `json:"developmentPlans" validate:"omitempty,dive"`
	SectionBRaw      *float64                      `json:"sectionBRaw" validate:"omitempty,gte=0,lte=1000"`
	SectionCRaw      *float64                      `json:"sectionCRaw" validate:"omitempty,gte=0,lte=1000"`
	OverallOverride  *float64                      `json:"overallOverride" validate:"omitempty,gte=0,lte=100"`
}

type createPayload struct {
	SubjectID int64         `json:"subjectId"`
	Period    periodPayload `json:"period"`
	contentPayload
}

// patch converts the payload, recording malformed dates and oversize
// collections on v.
func (p contentPayload) patch(v *shared.Validator) performance.Patch {
	out := performance.Patch{
		KRAScores:       p.KRAScores,
		SoftSkills:      p.SoftSkills,
		Courses:         p.Courses,
		SectionBRaw:     p.SectionBRaw,
		SectionCRaw:     p.SectionCRaw,
		OverallOverride: p.OverallOverride,
	}
	if p.Comments != nil {
		out.Comments = performance.CommentsPatch{
			Appraisee: p.Comments.Appraisee,
			Appraiser: p.Comments.Appraiser,
			HOD:       p.Comments.HOD,
			HR:        p.Comments.HR,
			CEO:       p.Comments.CEO,
		}
	}
	checkRows(v, "kraScores", p.KRAScores)
	checkRows(v, "softSkills", p.SoftSkills)
	checkRows(v, "courses", p.Courses)
	if p.DevelopmentPlans != nil {
		checkRows(v, "developmentPlans", p.DevelopmentPlans)
		plans := make([]performance.DevelopmentPlan, 0, len(*p.DevelopmentPlans))
		for i, plan := range *p.DevelopmentPlans {
			plans = append(plans, performance.DevelopmentPlan{
				Area:       plan.Area,
				Action:     plan.Action,
				TargetDate: v.OptionalDate("developmentPlans["+strconv.Itoa(i)+"].targetDate", plan.TargetDate),
			})
		}
		out.DevelopmentPlans = &plans
	}
	return out
}

func checkRows[T any](v *shared.Validator, field string, rows *[]T) {
	if rows != nil && len(*rows) > maxRows {
		v.Add(field, "must have at most "+strconv.Itoa(maxRows)+" rows")
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	var payload createPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	if payload.SubjectID == 0 {
		payload.SubjectID = user.UserID
	}
	v := shared.NewValidator()
	v.Struct(payload)
	patch := payload.patch(v)
	if v.Reject(w, requestID) {
		return
	}

	appraisal, err := h.Service.CreateAppraisal(r.Context(), user, performance.CreateInput{
		SubjectID: payload.SubjectID,
		Period: performance.Period{
			Type:    payload.Period.Type,
			Year:    payload.Period.Year,
			Quarter: payload.Period.Quarter,
			Half:    payload.Period.Half,
		},
		Content: patch,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, appraisal, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	appraisalID, ok := shared.PathID(r, "appraisalID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid appraisal id", requestID)
		return
	}

	var payload contentPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	patch := payload.patch(v)
	if v.Reject(w, requestID) {
		return
	}

	appraisal, err := h.Service.UpdateAppraisal(r.Context(), user, appraisalID, patch)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, appraisal, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	appraisalID, ok := shared.PathID(r, "appraisalID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid appraisal id", requestID)
		return
	}
	appraisal, err := h.Service.GetAppraisal(r.Context(), user, appraisalID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, appraisal, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	v := shared.NewValidator()
	subjectID, ok := shared.QueryInt64(r, "subjectId")
	if !ok {
		v.Add("subjectId", "must be a positive integer")
	}
	approverID, ok := shared.QueryInt64(r, "approverId")
	if !ok {
		v.Add("approverId", "must be a positive integer")
	}
	year, ok := shared.QueryInt64(r, "year")
	if !ok {
		v.Add("year", "must be a positive integer")
	}
	if v.Reject(w, requestID) {
		return
	}
	page := shared.ParsePagination(r, 50, 200)

	out, err := h.Service.ListAppraisals(r.Context(), user, performance.ListFilter{
		SubjectID:  subjectID,
		ApproverID: approverID,
		Year:       int(year),
		PeriodType: strings.TrimSpace(r.URL.Query().Get("periodType")),
	}, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, out, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	appraisalID, ok := shared.PathID(r, "appraisalID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid appraisal id", requestID)
		return
	}
	if err := h.Service.DeleteAppraisal(r.Context(), user, appraisalID); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]bool{"deleted": true}, requestID)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	appraisalID, ok := shared.PathID(r, "appraisalID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid appraisal id", requestID)
		return
	}
	appraisal, err := h.Service.RestoreAppraisal(r.Context(), user, appraisalID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, appraisal, requestID)
}
