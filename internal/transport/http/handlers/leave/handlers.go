package leavehandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/leave"
	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
	"staffdesk/internal/transport/http/shared"
)

type LeaveService interface {
	ListTypes(ctx context.Context) ([]leave.LeaveType, error)
	CreateType(ctx context.Context, actor auth.UserContext, payload leave.LeaveType) (int64, error)
	CreateRequest(ctx context.Context, actor auth.UserContext, in leave.CreateInput) (leave.LeaveRequest, error)
	ActOnRequest(ctx context.Context, actor auth.UserContext, requestID int64, stage leave.Stage, decision leave.Decision, comment string) (leave.LeaveRequest, error)
	CancelRequest(ctx context.Context, actor auth.UserContext, requestID int64) error
	EditRequest(ctx context.Context, actor auth.UserContext, requestID int64, in leave.EditInput) (leave.LeaveRequest, error)
	GetRequest(ctx context.Context, actor auth.UserContext, requestID int64) (leave.LeaveRequest, error)
	ListRequests(ctx context.Context, actor auth.UserContext, scope leave.Scope, status string, limit, offset int) (leave.RequestListResult, error)
}

type Handler struct {
	Service LeaveService
	Perms   middleware.PermissionStore
}

func NewHandler(service LeaveService, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/types", h.handleListTypes)
		r.With(middleware.RequirePermission(auth.PermLeaveTypesWrite, h.Perms)).Post("/types", h.handleCreateType)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/requests", h.handleListRequests)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/requests", h.handleCreateRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Put("/requests/{requestID}", h.handleEditRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/requests/{requestID}/cancel", h.handleCancelRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/decisions", h.handleDecision)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/approve", h.decisionShortcut(leave.DecisionApproved))
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/reject", h.decisionShortcut(leave.DecisionRejected))
	})
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	types, err := h.Service.ListTypes(r.Context())
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, types, requestID)
}

type leaveTypeRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=20"`
	RequiresDoc bool   `json:"requiresDoc"`
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	var payload leaveTypeRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	id, err := h.Service.CreateType(r.Context(), user, leave.LeaveType{Name: payload.Name, Code: payload.Code, RequiresDoc: payload.RequiresDoc})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, map[string]int64{"id": id}, requestID)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	query := r.URL.Query()
	scope := leave.Scope(strings.ToLower(strings.TrimSpace(query.Get("scope"))))
	status := strings.TrimSpace(query.Get("status"))
	page := shared.ParsePagination(r, 50, 200)

	out, err := h.Service.ListRequests(r.Context(), user, scope, status, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, out, requestID)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	leaveID, ok := shared.PathID(r, "requestID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid leave request id", requestID)
		return
	}
	req, err := h.Service.GetRequest(r.Context(), user, leaveID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, req, requestID)
}

type createRequestPayload struct {
	LeaveTypeID int64  `json:"leaveTypeId" validate:"required,gt=0"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Reason      string `json:"reason" validate:"required,max=2000"`
	DocumentURL string `json:"documentUrl" validate:"omitempty,url,max=1000"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	var payload createRequestPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	payload.Reason = strings.TrimSpace(payload.Reason)
	v := shared.NewValidator()
	v.Struct(payload)
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	if v.Reject(w, requestID) {
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), user, leave.CreateInput{
		LeaveTypeID: payload.LeaveTypeID,
		StartDate:   start,
		EndDate:     end,
		Reason:      payload.Reason,
		DocumentURL: strings.TrimSpace(payload.DocumentURL),
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Created(w, req, requestID)
}

type editRequestPayload struct {
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Reason    *string `json:"reason" validate:"omitempty,max=2000"`
}

func (h *Handler) handleEditRequest(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	leaveID, ok := shared.PathID(r, "requestID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid leave request id", requestID)
		return
	}

	var payload editRequestPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	in := leave.EditInput{
		StartDate: v.OptionalDate("startDate", payload.StartDate),
		EndDate:   v.OptionalDate("endDate", payload.EndDate),
		Reason:    payload.Reason,
	}
	if v.Reject(w, requestID) {
		return
	}

	req, err := h.Service.EditRequest(r.Context(), user, leaveID, in)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	leaveID, ok := shared.PathID(r, "requestID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid leave request id", requestID)
		return
	}
	if err := h.Service.CancelRequest(r.Context(), user, leaveID); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]string{"status": leave.StatusCancelled}, requestID)
}

type decisionPayload struct {
	Stage    string `json:"stage" validate:"required"`
	Decision string `json:"decision"`
	Comment  string `json:"comment" validate:"max=2000"`
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "")
}

// decisionShortcut serves /approve and /reject, which carry the decision in
// the path.
func (h *Handler) decisionShortcut(decision leave.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.decide(w, r, decision)
	}
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fixed leave.Decision) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	leaveID, ok := shared.PathID(r, "requestID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid leave request id", requestID)
		return
	}

	var payload decisionPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	stage, err := leave.ParseStage(payload.Stage)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	decision := fixed
	if decision == "" {
		if decision, err = leave.ParseDecision(payload.Decision); err != nil {
			api.FailError(w, err, requestID)
			return
		}
	}

	req, err := h.Service.ActOnRequest(r.Context(), user, leaveID, stage, decision, payload.Comment)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, req, requestID)
}
