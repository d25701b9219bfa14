package corehandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"staffdesk/internal/domain/approval"
	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/transport/http/api"
	"staffdesk/internal/transport/http/middleware"
	"staffdesk/internal/transport/http/shared"
)

type DirectoryService interface {
	GetUser(ctx context.Context, userID int64) (core.User, error)
	ListUsers(ctx context.Context, departmentID int64, limit, offset int) ([]core.User, int, error)
	CreateUser(ctx context.Context, in core.NewUser) (int64, error)
	ListRoles(ctx context.Context) ([]core.Role, error)
	ListDepartments(ctx context.Context) ([]core.Department, error)
	CreateDepartment(ctx context.Context, name string) (int64, error)
}

type RouteResolver interface {
	ResolveApprover(ctx context.Context, subjectID int64, fallback *int64) (approval.Route, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Handler struct {
	Service  DirectoryService
	Resolver RouteResolver
	Perms    middleware.PermissionStore
	Audit    AuditRecorder
}

func NewHandler(service DirectoryService, resolver RouteResolver, perms middleware.PermissionStore, recorder AuditRecorder) *Handler {
	return &Handler{Service: service, Resolver: resolver, Perms: perms, Audit: recorder}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/users", h.handleListUsers)
	r.With(middleware.RequirePermission(auth.PermDirectoryWrite, h.Perms)).Post("/users", h.handleCreateUser)
	r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/users/{userID}", h.handleGetUser)
	r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/users/{userID}/approver", h.handleGetApprover)
	r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/roles", h.handleListRoles)
	r.With(middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)).Get("/departments", h.handleListDepartments)
	r.With(middleware.RequirePermission(auth.PermDirectoryWrite, h.Perms)).Post("/departments", h.handleCreateDepartment)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	me, err := h.Service.GetUser(r.Context(), user.UserID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, me, requestID)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	departmentID, ok := shared.QueryInt64(r, "departmentId")
	if !ok {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "departmentId", Reason: "must be a positive integer"}})
		return
	}
	page := shared.ParsePagination(r, 50, 200)

	users, total, err := h.Service.ListUsers(r.Context(), departmentID, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	for i := range users {
		core.FilterUserFields(&users[i], user)
	}
	api.Success(w, map[string]any{"users": users, "total": total}, requestID)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	userID, ok := shared.PathID(r, "userID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id", requestID)
		return
	}
	found, err := h.Service.GetUser(r.Context(), userID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	core.FilterUserFields(&found, user)
	api.Success(w, found, requestID)
}

// handleGetApprover previews who would approve the user's next request.
func (h *Handler) handleGetApprover(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	userID, ok := shared.PathID(r, "userID")
	if !ok {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id", requestID)
		return
	}
	subject, err := h.Service.GetUser(r.Context(), userID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	route, err := h.Resolver.ResolveApprover(r.Context(), userID, subject.SupervisorID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, route, requestID)
}

type createUserRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FirstName    string `json:"firstName" validate:"required,max=100"`
	LastName     string `json:"lastName" validate:"max=100"`
	StaffRef     string `json:"staffRef" validate:"max=50"`
	RoleID       int64  `json:"roleId" validate:"required,gt=0"`
	DepartmentID *int64 `json:"departmentId" validate:"omitempty,gt=0"`
	SupervisorID *int64 `json:"supervisorId" validate:"omitempty,gt=0"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	var payload createUserRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	id, err := h.Service.CreateUser(r.Context(), core.NewUser{
		Email:        payload.Email,
		Password:     payload.Password,
		FirstName:    strings.TrimSpace(payload.FirstName),
		LastName:     strings.TrimSpace(payload.LastName),
		StaffRef:     strings.TrimSpace(payload.StaffRef),
		RoleID:       payload.RoleID,
		DepartmentID: payload.DepartmentID,
		SupervisorID: payload.SupervisorID,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.record(r.Context(), user.UserID, "user.create", audit.EntityUser, id, map[string]any{
		"email":  payload.Email,
		"roleId": payload.RoleID,
	})
	api.Created(w, map[string]int64{"id": id}, requestID)
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, roles, requestID)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	departments, err := h.Service.ListDepartments(r.Context())
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, departments, requestID)
}

type departmentRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload departmentRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, requestID) {
		return
	}

	id, err := h.Service.CreateDepartment(r.Context(), payload.Name)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.record(r.Context(), user.UserID, "department.create", audit.EntityDepartment, id, payload)
	api.Created(w, map[string]int64{"id": id}, requestID)
}

func (h *Handler) record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details any) {
	if h.Audit == nil {
		return
	}
	h.Audit.Record(ctx, audit.Entry{ActorID: actorID, Action: action, EntityType: entityType, EntityID: entityID, Details: details})
}
