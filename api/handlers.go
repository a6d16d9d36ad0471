/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to leave.RequestService.

ENDPOINTS:
  Teachers:
    GET    /api/teachers                         List teachers (?subject=)
    POST   /api/teachers                         Create or update a teacher
    GET    /api/teachers/{id}/balance            Yearly balance (?year=)
    GET    /api/teachers/{id}/leave-requests     Requests the teacher submitted
    GET    /api/teachers/{id}/relief-requests    Requests naming them as relief (?status=)
    GET    /api/teachers/{id}/relief-candidates  Who could cover (?start=&end=)
    GET    /api/teachers/{id}/notifications      Inbox (?unread=true)

  Leave requests:
    POST   /api/leave-requests                   Submit
    GET    /api/leave-requests/pending           Approver queue
    GET    /api/leave-requests/{id}              Details
    POST   /api/leave-requests/{id}/relief       Relief teacher answers
    POST   /api/leave-requests/{id}/resolve      Approver decides
    POST   /api/leave-requests/{id}/cancel       Applicant withdraws

  Directory:
    GET    /api/categories                       List leave categories
    POST   /api/categories                       Upsert categories (YAML or JSON)
    GET    /api/meetings                         List meetings (?teacher_id=&status=)
    POST   /api/meetings                         Book a meeting
    POST   /api/notifications/{id}/read          Mark an inbox entry read

ACTORS:
  There is no authentication layer. The acting teacher travels in the body
  (teacher_id, approver_id) and the engine checks it against the request.

ERROR HANDLING:
  Errors are returned as JSON with the status of their kind:
  - 400: Validation errors, invalid input
  - 403: Caller doesn't own the request
  - 404: Resource not found (also a relief teacher mismatch)
  - 409: Overlapping leave
  - 422: Transition not allowed in the current state
  - 500: Persistence and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs beyond leave.Store.
// Both store/sqlite and store/postgres satisfy it.
type Store interface {
	leave.Store
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Service    *leave.RequestService
	Inbox      *notify.StoreSink
	Categories *factory.CategoryFactory

	// BaseCategories are re-seeded whenever a scenario resets the database.
	BaseCategories []leave.Category

	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store Store, service *leave.RequestService, inbox *notify.StoreSink, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:          store,
		Service:        service,
		Inbox:          inbox,
		Categories:     factory.NewCategoryFactory(),
		BaseCategories: factory.DefaultCategories(),
		logger:         logger.Named("api"),
		validate:       newValidator(),
		now:            time.Now,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health reports whether the store answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// TEACHER HANDLERS
// =============================================================================

// ListTeachers returns the directory, optionally narrowed to one subject.
// GET /api/teachers?subject=
func (h *Handler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := r.URL.Query().Get("subject")

	var teachers []leave.Teacher
	err := h.Store.View(ctx, func(repo leave.Repository) error {
		var err error
		teachers, err = repo.ListTeachers(ctx, subject)
		return err
	})
	if err != nil {
		h.fail(w, generic.WrapPersistence("list teachers", err))
		return
	}

	dtos := make([]TeacherDTO, len(teachers))
	for i, t := range teachers {
		dtos[i] = toTeacherDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTeacher inserts or updates a directory entry.
// POST /api/teachers
func (h *Handler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req CreateTeacherRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	t := leave.Teacher{
		ID:      generic.TeacherID(req.ID),
		Name:    strings.TrimSpace(req.Name),
		Subject: strings.TrimSpace(req.Subject),
	}
	if t.Name == "" {
		h.fail(w, &generic.ValidationError{Field: "name", Message: "is required"})
		return
	}
	err := h.Store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.SaveTeacher(ctx, &t)
	})
	if err != nil {
		h.fail(w, generic.WrapPersistence("save teacher", err))
		return
	}
	writeJSON(w, http.StatusCreated, toTeacherDTO(t))
}

// GetBalance returns a teacher's derived balance for one year.
// GET /api/teachers/{id}/balance?year=2025
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherParam(w, r)
	if !ok {
		return
	}
	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1 || y > 9999 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	balances, err := h.Service.Balance(r.Context(), teacherID, year)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(teacherID, year, balances))
}

// ListTeacherLeaveRequests returns every request a teacher submitted.
// GET /api/teachers/{id}/leave-requests
func (h *Handler) ListTeacherLeaveRequests(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherParam(w, r)
	if !ok {
		return
	}
	requests, err := h.Service.ListForApplicant(r.Context(), teacherID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

// ListReliefRequests returns requests naming the teacher as relief.
// GET /api/teachers/{id}/relief-requests?status=pending
func (h *Handler) ListReliefRequests(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherParam(w, r)
	if !ok {
		return
	}
	var statuses []leave.ReliefStatus
	for _, raw := range r.URL.Query()["status"] {
		s := leave.ReliefStatus(raw)
		switch s {
		case leave.ReliefPending, leave.ReliefApproved, leave.ReliefRejected:
			statuses = append(statuses, s)
		default:
			writeError(w, http.StatusBadRequest, "Invalid relief status", fmt.Errorf("unknown status %q", raw))
			return
		}
	}

	requests, err := h.Service.ListReliefAssignments(r.Context(), teacherID, statuses...)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

// ListReliefCandidates returns colleagues free to cover the range.
// GET /api/teachers/{id}/relief-candidates?start=2025-06-10&end=2025-06-12
func (h *Handler) ListReliefCandidates(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherParam(w, r)
	if !ok {
		return
	}
	start, err := generic.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date", err)
		return
	}
	end, err := generic.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date", err)
		return
	}

	candidates, err := h.Service.FindReliefCandidates(r.Context(), teacherID, generic.DateRange{Start: start, End: end})
	if err != nil {
		h.fail(w, err)
		return
	}
	dtos := make([]TeacherDTO, len(candidates))
	for i, c := range candidates {
		dtos[i] = TeacherDTO{ID: int64(c.ID), Name: c.Name, Subject: c.Subject}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns a teacher's inbox, newest first.
// GET /api/teachers/{id}/notifications?unread=true
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherParam(w, r)
	if !ok {
		return
	}
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unread flag", err)
			return
		}
		unreadOnly = v
	}

	notes, err := h.Inbox.List(r.Context(), teacherID, unreadOnly)
	if err != nil {
		h.fail(w, err)
		return
	}
	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkNotificationRead flags one inbox entry as read.
// POST /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MarkReadRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Inbox.MarkRead(r.Context(), id, generic.TeacherID(req.TeacherID)); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read", "id": id})
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// SubmitLeaveRequest creates a request in (pending, pending).
// POST /api/leave-requests
func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date", err)
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date", err)
		return
	}

	id, err := h.Service.Submit(ctx, leave.SubmitInput{
		ApplicantID:     generic.TeacherID(req.ApplicantID),
		CategoryID:      generic.CategoryID(req.CategoryID),
		Range:           generic.DateRange{Start: start, End: end},
		IsHalfDay:       req.IsHalfDay,
		Reason:          req.Reason,
		ReliefTeacherID: generic.TeacherID(req.ReliefTeacherID),
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	created, err := h.Service.Get(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*created))
}

// ListPendingLeaveRequests is the approver queue.
// GET /api/leave-requests/pending
func (h *Handler) ListPendingLeaveRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Service.ListAwaitingResolution(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(requests))
}

// GetLeaveRequest returns one request.
// GET /api/leave-requests/{id}
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	req, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*req))
}

// RespondToRelief records the relief teacher's answer.
// POST /api/leave-requests/{id}/relief
func (h *Handler) RespondToRelief(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	var req ReliefResponseRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.Service.RespondToRelief(r.Context(), id, generic.TeacherID(req.TeacherID), leave.Decision(req.Decision), req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// ResolveLeaveRequest approves or rejects a pending request.
// POST /api/leave-requests/{id}/resolve
func (h *Handler) ResolveLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.Service.Resolve(r.Context(), id, generic.TeacherID(req.ApproverID), leave.Decision(req.Decision), req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// CancelLeaveRequest withdraws a request on behalf of its applicant.
// POST /api/leave-requests/{id}/cancel
func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestParam(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.Service.Cancel(r.Context(), id, generic.TeacherID(req.TeacherID))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns the configured leave categories.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var categories []leave.Category
	err := h.Store.View(ctx, func(repo leave.Repository) error {
		var err error
		categories, err = repo.ListCategories(ctx)
		return err
	})
	if err != nil {
		h.fail(w, generic.WrapPersistence("list categories", err))
		return
	}

	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertCategories accepts the category file format as YAML or JSON.
// POST /api/categories
func (h *Handler) UpsertCategories(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	categories, err := h.Categories.ParseCategories(body)
	if err != nil {
		if !errors.Is(err, generic.ErrValidation) {
			writeError(w, http.StatusBadRequest, "Invalid category document", err)
			return
		}
		h.fail(w, err)
		return
	}
	if err := factory.SeedCategories(r.Context(), h.Store, categories); err != nil {
		h.fail(w, generic.WrapPersistence("save categories", err))
		return
	}

	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// =============================================================================
// MEETING HANDLERS
// =============================================================================

// ListMeetings returns meetings, optionally for one teacher and statuses.
// GET /api/meetings?teacher_id=1&status=pending&status=approved
func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter leave.MeetingFilter
	if raw := r.URL.Query().Get("teacher_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid teacher_id", err)
			return
		}
		filter.TeacherID = generic.TeacherID(id)
	}
	for _, raw := range r.URL.Query()["status"] {
		s, ok := parseMeetingStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid meeting status", fmt.Errorf("unknown status %q", raw))
			return
		}
		filter.Statuses = append(filter.Statuses, s)
	}

	var meetings []leave.Meeting
	err := h.Store.View(ctx, func(repo leave.Repository) error {
		var err error
		meetings, err = repo.FindMeetings(ctx, filter)
		return err
	})
	if err != nil {
		h.fail(w, generic.WrapPersistence("list meetings", err))
		return
	}

	dtos := make([]MeetingDTO, len(meetings))
	for i, m := range meetings {
		dtos[i] = toMeetingDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMeeting books a meeting for a teacher.
// POST /api/meetings
func (h *Handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req CreateMeetingRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	status := leave.MeetingPending
	if req.Status != "" {
		status = leave.MeetingStatus(req.Status)
	}

	now := h.now()
	m := leave.Meeting{
		TeacherID:      generic.TeacherID(req.TeacherID),
		CounterpartyID: generic.TeacherID(req.CounterpartyID),
		Date:           date,
		TimeSlot:       req.TimeSlot,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = h.Store.WithTx(ctx, func(repo leave.Repository) error {
		t, err := repo.GetTeacher(ctx, m.TeacherID)
		if err != nil {
			return err
		}
		if t == nil {
			return &generic.ValidationError{Field: "teacher_id", Message: "unknown teacher"}
		}
		return repo.SaveMeeting(ctx, &m)
	})
	if err != nil {
		h.fail(w, generic.WrapPersistence("save meeting", err))
		return
	}
	writeJSON(w, http.StatusCreated, toMeetingDTO(m))
}

func parseMeetingStatus(raw string) (leave.MeetingStatus, bool) {
	s := leave.MeetingStatus(raw)
	switch s {
	case leave.MeetingPending, leave.MeetingApproved, leave.MeetingRejected,
		leave.MeetingCompleted, leave.MeetingRescheduleRequested:
		return s, true
	}
	return "", false
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps an error kind to its HTTP status.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var (
		fieldErrs validator.ValidationErrors
		conflict  *generic.ConflictError
	)
	switch {
	case errors.As(err, &fieldErrs):
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = describeFieldError(fe)
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Code: "validation_error", Details: details})
	case errors.Is(err, generic.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation_error"})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "conflict",
			Details: map[string]any{
				"existing_request_id": int64(conflict.ExistingID),
				"existing_start":      conflict.Existing.Start.String(),
				"existing_end":        conflict.Existing.End.String(),
			},
		})
	case errors.Is(err, generic.ErrState):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "invalid_state"})
	case errors.Is(err, generic.ErrAuthorization):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, generic.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "nefield":
		return "must differ from " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}

// decode reads and validates a JSON body. It writes the error response and
// returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.fail(w, err)
		return false
	}
	return true
}

func teacherParam(w http.ResponseWriter, r *http.Request) (generic.TeacherID, bool) {
	id, ok := idParam(w, r, "teacher id")
	return generic.TeacherID(id), ok
}

func requestParam(w http.ResponseWriter, r *http.Request) (generic.RequestID, bool) {
	id, ok := idParam(w, r, "leave request id")
	return generic.RequestID(id), ok
}

func idParam(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+what, fmt.Errorf("%q is not a positive integer", raw))
		return 0, false
	}
	return id, true
}
