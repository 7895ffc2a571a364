// Package api exposes HTTP handlers for the attendance service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"example.com/attendance/internal/auth"
	"example.com/attendance/internal/domain"
	"example.com/attendance/internal/observability"
	"example.com/attendance/internal/persistence"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service, validate: newValidator()}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /v1/sessions/today", h.assistant(h.todaySessions))
	mux.HandleFunc("GET /v1/sessions/{id}", h.assistant(h.sessionDetail))
	mux.HandleFunc("POST /v1/attendance", h.assistant(h.markAttendance))
	mux.HandleFunc("GET /v1/attendance", h.assistant(h.myAttendance))
	mux.HandleFunc("GET /v1/call-sessions", h.assistant(h.listCallSessions))
	mux.HandleFunc("GET /v1/call-sessions/{id}", h.assistant(h.getCallSession))
	mux.HandleFunc("POST /v1/call-sessions/{id}/start", h.assistant(h.startCallSession))
	mux.HandleFunc("POST /v1/call-sessions/{id}/stop", h.assistant(h.stopCallSession))

	h.registerAdminRoutes(mux)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type claimsHandler func(http.ResponseWriter, *http.Request, *auth.Claims)

func (h *Handler) assistant(next claimsHandler) http.HandlerFunc {
	return h.authorize(auth.CanMark, "role assistant required", next)
}

func (h *Handler) admin(next claimsHandler) http.HandlerFunc {
	return h.authorize(auth.IsAdmin, "role admin required", next)
}

func (h *Handler) authorize(allowed func(*auth.Claims) bool, denial string, next claimsHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !allowed(claims) {
			writeError(w, http.StatusForbidden, "forbidden", denial)
			return
		}
		next(w, r, claims)
	}
}

func (h *Handler) todaySessions(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	sessions, err := h.service.TodaySessions(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]OccurrenceView, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, toOccurrenceView(s.Occurrence, s.Center, s.Attendance, s.CanMark, true))
	}
	writeJSON(w, http.StatusOK, ListResponse[OccurrenceView]{Items: items})
}

func (h *Handler) sessionDetail(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	detail, err := h.service.SessionForAssistant(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOccurrenceView(detail.Occurrence, detail.Center, detail.Attendance, detail.CanMark, detail.DueToday))
}

func (h *Handler) markAttendance(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req MarkAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := domain.MarkInput{
		AssistantID:   claims.Subject,
		SessionID:     req.SessionID,
		CallSessionID: req.CallSessionID,
		Location:      coordinate(req.Latitude, req.Longitude),
		Notes:         req.Notes,
	}
	record, err := h.service.MarkAttendance(r.Context(), in)
	observability.RecordMarkOutcome(err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceView(*record))
}

func (h *Handler) myAttendance(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	filter := domain.AttendanceFilter{AssistantID: claims.Subject}
	h.listAttendancePage(w, r, filter)
}

func (h *Handler) listCallSessions(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	calls, err := h.service.ListCallSessions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]CallSessionView, 0, len(calls))
	for _, call := range calls {
		items = append(items, toCallSessionView(call))
	}
	writeJSON(w, http.StatusOK, ListResponse[CallSessionView]{Items: items})
}

func (h *Handler) getCallSession(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	call, err := h.service.GetCallSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallSessionView(*call))
}

func (h *Handler) startCallSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	call, err := h.service.StartCallSession(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallSessionView(*call))
}

func (h *Handler) stopCallSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	call, err := h.service.StopCallSession(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallSessionView(*call))
}

func (h *Handler) listAttendancePage(w http.ResponseWriter, r *http.Request, filter domain.AttendanceFilter) {
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListAttendance(r.Context(), filter, cursor, pageSize(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]AttendanceView, 0, len(records))
	for _, record := range records {
		items = append(items, toAttendanceView(record))
	}
	writeJSON(w, http.StatusOK, ListResponse[AttendanceView]{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

// decode reads a JSON body into dst and runs struct validation. It writes the
// error response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationDetail(err))
		return false
	}
	return true
}

func pageSize(r *http.Request) int {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}
	return limit
}

func coordinate(lat, lng *float64) *domain.Coordinate {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.Coordinate{Latitude: *lat, Longitude: *lng}
}

// writeDomainError maps service errors onto the HTTP error taxonomy.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, "out_of_range", "you are not within the allowed range of the center")
	case errors.Is(err, domain.ErrWindowClosed):
		writeError(w, http.StatusUnprocessableEntity, "window_closed", "attendance can only be recorded from 30 minutes before to 45 minutes after the session start")
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", "attendance already recorded")
	case errors.Is(err, domain.ErrBackupConsumed):
		writeError(w, http.StatusConflict, "backup_consumed", err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage temporarily unavailable, retry the request")
	default:
		log.Printf("api: unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
