package api

import (
	"fmt"
	"net/http"
	"strconv"

	"example.com/attendance/internal/auth"
	"example.com/attendance/internal/domain"
)

func (h *Handler) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/admin/centers", h.admin(h.listCenters))
	mux.HandleFunc("POST /v1/admin/centers", h.admin(h.createCenter))
	mux.HandleFunc("GET /v1/admin/centers/{id}", h.admin(h.getCenter))
	mux.HandleFunc("PUT /v1/admin/centers/{id}", h.admin(h.updateCenter))
	mux.HandleFunc("DELETE /v1/admin/centers/{id}", h.admin(h.deleteCenter))

	mux.HandleFunc("GET /v1/admin/sessions", h.admin(h.listSessions))
	mux.HandleFunc("POST /v1/admin/sessions", h.admin(h.createSession))
	mux.HandleFunc("GET /v1/admin/sessions/{id}", h.admin(h.getSession))
	mux.HandleFunc("PUT /v1/admin/sessions/{id}", h.admin(h.updateSession))
	mux.HandleFunc("DELETE /v1/admin/sessions/{id}", h.admin(h.deleteSession))

	mux.HandleFunc("POST /v1/admin/call-sessions", h.admin(h.createCallSession))
	mux.HandleFunc("PUT /v1/admin/call-sessions/{id}", h.admin(h.updateCallSession))
	mux.HandleFunc("DELETE /v1/admin/call-sessions/{id}", h.admin(h.deleteCallSession))

	mux.HandleFunc("GET /v1/admin/activity-logs", h.admin(h.listActivityLogs))
	mux.HandleFunc("POST /v1/admin/activity-logs", h.admin(h.createActivityLog))
	mux.HandleFunc("GET /v1/admin/activity-logs/{id}", h.admin(h.getActivityLog))
	mux.HandleFunc("PUT /v1/admin/activity-logs/{id}", h.admin(h.updateActivityLog))
	mux.HandleFunc("DELETE /v1/admin/activity-logs/{id}", h.admin(h.deleteActivityLog))

	mux.HandleFunc("GET /v1/admin/dashboard", h.admin(h.dashboard))

	mux.HandleFunc("GET /v1/admin/attendance", h.admin(h.listAttendance))
	mux.HandleFunc("POST /v1/admin/attendance/manual", h.admin(h.recordManualAttendance))
	mux.HandleFunc("GET /v1/admin/attendance/{id}", h.admin(h.getAttendance))
	mux.HandleFunc("PUT /v1/admin/attendance/{id}", h.admin(h.updateAttendance))
	mux.HandleFunc("DELETE /v1/admin/attendance/{id}", h.admin(h.deleteAttendance))

	mux.HandleFunc("GET /v1/admin/backups", h.admin(h.listBackups))
	mux.HandleFunc("POST /v1/admin/backups/{id}/restore", h.admin(h.restoreBackup))
	mux.HandleFunc("DELETE /v1/admin/backups/{id}", h.admin(h.purgeBackup))

	mux.HandleFunc("GET /v1/admin/audit-logs", h.admin(h.listAuditLogs))
}

func (h *Handler) listCenters(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	centers, err := h.service.ListCenters(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]CenterView, 0, len(centers))
	for _, c := range centers {
		items = append(items, toCenterView(c))
	}
	writeJSON(w, http.StatusOK, ListResponse[CenterView]{Items: items})
}

func (h *Handler) createCenter(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req CenterRequest
	if !h.decode(w, r, &req) {
		return
	}
	center, err := h.service.CreateCenter(r.Context(), claims.Subject, centerInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCenterView(*center))
}

func (h *Handler) getCenter(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	center, err := h.service.GetCenter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCenterView(*center))
}

func (h *Handler) updateCenter(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req CenterRequest
	if !h.decode(w, r, &req) {
		return
	}
	center, err := h.service.UpdateCenter(r.Context(), claims.Subject, r.PathValue("id"), centerInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCenterView(*center))
}

func (h *Handler) deleteCenter(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	backup, err := h.service.DeleteCenter(r.Context(), claims.Subject, r.PathValue("id"), r.URL.Query().Get("reason"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBackupView(*backup))
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	q := r.URL.Query()
	defs, err := h.service.ListSessions(r.Context(), domain.SessionFilter{
		CenterID:    q.Get("center_id"),
		AssistantID: q.Get("assistant_id"),
		Recurrence:  domain.Recurrence(q.Get("recurrence")),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]SessionView, 0, len(defs))
	for _, d := range defs {
		items = append(items, toSessionView(d))
	}
	writeJSON(w, http.StatusOK, ListResponse[SessionView]{Items: items})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req SessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	def, err := h.service.CreateSession(r.Context(), claims.Subject, sessionInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionView(*def))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	def, err := h.service.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(*def))
}

func (h *Handler) updateSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req SessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	def, err := h.service.UpdateSession(r.Context(), claims.Subject, r.PathValue("id"), sessionInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(*def))
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	backup, err := h.service.DeleteSession(r.Context(), claims.Subject, r.PathValue("id"), r.URL.Query().Get("reason"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBackupView(*backup))
}

func (h *Handler) createCallSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req CallSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	call, err := h.service.CreateCallSession(r.Context(), claims.Subject, callSessionInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCallSessionView(*call))
}

func (h *Handler) updateCallSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req CallSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	call, err := h.service.UpdateCallSession(r.Context(), claims.Subject, r.PathValue("id"), callSessionInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallSessionView(*call))
}

func (h *Handler) deleteCallSession(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	backup, err := h.service.DeleteCallSession(r.Context(), claims.Subject, r.PathValue("id"), r.URL.Query().Get("reason"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBackupView(*backup))
}

func (h *Handler) listAttendance(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	filter, err := h.attendanceFilter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.listAttendancePage(w, r, filter)
}

// attendanceFilter reads list filters. from and to are inclusive civil dates.
func (h *Handler) attendanceFilter(r *http.Request) (domain.AttendanceFilter, error) {
	q := r.URL.Query()
	filter := domain.AttendanceFilter{
		AssistantID:   q.Get("assistant_id"),
		SessionID:     q.Get("session_id"),
		CallSessionID: q.Get("call_session_id"),
		Source:        domain.AttendanceSource(q.Get("source")),
	}
	if filter.Source != "" && !filter.Source.Valid() {
		return filter, fmt.Errorf("%w: unknown source %q", domain.ErrValidation, filter.Source)
	}
	if raw := q.Get("include_deleted"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: include_deleted must be a boolean", domain.ErrValidation)
		}
		filter.IncludeDeleted = include
	}

	civil := h.service.Civil()
	if raw := q.Get("from"); raw != "" {
		from, err := civil.ParseCivilDate(raw)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := civil.ParseCivilDate(raw)
		if err != nil {
			return filter, err
		}
		_, end := civil.DayBounds(to)
		filter.To = &end
	}
	return filter, nil
}

func (h *Handler) recordManualAttendance(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req ManualAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := domain.ManualAttendanceInput{
		AssistantID:   req.AssistantID,
		SessionID:     req.SessionID,
		CallSessionID: req.CallSessionID,
		Subject:       req.Subject,
		Location:      coordinate(req.Latitude, req.Longitude),
		DelayMinutes:  req.DelayMinutes,
		Notes:         req.Notes,
	}
	if req.TimeRecorded != nil {
		in.TimeRecorded = *req.TimeRecorded
	}
	record, err := h.service.RecordAttendanceManually(r.Context(), claims.Subject, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceView(*record))
}

func (h *Handler) getAttendance(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	record, err := h.service.GetAttendance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceView(*record))
}

func (h *Handler) updateAttendance(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req UpdateAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	record, err := h.service.UpdateAttendance(r.Context(), claims.Subject, r.PathValue("id"), domain.AttendanceUpdate{
		Notes:        req.Notes,
		DelayMinutes: req.DelayMinutes,
		TimeRecorded: req.TimeRecorded,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceView(*record))
}

func (h *Handler) deleteAttendance(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	backup, err := h.service.DeleteAttendance(r.Context(), claims.Subject, r.PathValue("id"), r.URL.Query().Get("reason"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBackupView(*backup))
}

func (h *Handler) listBackups(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	itemType := domain.BackupItemType(r.URL.Query().Get("item_type"))
	backups, err := h.service.ListBackups(r.Context(), itemType, pageSize(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]BackupView, 0, len(backups))
	for _, b := range backups {
		items = append(items, toBackupView(b))
	}
	writeJSON(w, http.StatusOK, ListResponse[BackupView]{Items: items})
}

func (h *Handler) restoreBackup(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	backup, err := h.service.RestoreBackup(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBackupView(*backup))
}

func (h *Handler) purgeBackup(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	if err := h.service.PurgeBackup(r.Context(), claims.Subject, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	entries, err := h.service.ListAuditEntries(r.Context(), r.URL.Query().Get("actor_id"), pageSize(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]AuditView, 0, len(entries))
	for _, e := range entries {
		items = append(items, toAuditView(e))
	}
	writeJSON(w, http.StatusOK, ListResponse[AuditView]{Items: items})
}

func centerInput(req CenterRequest) domain.CenterInput {
	return domain.CenterInput{
		Name:      req.Name,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		RadiusM:   req.RadiusM,
		Address:   req.Address,
	}
}

func sessionInput(req SessionRequest) domain.SessionInput {
	return domain.SessionInput{
		CenterID:    req.CenterID,
		AssistantID: req.AssistantID,
		Subject:     req.Subject,
		StartTime:   req.StartTime,
		Recurrence:  domain.Recurrence(req.Recurrence),
		DayOfWeek:   req.DayOfWeek,
		IsActive:    req.IsActive,
	}
}

func (h *Handler) listActivityLogs(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	q := r.URL.Query()
	filter := domain.ActivityLogFilter{
		AssistantID:   q.Get("assistant_id"),
		CallSessionID: q.Get("call_session_id"),
	}
	if raw := q.Get("open"); raw != "" {
		open, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "open must be a boolean")
			return
		}
		filter.OpenOnly = open
	}
	logs, err := h.service.ListActivityLogs(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]ActivityLogView, 0, len(logs))
	for _, l := range logs {
		items = append(items, toActivityLogView(l))
	}
	writeJSON(w, http.StatusOK, ListResponse[ActivityLogView]{Items: items})
}

func (h *Handler) createActivityLog(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req ActivityLogRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.service.CreateActivityLog(r.Context(), claims.Subject, activityLogInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityLogView(*entry))
}

func (h *Handler) getActivityLog(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	entry, err := h.service.GetActivityLog(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityLogView(*entry))
}

func (h *Handler) updateActivityLog(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req ActivityLogRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.service.UpdateActivityLog(r.Context(), claims.Subject, r.PathValue("id"), activityLogInput(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityLogView(*entry))
}

func (h *Handler) deleteActivityLog(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	backup, err := h.service.DeleteActivityLog(r.Context(), claims.Subject, r.PathValue("id"), r.URL.Query().Get("reason"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBackupView(*backup))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardView(*stats))
}

func activityLogInput(req ActivityLogRequest) domain.ActivityLogInput {
	return domain.ActivityLogInput{
		AssistantID:   req.AssistantID,
		CallSessionID: req.CallSessionID,
		Activity:      req.Activity,
		Notes:         req.Notes,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	}
}

func callSessionInput(req CallSessionRequest) domain.CallSessionInput {
	return domain.CallSessionInput{
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
}
