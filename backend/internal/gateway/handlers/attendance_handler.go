package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"schoolapi/backend/internal/attendance"
	"schoolapi/backend/internal/gateway/util"
)

// AttendanceHandler serves daily attendance and its summaries.
type AttendanceHandler struct {
	Attendance *attendance.AttendanceService
}

// CreateBulk handles POST /attendance
func (h *AttendanceHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req attendance.BulkRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	count, err := h.Attendance.CreateBulk(r.Context(), &req)
	respond(w, http.StatusCreated, map[string]int{"saved": count}, err)
}

func (h *AttendanceHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.Attendance.GetRecord(r.Context(), pathID(r))
	respond(w, http.StatusOK, record, err)
}

// UpdateRecord handles PUT /attendance/{id}
func (h *AttendanceHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req attendance.UpdateRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	record, err := h.Attendance.UpdateRecord(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, record, err)
}

func (h *AttendanceHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Attendance.DeleteRecord(r.Context(), pathID(r)), "attendance record")
}

// ClassDay handles GET /attendance/class/{class_id}?date=&subject=
// The date defaults to today.
func (h *AttendanceHandler) ClassDay(w http.ResponseWriter, r *http.Request) {
	day, err := queryDay(r, "date", time.Now())
	if err != nil {
		util.HandleError(w, err)
		return
	}
	report, err := h.Attendance.ClassDay(r.Context(), chi.URLParam(r, "class_id"), r.URL.Query().Get("subject"), day)
	respond(w, http.StatusOK, report, err)
}

// ClassRange handles GET /attendance/class/{class_id}/range?from=&to=&subject=
func (h *AttendanceHandler) ClassRange(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	report, err := h.Attendance.Range(r.Context(), attendance.RangeQuery{
		ClassID:   chi.URLParam(r, "class_id"),
		SubjectID: r.URL.Query().Get("subject"),
		From:      from,
		To:        to,
	})
	respond(w, http.StatusOK, report, err)
}

// StudentRange handles GET /attendance/student/{id}?from=&to=
func (h *AttendanceHandler) StudentRange(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	report, err := h.Attendance.StudentRange(r.Context(), pathID(r), from, to)
	respond(w, http.StatusOK, report, err)
}

// MyAttendance handles GET /students/me/attendance?from=&to=
func (h *AttendanceHandler) MyAttendance(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	report, err := h.Attendance.StudentRange(r.Context(), util.PrincipalFrom(r).ID, from, to)
	respond(w, http.StatusOK, report, err)
}

// Today handles GET /attendance/class/{class_id}/today
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	report, err := h.Attendance.Today(r.Context(), chi.URLParam(r, "class_id"))
	respond(w, http.StatusOK, report, err)
}

// Month handles GET /attendance/class/{class_id}/month
func (h *AttendanceHandler) Month(w http.ResponseWriter, r *http.Request) {
	report, err := h.Attendance.Month(r.Context(), chi.URLParam(r, "class_id"))
	respond(w, http.StatusOK, report, err)
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := requireDay(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDay(r, "to", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
