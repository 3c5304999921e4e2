package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"schoolapi/backend/internal/academic"
	"schoolapi/backend/internal/gateway/util"
)

// AcademicHandler serves academic sessions, timetables, classes and subjects.
type AcademicHandler struct {
	Academic *academic.AcademicService
}

// ============================================================================
// Academic sessions
// ============================================================================

func (h *AcademicHandler) CreateAcademic(w http.ResponseWriter, r *http.Request) {
	var req academic.AcademicRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	session, err := h.Academic.CreateAcademic(r.Context(), &req)
	respond(w, http.StatusCreated, session, err)
}

func (h *AcademicHandler) ListAcademics(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Academic.ListAcademics(r.Context())
	respond(w, http.StatusOK, sessions, err)
}

// ListAcademicsByBatch handles GET /academics/batch/{batch_id}
func (h *AcademicHandler) ListAcademicsByBatch(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Academic.ListAcademicsByBatch(r.Context(), chi.URLParam(r, "batch_id"))
	respond(w, http.StatusOK, sessions, err)
}

func (h *AcademicHandler) GetAcademic(w http.ResponseWriter, r *http.Request) {
	session, err := h.Academic.GetAcademic(r.Context(), pathID(r))
	respond(w, http.StatusOK, session, err)
}

func (h *AcademicHandler) UpdateAcademic(w http.ResponseWriter, r *http.Request) {
	var req academic.AcademicRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	session, err := h.Academic.UpdateAcademic(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, session, err)
}

func (h *AcademicHandler) DeleteAcademic(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Academic.DeleteAcademic(r.Context(), pathID(r)), "academic session")
}

// ============================================================================
// Timetables
// ============================================================================

func (h *AcademicHandler) CreateTimetable(w http.ResponseWriter, r *http.Request) {
	var req academic.TimetableRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	slot, err := h.Academic.CreateTimetable(r.Context(), &req)
	respond(w, http.StatusCreated, slot, err)
}

// ListTimetables handles GET /timetables?class_id=&faculty_id=&academic_id=
func (h *AcademicHandler) ListTimetables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slots, err := h.Academic.ListTimetables(r.Context(), academic.TimetableFilter{
		ClassID:    q.Get("class_id"),
		FacultyID:  q.Get("faculty_id"),
		AcademicID: q.Get("academic_id"),
	})
	respond(w, http.StatusOK, slots, err)
}

// ListTimetablesByAcademic handles GET /timetables/academic/{academic_id}
func (h *AcademicHandler) ListTimetablesByAcademic(w http.ResponseWriter, r *http.Request) {
	slots, err := h.Academic.ListTimetables(r.Context(), academic.TimetableFilter{AcademicID: chi.URLParam(r, "academic_id")})
	respond(w, http.StatusOK, slots, err)
}

func (h *AcademicHandler) GetTimetable(w http.ResponseWriter, r *http.Request) {
	slot, err := h.Academic.GetTimetable(r.Context(), pathID(r))
	respond(w, http.StatusOK, slot, err)
}

func (h *AcademicHandler) UpdateTimetable(w http.ResponseWriter, r *http.Request) {
	var req academic.TimetableRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	slot, err := h.Academic.UpdateTimetable(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, slot, err)
}

func (h *AcademicHandler) DeleteTimetable(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Academic.DeleteTimetable(r.Context(), pathID(r)), "timetable")
}

// ============================================================================
// Classes
// ============================================================================

func (h *AcademicHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req academic.ClassRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	class, err := h.Academic.CreateClass(r.Context(), &req)
	respond(w, http.StatusCreated, class, err)
}

// ListClasses handles GET /classes?faculty_id=
func (h *AcademicHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.Academic.ListClasses(r.Context(), r.URL.Query().Get("faculty_id"))
	respond(w, http.StatusOK, classes, err)
}

// GetClass handles GET /classes/{id}; the response includes the students
func (h *AcademicHandler) GetClass(w http.ResponseWriter, r *http.Request) {
	class, err := h.Academic.GetClass(r.Context(), pathID(r))
	respond(w, http.StatusOK, class, err)
}

func (h *AcademicHandler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	var req academic.ClassRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	class, err := h.Academic.UpdateClass(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, class, err)
}

func (h *AcademicHandler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Academic.DeleteClass(r.Context(), pathID(r)), "class")
}

// ============================================================================
// Subjects
// ============================================================================

func (h *AcademicHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req academic.SubjectRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	subject, err := h.Academic.CreateSubject(r.Context(), &req)
	respond(w, http.StatusCreated, subject, err)
}

// ListSubjects handles GET /subjects and GET /subjects/class/{class_id}
func (h *AcademicHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "class_id")
	if classID == "" {
		classID = r.URL.Query().Get("class_id")
	}
	subjects, err := h.Academic.ListSubjects(r.Context(), classID)
	respond(w, http.StatusOK, subjects, err)
}

func (h *AcademicHandler) GetSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := h.Academic.GetSubject(r.Context(), pathID(r))
	respond(w, http.StatusOK, subject, err)
}

func (h *AcademicHandler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	var req academic.SubjectRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	subject, err := h.Academic.UpdateSubject(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, subject, err)
}

func (h *AcademicHandler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Academic.DeleteSubject(r.Context(), pathID(r)), "subject")
}
