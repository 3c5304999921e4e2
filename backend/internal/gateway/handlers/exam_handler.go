package handlers

import (
	"net/http"

	"schoolapi/backend/internal/exam"
	"schoolapi/backend/internal/gateway/util"
)

// ExamHandler serves exams and their per-student results.
type ExamHandler struct {
	Exams *exam.ExamService
}

func (h *ExamHandler) CreateExam(w http.ResponseWriter, r *http.Request) {
	var req exam.ExamRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	created, err := h.Exams.CreateExam(r.Context(), &req)
	respond(w, http.StatusCreated, created, err)
}

// ListExams handles GET /exams?exam_type=
func (h *ExamHandler) ListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.Exams.ListExams(r.Context(), r.URL.Query().Get("exam_type"))
	respond(w, http.StatusOK, exams, err)
}

func (h *ExamHandler) GetExam(w http.ResponseWriter, r *http.Request) {
	found, err := h.Exams.GetExam(r.Context(), pathID(r))
	respond(w, http.StatusOK, found, err)
}

func (h *ExamHandler) UpdateExam(w http.ResponseWriter, r *http.Request) {
	var req exam.ExamRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	updated, err := h.Exams.UpdateExam(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, updated, err)
}

// DeleteExam handles DELETE /exams/{id}; the exam's results go with it
func (h *ExamHandler) DeleteExam(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Exams.DeleteExam(r.Context(), pathID(r)), "exam")
}

// SubmitResults handles POST /exam-results
func (h *ExamHandler) SubmitResults(w http.ResponseWriter, r *http.Request) {
	var req exam.SubmitRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	count, err := h.Exams.SubmitResults(r.Context(), &req)
	respond(w, http.StatusCreated, map[string]int{"saved": count}, err)
}

// UpdateMark handles PATCH /exam-results
func (h *ExamHandler) UpdateMark(w http.ResponseWriter, r *http.Request) {
	var req exam.UpdateMarkRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	result, err := h.Exams.UpdateMark(r.Context(), &req)
	respond(w, http.StatusOK, result, err)
}

// Results handles GET /exam-results?exam_type=&subject=&class=
func (h *ExamHandler) Results(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := h.Exams.ResultsByType(r.Context(), q.Get("exam_type"), q.Get("subject"), q.Get("class"))
	respond(w, http.StatusOK, results, err)
}

// StudentResults handles GET /exam-results/student/{id}?subject=&academic=&exam_type=
func (h *ExamHandler) StudentResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Exams.StudentResults(r.Context(), pathID(r), studentResultFilter(r))
	respond(w, http.StatusOK, results, err)
}

// MyResults handles GET /students/me/exam-results for the logged-in student
func (h *ExamHandler) MyResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Exams.StudentResults(r.Context(), util.PrincipalFrom(r).ID, studentResultFilter(r))
	respond(w, http.StatusOK, results, err)
}

func studentResultFilter(r *http.Request) exam.ResultFilter {
	q := r.URL.Query()
	return exam.ResultFilter{
		SubjectID:  q.Get("subject"),
		AcademicID: q.Get("academic"),
		ExamType:   q.Get("exam_type"),
	}
}
