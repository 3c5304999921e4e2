package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"schoolapi/backend/internal/gateway/util"
	"schoolapi/backend/internal/student"
)

// StudentHandler serves student records. Identifiers are allocated by the service.
type StudentHandler struct {
	Students *student.StudentService
}

// CreateStudent handles POST /students
func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req student.CreateRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	created, err := h.Students.CreateStudent(r.Context(), actorID(r), &req)
	respond(w, http.StatusCreated, created, err)
}

// ListStudents handles GET /students?class_id= and GET /students/class/{class_id}
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "class_id")
	if classID == "" {
		classID = r.URL.Query().Get("class_id")
	}
	students, err := h.Students.ListStudents(r.Context(), classID)
	respond(w, http.StatusOK, students, err)
}

func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	found, err := h.Students.GetStudent(r.Context(), pathID(r))
	respond(w, http.StatusOK, found, err)
}

// UpdateStudent handles PUT /students/{id}
func (h *StudentHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req student.UpdateRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	updated, err := h.Students.UpdateStudent(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, updated, err)
}

func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Students.DeleteStudent(r.Context(), actorID(r), pathID(r)), "student")
}
