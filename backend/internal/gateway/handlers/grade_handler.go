package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/xuri/excelize/v2"

	"schoolapi/backend/internal/gateway/util"
	"schoolapi/backend/internal/grade"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GradeHandler serves grade imports, direct edits, listings and workbooks.
type GradeHandler struct {
	Grades *grade.GradeService

	// MaxUploadBytes bounds multipart sheet uploads
	MaxUploadBytes int64
}

// UploadSheet handles POST /grades/upload
// Form fields: file (xlsx), class_id, subject_id
func (h *GradeHandler) UploadSheet(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid upload: expected multipart form with a file up to "+fmt.Sprint(limit)+" bytes")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	log.Printf("INFO: grade sheet upload %q (%d bytes)", header.Filename, header.Size)

	result, err := h.Grades.ImportSheet(r.Context(), r.FormValue("class_id"), r.FormValue("subject_id"), file)
	respond(w, http.StatusCreated, result, err)
}

// ImportRows handles POST /grades/import
func (h *GradeHandler) ImportRows(w http.ResponseWriter, r *http.Request) {
	var req grade.ImportRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	result, err := h.Grades.ImportRows(r.Context(), &req)
	respond(w, http.StatusCreated, result, err)
}

// SaveGrade handles PUT /grades
func (h *GradeHandler) SaveGrade(w http.ResponseWriter, r *http.Request) {
	var req grade.SaveRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	view, err := h.Grades.SaveGrade(r.Context(), &req)
	respond(w, http.StatusOK, view, err)
}

// DeleteGrades handles DELETE /grades?class_id=&subject_id=
func (h *GradeHandler) DeleteGrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := h.Grades.DeleteGrades(r.Context(), q.Get("class_id"), q.Get("subject_id"))
	respond(w, http.StatusOK, map[string]int64{"deleted": count}, err)
}

// ClassGrades handles GET /grades?class_id=&subject_id=
func (h *GradeHandler) ClassGrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := h.Grades.ClassGrades(r.Context(), q.Get("class_id"), q.Get("subject_id"))
	respond(w, http.StatusOK, views, err)
}

// MyGrades handles GET /students/me/grades for the logged-in student
func (h *GradeHandler) MyGrades(w http.ResponseWriter, r *http.Request) {
	views, err := h.Grades.StudentGrades(r.Context(), util.PrincipalFrom(r).ID)
	respond(w, http.StatusOK, views, err)
}

// StudentGrades handles GET /grades/student/{id}
func (h *GradeHandler) StudentGrades(w http.ResponseWriter, r *http.Request) {
	views, err := h.Grades.StudentGrades(r.Context(), pathID(r))
	respond(w, http.StatusOK, views, err)
}

// Template handles GET /grades/template?class_id=
func (h *GradeHandler) Template(w http.ResponseWriter, r *http.Request) {
	classID := r.URL.Query().Get("class_id")
	f, err := h.Grades.Template(r.Context(), classID)
	if err != nil {
		util.HandleError(w, err)
		return
	}
	writeWorkbook(w, f, "grades-template-"+classID+".xlsx")
}

// Export handles GET /grades/export?class_id=&subject_id=
func (h *GradeHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := h.Grades.Export(r.Context(), q.Get("class_id"), q.Get("subject_id"))
	if err != nil {
		util.HandleError(w, err)
		return
	}
	writeWorkbook(w, f, "grades-"+q.Get("class_id")+"-"+q.Get("subject_id")+".xlsx")
}

func writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		log.Printf("Error writing workbook %s: %v", filename, err)
	}
}
