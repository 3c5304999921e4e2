package handlers

import (
	"net/http"

	"schoolapi/backend/internal/admin"
	"schoolapi/backend/internal/gateway/util"
)

// AdminHandler serves staff users and the school catalog: faculties,
// batches, semesters and announcements.
type AdminHandler struct {
	Admin *admin.AdminService
}

// ============================================================================
// Users
// ============================================================================

// CreateUser handles POST /users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req admin.CreateUserRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	user, err := h.Admin.CreateUser(r.Context(), actorID(r), &req)
	respond(w, http.StatusCreated, user, err)
}

// ListUsers handles GET /users?role=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Admin.ListUsers(r.Context(), r.URL.Query().Get("role"))
	respond(w, http.StatusOK, users, err)
}

// GetUser handles GET /users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Admin.GetUser(r.Context(), pathID(r))
	respond(w, http.StatusOK, user, err)
}

// UpdateUser handles PUT /users/{id}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req admin.UpdateUserRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	user, err := h.Admin.UpdateUser(r.Context(), actorID(r), pathID(r), &req)
	respond(w, http.StatusOK, user, err)
}

// DeleteUser handles DELETE /users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Admin.DeleteUser(r.Context(), actorID(r), pathID(r)), "user")
}

// ============================================================================
// Faculties
// ============================================================================

func (h *AdminHandler) CreateFaculty(w http.ResponseWriter, r *http.Request) {
	var req admin.FacultyRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	faculty, err := h.Admin.CreateFaculty(r.Context(), actorID(r), &req)
	respond(w, http.StatusCreated, faculty, err)
}

func (h *AdminHandler) ListFaculties(w http.ResponseWriter, r *http.Request) {
	faculties, err := h.Admin.ListFaculties(r.Context())
	respond(w, http.StatusOK, faculties, err)
}

func (h *AdminHandler) GetFaculty(w http.ResponseWriter, r *http.Request) {
	faculty, err := h.Admin.GetFaculty(r.Context(), pathID(r))
	respond(w, http.StatusOK, faculty, err)
}

func (h *AdminHandler) UpdateFaculty(w http.ResponseWriter, r *http.Request) {
	var req admin.FacultyRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	faculty, err := h.Admin.UpdateFaculty(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, faculty, err)
}

func (h *AdminHandler) DeleteFaculty(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Admin.DeleteFaculty(r.Context(), actorID(r), pathID(r)), "faculty")
}

// ============================================================================
// Batches
// ============================================================================

func (h *AdminHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req admin.BatchRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	batch, err := h.Admin.CreateBatch(r.Context(), &req)
	respond(w, http.StatusCreated, batch, err)
}

func (h *AdminHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Admin.ListBatches(r.Context())
	respond(w, http.StatusOK, batches, err)
}

func (h *AdminHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Admin.GetBatch(r.Context(), pathID(r))
	respond(w, http.StatusOK, batch, err)
}

func (h *AdminHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req admin.BatchRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	batch, err := h.Admin.UpdateBatch(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, batch, err)
}

func (h *AdminHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Admin.DeleteBatch(r.Context(), pathID(r)), "batch")
}

// ============================================================================
// Semesters
// ============================================================================

func (h *AdminHandler) CreateSemester(w http.ResponseWriter, r *http.Request) {
	var req admin.SemesterRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	semester, err := h.Admin.CreateSemester(r.Context(), actorID(r), &req)
	respond(w, http.StatusCreated, semester, err)
}

// ListSemesters handles GET /semesters?status=
func (h *AdminHandler) ListSemesters(w http.ResponseWriter, r *http.Request) {
	semesters, err := h.Admin.ListSemesters(r.Context(), r.URL.Query().Get("status"))
	respond(w, http.StatusOK, semesters, err)
}

func (h *AdminHandler) GetSemester(w http.ResponseWriter, r *http.Request) {
	semester, err := h.Admin.GetSemester(r.Context(), pathID(r))
	respond(w, http.StatusOK, semester, err)
}

func (h *AdminHandler) UpdateSemester(w http.ResponseWriter, r *http.Request) {
	var req admin.SemesterRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	semester, err := h.Admin.UpdateSemester(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, semester, err)
}

func (h *AdminHandler) DeleteSemester(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Admin.DeleteSemester(r.Context(), pathID(r)), "semester")
}

// ============================================================================
// Announcements
// ============================================================================

func (h *AdminHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req admin.AnnouncementRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	announcement, err := h.Admin.CreateAnnouncement(r.Context(), &req)
	respond(w, http.StatusCreated, announcement, err)
}

// ListAnnouncements handles GET /announcements?receiver=
func (h *AdminHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.Admin.ListAnnouncements(r.Context(), r.URL.Query().Get("receiver"))
	respond(w, http.StatusOK, announcements, err)
}

func (h *AdminHandler) GetAnnouncement(w http.ResponseWriter, r *http.Request) {
	announcement, err := h.Admin.GetAnnouncement(r.Context(), pathID(r))
	respond(w, http.StatusOK, announcement, err)
}

func (h *AdminHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req admin.AnnouncementRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}
	announcement, err := h.Admin.UpdateAnnouncement(r.Context(), pathID(r), &req)
	respond(w, http.StatusOK, announcement, err)
}

func (h *AdminHandler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	deleted(w, h.Admin.DeleteAnnouncement(r.Context(), pathID(r)), "announcement")
}
