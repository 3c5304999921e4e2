package handlers

import (
	"context"
	"net/http"

	"schoolapi/backend/internal/admin"
	"schoolapi/backend/internal/auth"
	"schoolapi/backend/internal/gateway/util"
)

// Authenticator is the part of auth.AuthService the HTTP layer uses
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	StudentLogin(ctx context.Context, idNumber, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*auth.Principal, error)
	ChangePassword(ctx context.Context, p *auth.Principal, oldPassword, newPassword string) error
}

// AuthHandler serves login, logout and account endpoints for staff and students.
type AuthHandler struct {
	Auth  Authenticator
	Admin *admin.AdminService
}

// LoginRequest mirrors the expected JSON input for /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StudentLoginRequest mirrors the expected JSON input for /students/auth/login
type StudentLoginRequest struct {
	IDNumber string `json:"id_number" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest mirrors the expected JSON input for /auth/change-password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}

	result, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	respond(w, http.StatusOK, result, err)
}

// StudentLogin handles POST /students/auth/login
func (h *AuthHandler) StudentLogin(w http.ResponseWriter, r *http.Request) {
	var req StudentLoginRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}

	result, err := h.Auth.StudentLogin(r.Context(), req.IDNumber, req.Password)
	respond(w, http.StatusOK, result, err)
}

// Register handles POST /auth/register (admin only)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req admin.CreateUserRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}

	user, err := h.Admin.CreateUser(r.Context(), actorID(r), &req)
	respond(w, http.StatusCreated, user, err)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := util.ExtractToken(r)
	if err != nil {
		util.WriteJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.Auth.Logout(r.Context(), token); err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteMessage(w, http.StatusOK, "logged out")
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := util.PrincipalFrom(r)
	if p == nil {
		util.WriteJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	util.WriteJSON(w, http.StatusOK, p)
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleError(w, err)
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), util.PrincipalFrom(r), req.OldPassword, req.NewPassword); err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteMessage(w, http.StatusOK, "password changed, please log in again")
}
