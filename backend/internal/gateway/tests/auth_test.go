package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolapi/backend/internal/auth"
)

func TestGateway_Auth(t *testing.T) {
	env := setupGatewayTestEnv(t)

	t.Run("Login success", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "admin@school.test", "password": "secret123",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		body := decode(t, rr)
		assert.True(t, body.Success)

		var result auth.LoginResult
		require.NoError(t, json.Unmarshal(body.Data, &result))
		assert.Equal(t, adminToken, result.Token)
		assert.Equal(t, "admin", result.Principal.Role)
	})

	t.Run("Login wrong password", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "admin@school.test", "password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, decode(t, rr).Success)
	})

	t.Run("Login validation errors name JSON fields", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "not-an-email"})
		require.Equal(t, http.StatusBadRequest, rr.Code)

		body := decode(t, rr)
		assert.Contains(t, body.Fields, "email")
		assert.Contains(t, body.Fields, "password")
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/auth/login", "", []byte("{"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Student login", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/students/auth/login", "", map[string]string{
			"id_number": "ENG25STU001", "password": "secret123",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("Me requires a token", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = env.do(t, http.MethodGet, "/api/auth/me", "forged", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Me returns the caller", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/auth/me", teacherToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var p auth.Principal
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &p))
		assert.Equal(t, "u-teacher", p.ID)
	})

	t.Run("Token scheme is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Token "+studentToken)
		rr := httptest.NewRecorder()
		env.Router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Change password", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/auth/change-password", teacherToken, map[string]string{
			"old_password": "wrong", "new_password": "another1",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = env.do(t, http.MethodPost, "/api/auth/change-password", teacherToken, map[string]string{
			"old_password": "secret123", "new_password": "another1",
		})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Logout", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/auth/logout", userToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, env.Auth.loggedOut, userToken)

		rr = env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestGateway_Roles(t *testing.T) {
	env := setupGatewayTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"student cannot list users", http.MethodGet, "/api/users", studentToken, http.StatusForbidden},
		{"teacher cannot create users", http.MethodPost, "/api/users", teacherToken, http.StatusForbidden},
		{"teacher cannot register staff", http.MethodPost, "/api/auth/register", teacherToken, http.StatusForbidden},
		{"clerk cannot read grades", http.MethodGet, "/api/grades?class_id=class-1&subject_id=math", userToken, http.StatusForbidden},
		{"student cannot read class grades", http.MethodGet, "/api/grades?class_id=class-1&subject_id=math", studentToken, http.StatusForbidden},
		{"staff cannot use student self-service", http.MethodGet, "/api/students/me/grades", teacherToken, http.StatusForbidden},
		{"student cannot record attendance", http.MethodPost, "/api/attendance", studentToken, http.StatusForbidden},
		{"anonymous is unauthorized", http.MethodGet, "/api/faculties", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}
