package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Token abc", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractToken(req)
		if tt.ok {
			assert.NoError(t, err, tt.header)
			assert.Equal(t, tt.want, got)
		} else {
			assert.Error(t, err, tt.header)
		}
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), http.StatusBadRequest},
		{"failed precondition", status.Error(codes.FailedPrecondition, "class missing"), http.StatusBadRequest},
		{"unauthenticated", status.Error(codes.Unauthenticated, "no"), http.StatusUnauthorized},
		{"permission denied", status.Error(codes.PermissionDenied, "no"), http.StatusForbidden},
		{"not found", status.Error(codes.NotFound, "gone"), http.StatusNotFound},
		{"already exists", status.Error(codes.AlreadyExists, "dup"), http.StatusConflict},
		{"unavailable", status.Error(codes.Unavailable, "down"), http.StatusServiceUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), http.StatusGatewayTimeout},
		{"internal", status.Error(codes.Internal, "boom"), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			HandleError(rr, tt.err)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	t.Run("batch error carries issues", func(t *testing.T) {
		rr := httptest.NewRecorder()
		HandleError(rr, &shared.BatchError{
			Message: "rejected",
			Issues:  []shared.Issue{{Row: 2, Key: "ENG25STU001", Kind: shared.IssueRangeViolation, Message: "cw1 out of range"}},
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)

		var body JSONError
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, "rejected", body.Message)
		require.Len(t, body.Errors, 1)
		assert.Equal(t, 2, body.Errors[0].Row)
	})

	t.Run("validation errors carry fields", func(t *testing.T) {
		type request struct {
			Email string `json:"email" validate:"required,email"`
			Start string `json:"start_time" validate:"hhmm"`
		}
		err := Validate.Struct(&request{Email: "x", Start: "25:00"})
		require.Error(t, err)

		rr := httptest.NewRecorder()
		HandleError(rr, err)
		require.Equal(t, http.StatusBadRequest, rr.Code)

		var body JSONError
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Contains(t, body.Fields, "email")
		assert.Contains(t, body.Fields["start_time"], "HH:MM")
	})
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]int{"saved": 3})

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.Data["saved"])
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}
