package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/auth"
	"schoolapi/backend/internal/gateway"
	"schoolapi/backend/internal/grade"
	"schoolapi/backend/internal/shared"
)

const (
	adminToken   = "admin-token"
	teacherToken = "teacher-token"
	userToken    = "user-token"
	studentToken = "student-token"
)

// fakeAuth issues fixed tokens so the router can be exercised without a database.
type fakeAuth struct {
	principals map[string]*auth.Principal
	loggedOut  []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{principals: map[string]*auth.Principal{
		adminToken:   {ID: "u-admin", Name: "Admin", Role: shared.RoleAdmin, Kind: shared.KindUser},
		teacherToken: {ID: "u-teacher", Name: "Teacher", Role: shared.RoleTeacher, Kind: shared.KindUser},
		userToken:    {ID: "u-user", Name: "Clerk", Role: shared.RoleUser, Kind: shared.KindUser},
		studentToken: {ID: "s1", Name: "Amina Yusuf", Role: shared.RoleStudent, Kind: shared.KindStudent, ClassID: "class-1", IDNumber: "ENG25STU001"},
	}}
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*auth.LoginResult, error) {
	if email == "admin@school.test" && password == "secret123" {
		return &auth.LoginResult{Token: adminToken, ExpiresAt: time.Now().Add(time.Hour), Principal: f.principals[adminToken]}, nil
	}
	return nil, status.Error(codes.Unauthenticated, "invalid credentials")
}

func (f *fakeAuth) StudentLogin(_ context.Context, idNumber, password string) (*auth.LoginResult, error) {
	if idNumber == "ENG25STU001" && password == "secret123" {
		return &auth.LoginResult{Token: studentToken, ExpiresAt: time.Now().Add(time.Hour), Principal: f.principals[studentToken]}, nil
	}
	return nil, status.Error(codes.Unauthenticated, "invalid credentials")
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

func (f *fakeAuth) ValidateToken(_ context.Context, token string) (*auth.Principal, error) {
	p, ok := f.principals[token]
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return p, nil
}

func (f *fakeAuth) ChangePassword(_ context.Context, p *auth.Principal, oldPassword, _ string) error {
	if oldPassword != "secret123" {
		return status.Error(codes.InvalidArgument, "incorrect old password")
	}
	return nil
}

// TestEnv holds the router and the in-memory stores behind it
type TestEnv struct {
	Router http.Handler
	Auth   *fakeAuth
	Grades *grade.MemoryRepository
}

// setupGatewayTestEnv builds the router over in-memory grade storage and a
// fake token validator. Services that need MongoDB are left nil; tests only
// reach them through paths that are rejected before the service is called.
func setupGatewayTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	repo := grade.NewMemoryRepository()
	repo.AddClass("class-1")
	repo.AddSubject("math")
	repo.AddStudent(shared.Student{ID: "s1", FullName: "Amina Yusuf", IDNumber: "ENG25STU001", ClassID: "class-1"})
	repo.AddStudent(shared.Student{ID: "s2", FullName: "Bashir Ali", IDNumber: "ENG25STU002", ClassID: "class-1"})

	fake := newFakeAuth()
	svc := &gateway.Services{
		Auth:   fake,
		Grades: grade.NewGradeService(repo),
	}
	cfg := &shared.ServiceConfig{UploadMaxBytes: 1 << 20}

	return &TestEnv{
		Router: gateway.SetupRoutes(svc, cfg),
		Auth:   fake,
		Grades: repo,
	}
}

// do sends a request through the router. body may be nil, a []byte or any
// value that is encoded as JSON.
func (env *TestEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	env.Router.ServeHTTP(rr, req)
	return rr
}

// envelope is the decoded JSON response
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  []shared.Issue    `json:"errors"`
	Fields  map[string]string `json:"fields"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}
