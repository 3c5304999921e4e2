package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

func testConfig(secret string) *shared.ServiceConfig {
	return &shared.ServiceConfig{
		Security: shared.SecurityConfig{
			JWTSecret:          secret,
			JWTExpirationHours: 1,
			BCryptCost:         bcrypt.MinCost,
		},
	}
}

func TestTokens(t *testing.T) {
	s := &AuthService{config: testConfig("unit-test-secret")}

	t.Run("Round trip keeps claims", func(t *testing.T) {
		token, expiresAt, err := s.generateToken("u1", shared.RoleTeacher, shared.KindUser)
		if err != nil {
			t.Fatalf("generateToken failed: %v", err)
		}
		if time.Until(expiresAt) <= 0 {
			t.Errorf("expiry %v is not in the future", expiresAt)
		}

		parsed, claims, err := s.parseToken(token)
		if err != nil || !parsed.Valid {
			t.Fatalf("parseToken failed: %v", err)
		}
		if claims.UserID != "u1" || claims.Role != shared.RoleTeacher || claims.Kind != shared.KindUser {
			t.Errorf("unexpected claims: %+v", claims)
		}
		if claims.ID == "" {
			t.Error("expected a jti")
		}
	})

	t.Run("Tokens issued together differ", func(t *testing.T) {
		a, _, _ := s.generateToken("u1", shared.RoleAdmin, shared.KindUser)
		b, _, _ := s.generateToken("u1", shared.RoleAdmin, shared.KindUser)
		if a == b {
			t.Error("expected distinct tokens")
		}
	})

	t.Run("Wrong secret is rejected", func(t *testing.T) {
		other := &AuthService{config: testConfig("another-secret")}
		token, _, _ := other.generateToken("u1", shared.RoleAdmin, shared.KindUser)

		if _, _, err := s.parseToken(token); err == nil {
			t.Error("expected signature error")
		}
	})

	t.Run("Expired token is rejected", func(t *testing.T) {
		claims := CustomClaims{
			UserID: "u1",
			Role:   shared.RoleAdmin,
			Kind:   shared.KindUser,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-test-secret"))

		if _, _, err := s.parseToken(token); err == nil {
			t.Error("expected expiry error")
		}
	})

	t.Run("Empty token is unauthenticated", func(t *testing.T) {
		_, err := s.ValidateToken(context.Background(), "")
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("Garbage token is unauthenticated", func(t *testing.T) {
		_, err := s.ValidateToken(context.Background(), "not-a-jwt")
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})
}

func TestPrincipalCacheDisabled(t *testing.T) {
	ctx := context.Background()

	var nilCache *PrincipalCache
	nilCache.Set(ctx, &Principal{ID: "u1"})
	nilCache.Invalidate(ctx, "u1")
	if _, ok := nilCache.Get(ctx, "u1"); ok {
		t.Error("nil cache must always miss")
	}

	noClient := NewPrincipalCache(nil, 0)
	noClient.Set(ctx, &Principal{ID: "u1"})
	if _, ok := noClient.Get(ctx, "u1"); ok {
		t.Error("cache without client must always miss")
	}
	if noClient.ttl != 10*time.Minute {
		t.Errorf("default ttl = %v, want 10m", noClient.ttl)
	}
}

// TestAuthService_Integration runs the login flows against a real MongoDB
// when MONGO_URI is available.
func TestAuthService_Integration(t *testing.T) {
	_ = godotenv.Load("../../../.env")
	uri := shared.GetEnv("MONGO_URI", "")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	client, db, err := shared.ConnectMongoDB(shared.DefaultMongoConfig(uri, "school_auth_test"))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	ctx := context.Background()
	db.Drop(ctx)
	defer db.Drop(ctx)

	svc := NewAuthService(db, testConfig("integration-secret"), nil)

	testPassword := "secret123"
	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)

	db.Collection(shared.CollUsers).InsertOne(ctx, shared.User{
		ID: "user-1", Name: "Test Teacher", Email: "teacher@example.com",
		PasswordHash: string(hash), Role: shared.RoleTeacher, IsActive: true, CreatedAt: time.Now(),
	})
	db.Collection(shared.CollUsers).InsertOne(ctx, shared.User{
		ID: "user-2", Name: "Inactive", Email: "inactive@example.com",
		PasswordHash: string(hash), Role: shared.RoleUser, IsActive: false, CreatedAt: time.Now(),
	})
	db.Collection(shared.CollStudents).InsertOne(ctx, shared.Student{
		ID: "stu-1", FullName: "Test Student", IDNumber: "ENG25STU001", ClassID: "class-1",
		PasswordHash: string(hash), CreatedAt: time.Now(),
	})

	t.Run("Login Success", func(t *testing.T) {
		res, err := svc.Login(ctx, "Teacher@Example.com", testPassword)
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if res.Token == "" || res.Principal.Role != shared.RoleTeacher {
			t.Errorf("unexpected login result: %+v", res)
		}
	})

	t.Run("Login Invalid Password", func(t *testing.T) {
		_, err := svc.Login(ctx, "teacher@example.com", "wrong")
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("Login Inactive Account", func(t *testing.T) {
		_, err := svc.Login(ctx, "inactive@example.com", testPassword)
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("Student Login And Validate", func(t *testing.T) {
		res, err := svc.StudentLogin(ctx, "eng25stu001", testPassword)
		if err != nil {
			t.Fatalf("StudentLogin failed: %v", err)
		}

		p, err := svc.ValidateToken(ctx, res.Token)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if p.Kind != shared.KindStudent || p.ClassID != "class-1" {
			t.Errorf("unexpected principal: %+v", p)
		}
	})

	t.Run("Change Password Revokes Sessions", func(t *testing.T) {
		res, _ := svc.Login(ctx, "teacher@example.com", testPassword)

		if err := svc.ChangePassword(ctx, res.Principal, testPassword, "new_secret_456"); err != nil {
			t.Fatalf("ChangePassword failed: %v", err)
		}
		if _, err := svc.ValidateToken(ctx, res.Token); err == nil {
			t.Error("old token should be revoked")
		}
		if _, err := svc.Login(ctx, "teacher@example.com", "new_secret_456"); err != nil {
			t.Errorf("could not login with new password: %v", err)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		res, _ := svc.Login(ctx, "teacher@example.com", "new_secret_456")

		if err := svc.Logout(ctx, res.Token); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}
		if _, err := svc.ValidateToken(ctx, res.Token); err == nil {
			t.Error("token should be invalid after logout")
		}
		if err := svc.Logout(ctx, res.Token); err != nil {
			t.Errorf("second logout should succeed: %v", err)
		}
	})
}
