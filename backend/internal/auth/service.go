package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

const tokenIssuer = "school-admin-api"

// AuthService issues and validates tokens for staff users and students
type AuthService struct {
	db          *mongo.Database
	config      *shared.ServiceConfig
	usersCol    *mongo.Collection
	studentsCol *mongo.Collection
	sessionsCol *mongo.Collection
	cache       *PrincipalCache
}

// CustomClaims for JWT
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to a request
type Principal struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	Kind     string `json:"kind"`
	ClassID  string `json:"class_id,omitempty"`
	IDNumber string `json:"id_number,omitempty"`
}

// LoginResult is returned by both login flows
type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Principal *Principal `json:"user"`
}

// NewAuthService creates a new AuthService instance. cache may be nil.
func NewAuthService(db *mongo.Database, config *shared.ServiceConfig, cache *PrincipalCache) *AuthService {
	return &AuthService{
		db:          db,
		config:      config,
		usersCol:    db.Collection(shared.CollUsers),
		studentsCol: db.Collection(shared.CollStudents),
		sessionsCol: db.Collection(shared.CollSessions),
		cache:       cache,
	}
}

// Login authenticates a staff user by email and password
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	if !user.IsActive {
		return nil, status.Error(codes.Unauthenticated, "account is inactive")
	}

	return s.startSession(queryCtx, userPrincipal(&user))
}

// StudentLogin authenticates a student by id_number and password
func (s *AuthService) StudentLogin(ctx context.Context, idNumber, password string) (*LoginResult, error) {
	idNumber = strings.ToUpper(strings.TrimSpace(idNumber))
	if idNumber == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "id_number and password are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var student shared.Student
	if err := s.studentsCol.FindOne(queryCtx, bson.M{"id_number": idNumber}).Decode(&student); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		return nil, status.Error(codes.Internal, "database error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(password)); err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	return s.startSession(queryCtx, studentPrincipal(&student))
}

func (s *AuthService) startSession(ctx context.Context, p *Principal) (*LoginResult, error) {
	tokenString, expiresAt, err := s.generateToken(p.ID, p.Role, p.Kind)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to generate token")
	}

	// The session row is what logout and password changes revoke.
	session := shared.Session{
		ID:        uuid.NewString(),
		SubjectID: p.ID,
		Kind:      p.Kind,
		Token:     tokenString,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if _, err := s.sessionsCol.InsertOne(ctx, session); err != nil {
		return nil, status.Error(codes.Internal, "failed to create session")
	}

	s.cache.Set(ctx, p)

	return &LoginResult{Token: tokenString, ExpiresAt: expiresAt, Principal: p}, nil
}

// Logout invalidates the session of token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return status.Error(codes.InvalidArgument, "token is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.sessionsCol.DeleteMany(queryCtx, bson.M{"token": token}); err != nil {
		return status.Error(codes.Internal, "failed to logout")
	}

	if _, claims, err := s.parseToken(token); err == nil {
		s.cache.Invalidate(queryCtx, claims.UserID)
	}
	return nil
}

// ValidateToken checks the signature and the session, then resolves the
// principal from the cache or the database.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "token missing")
	}

	parsed, claims, err := s.parseToken(token)
	if err != nil || !parsed.Valid {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := s.sessionsCol.CountDocuments(queryCtx, bson.M{"token": token})
	if err != nil || count == 0 {
		return nil, status.Error(codes.Unauthenticated, "session expired or revoked")
	}

	if p, ok := s.cache.Get(queryCtx, claims.UserID); ok && p.Kind == claims.Kind {
		return p, nil
	}

	var p *Principal
	switch claims.Kind {
	case shared.KindStudent:
		var student shared.Student
		if err := s.studentsCol.FindOne(queryCtx, bson.M{"_id": claims.UserID}).Decode(&student); err != nil {
			return nil, status.Error(codes.Unauthenticated, "student not found")
		}
		p = studentPrincipal(&student)
	default:
		var user shared.User
		if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": claims.UserID}).Decode(&user); err != nil {
			return nil, status.Error(codes.Unauthenticated, "user not found")
		}
		if !user.IsActive {
			return nil, status.Error(codes.Unauthenticated, "account inactive")
		}
		p = userPrincipal(&user)
	}

	s.cache.Set(queryCtx, p)
	return p, nil
}

// ChangePassword updates the caller's password and revokes every session
func (s *AuthService) ChangePassword(ctx context.Context, p *Principal, oldPassword, newPassword string) error {
	if p == nil || oldPassword == "" || newPassword == "" {
		return status.Error(codes.InvalidArgument, "old_password and new_password are required")
	}
	if len(newPassword) < 6 {
		return status.Error(codes.InvalidArgument, "new password must be at least 6 characters")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	col := s.usersCol
	if p.Kind == shared.KindStudent {
		col = s.studentsCol
	}

	var account struct {
		PasswordHash string `bson:"password_hash"`
	}
	if err := col.FindOne(queryCtx, bson.M{"_id": p.ID}).Decode(&account); err != nil {
		return status.Error(codes.NotFound, "account not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(oldPassword)); err != nil {
		return status.Error(codes.InvalidArgument, "incorrect old password")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.Security.BCryptCost)
	if err != nil {
		return status.Error(codes.Internal, "failed to process password")
	}

	_, err = col.UpdateOne(queryCtx, bson.M{"_id": p.ID}, bson.M{
		"$set": bson.M{"password_hash": string(newHash), "updated_at": time.Now()},
	})
	if err != nil {
		return status.Error(codes.Internal, "failed to update password")
	}

	_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"subject_id": p.ID})
	s.cache.Invalidate(queryCtx, p.ID)
	return nil
}

// Invalidate drops a cached principal after its account changed
func (s *AuthService) Invalidate(ctx context.Context, subjectID string) {
	s.cache.Invalidate(ctx, subjectID)
}

// ============================================================================
// Internal Helpers
// ============================================================================

// generateToken creates a signed JWT using Shared Config
func (s *AuthService) generateToken(subjectID, role, kind string) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(time.Duration(s.config.Security.JWTExpirationHours) * time.Hour)

	claims := CustomClaims{
		UserID: subjectID,
		Role:   role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))

	return tokenString, expirationTime, err
}

// parseToken validates the JWT signature and extracts claims
func (s *AuthService) parseToken(tokenString string) (*jwt.Token, *CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Security.JWTSecret), nil
	})

	return token, claims, err
}

func userPrincipal(u *shared.User) *Principal {
	return &Principal{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
		Kind:  shared.KindUser,
	}
}

func studentPrincipal(st *shared.Student) *Principal {
	return &Principal{
		ID:       st.ID,
		Name:     st.FullName,
		Email:    st.Email,
		Role:     shared.RoleStudent,
		Kind:     shared.KindStudent,
		ClassID:  st.ClassID,
		IDNumber: st.IDNumber,
	}
}
