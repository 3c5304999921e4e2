package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

// PrincipalInvalidator drops cached principals after account changes
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, subjectID string)
}

// AdminService manages staff users and the organisation catalogue
type AdminService struct {
	db               *mongo.Database
	config           *shared.ServiceConfig
	usersCol         *mongo.Collection
	sessionsCol      *mongo.Collection
	facultiesCol     *mongo.Collection
	classesCol       *mongo.Collection
	batchesCol       *mongo.Collection
	semestersCol     *mongo.Collection
	announcementsCol *mongo.Collection
	auditLogsCol     *mongo.Collection
	principals       PrincipalInvalidator
}

// NewAdminService creates a new AdminService instance. principals may be nil.
func NewAdminService(db *mongo.Database, config *shared.ServiceConfig, principals PrincipalInvalidator) *AdminService {
	return &AdminService{
		db:               db,
		config:           config,
		usersCol:         db.Collection(shared.CollUsers),
		sessionsCol:      db.Collection(shared.CollSessions),
		facultiesCol:     db.Collection(shared.CollFaculties),
		classesCol:       db.Collection(shared.CollClasses),
		batchesCol:       db.Collection(shared.CollBatches),
		semestersCol:     db.Collection(shared.CollSemesters),
		announcementsCol: db.Collection(shared.CollAnnouncements),
		auditLogsCol:     db.Collection(shared.CollAuditLogs),
		principals:       principals,
	}
}

// CreateUserRequest is the body of POST /users and /auth/register
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin teacher user"`
}

// UpdateUserRequest is the body of PUT /users/{id}. Nil fields are left as is.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin teacher user"`
	IsActive *bool   `json:"is_active"`
}

// ============================================================================
// User Management
// ============================================================================

func (s *AdminService) CreateUser(ctx context.Context, actorID string, req *CreateUserRequest) (*shared.User, error) {
	if req == nil || req.Email == "" || req.Name == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "name, email and password are required")
	}
	if !shared.IsValidRole(req.Role) {
		return nil, status.Error(codes.InvalidArgument, "invalid role")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	taken, err := shared.Exists(queryCtx, s.usersCol, bson.M{"email": email})
	if err != nil {
		return nil, shared.ToStatus(err, "failed to check email")
	}
	if taken {
		return nil, status.Errorf(codes.AlreadyExists, "email %s is already registered", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.Security.BCryptCost)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to process password")
	}

	now := time.Now()
	user := shared.User{
		ID:           shared.NewID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.usersCol.InsertOne(queryCtx, user); err != nil {
		return nil, shared.ToStatus(err, "failed to create user")
	}

	shared.LogAuditEvent(queryCtx, s.auditLogsCol, actorID, shared.ActionUserCreate, user.ID, map[string]interface{}{"role": user.Role})
	return &user, nil
}

func (s *AdminService) ListUsers(ctx context.Context, role string) ([]shared.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}

	users := []shared.User{}
	if err := shared.FindAll(ctx, s.usersCol, filter, &users, shared.BuildFindOptions(0, "name", 1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list users")
	}
	return users, nil
}

func (s *AdminService) GetUser(ctx context.Context, id string) (*shared.User, error) {
	var user shared.User
	if err := s.findByID(ctx, s.usersCol, id, &user); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, actorID, id string, req *UpdateUserRequest) (*shared.User, error) {
	if id == "" || req == nil {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{}
	if req.Name != nil {
		update["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		taken, err := shared.Exists(queryCtx, s.usersCol, bson.M{"email": email, "_id": bson.M{"$ne": id}})
		if err != nil {
			return nil, shared.ToStatus(err, "failed to check email")
		}
		if taken {
			return nil, status.Errorf(codes.AlreadyExists, "email %s is already registered", email)
		}
		update["email"] = email
	}
	if req.Role != nil {
		if !shared.IsValidRole(*req.Role) {
			return nil, status.Error(codes.InvalidArgument, "invalid role")
		}
		update["role"] = *req.Role
	}
	if req.IsActive != nil {
		update["is_active"] = *req.IsActive
	}

	revoke := false
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.config.Security.BCryptCost)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to process password")
		}
		update["password_hash"] = string(hash)
		revoke = true
	}
	if req.IsActive != nil && !*req.IsActive {
		revoke = true
	}

	update["updated_at"] = time.Now()

	res, err := s.usersCol.UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return nil, shared.ToStatus(err, "failed to update user")
	}
	if res.MatchedCount == 0 {
		return nil, status.Error(codes.NotFound, "user not found")
	}

	if revoke {
		_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"subject_id": id})
	}
	s.invalidate(queryCtx, id)
	shared.LogAuditEvent(queryCtx, s.auditLogsCol, actorID, shared.ActionUserUpdate, id, nil)

	return s.GetUser(ctx, id)
}

func (s *AdminService) DeleteUser(ctx context.Context, actorID, id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "user id is required")
	}
	if id == actorID {
		return status.Error(codes.FailedPrecondition, "you cannot delete your own account")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.usersCol.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to delete user")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "user not found")
	}

	_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"subject_id": id})
	s.invalidate(queryCtx, id)
	shared.LogAuditEvent(queryCtx, s.auditLogsCol, actorID, shared.ActionUserDelete, id, nil)
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *AdminService) findByID(ctx context.Context, col *mongo.Collection, id string, out interface{}) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return col.FindOne(queryCtx, bson.M{"_id": id}).Decode(out)
}

func (s *AdminService) deleteByID(ctx context.Context, col *mongo.Collection, id, resource string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := col.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to delete "+resource)
	}
	if res.DeletedCount == 0 {
		return status.Errorf(codes.NotFound, "%s not found", resource)
	}
	return nil
}

func (s *AdminService) replaceByID(ctx context.Context, col *mongo.Collection, id, resource string, fields bson.M, out interface{}) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fields["updated_at"] = time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := col.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return status.Errorf(codes.NotFound, "%s not found", resource)
		}
		return shared.ToStatus(err, "failed to update "+resource)
	}
	return nil
}

func (s *AdminService) invalidate(ctx context.Context, id string) {
	if s.principals != nil {
		s.principals.Invalidate(ctx, id)
	}
}

func notFound(err error, resource string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return status.Errorf(codes.NotFound, "%s not found", resource)
	}
	return shared.ToStatus(err, "failed to retrieve "+resource)
}
