package student

import (
	"context"
	"errors"
	"log"
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

// StudentService manages student records
type StudentService struct {
	db          *mongo.Database
	config      *shared.ServiceConfig
	studentsCol *mongo.Collection
	classesCol  *mongo.Collection
	sessionsCol *mongo.Collection
	auditCol    *mongo.Collection
	ids         *IDAllocator
	principals  PrincipalInvalidator
}

// NewStudentService creates a new StudentService instance. principals may be nil.
func NewStudentService(db *mongo.Database, config *shared.ServiceConfig, ids *IDAllocator, principals PrincipalInvalidator) *StudentService {
	return &StudentService{
		db:          db,
		config:      config,
		studentsCol: db.Collection(shared.CollStudents),
		classesCol:  db.Collection(shared.CollClasses),
		sessionsCol: db.Collection(shared.CollSessions),
		auditCol:    db.Collection(shared.CollAuditLogs),
		ids:         ids,
		principals:  principals,
	}
}

// CreateRequest is the body of POST /students
type CreateRequest struct {
	FullName       string `json:"full_name" validate:"required,min=2"`
	ClassID        string `json:"class_id" validate:"required"`
	Sex            string `json:"sex" validate:"required,oneof=Male Female"`
	DateOfBirth    string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	PlaceOfBirth   string `json:"place_of_birth"`
	Nationality    string `json:"nationality"`
	MotherName     string `json:"mother_name"`
	MaritalStatus  string `json:"marital_status"`
	Email          string `json:"email" validate:"omitempty,email"`
	Mobile         string `json:"mobile"`
	Address        string `json:"address"`
	NextOfKin      string `json:"next_of_kin"`
	SchoolName     string `json:"school_name"`
	GraduationYear int    `json:"graduation_year" validate:"omitempty,gte=1950,lte=2100"`
	ProgramMode    string `json:"program_mode" validate:"omitempty,oneof='Full Time' 'Part Time'"`
	Password       string `json:"password" validate:"omitempty,min=6"`
}

// UpdateRequest is the body of PUT /students/{id}. Nil fields are left as is.
type UpdateRequest struct {
	FullName       *string `json:"full_name" validate:"omitempty,min=2"`
	ClassID        *string `json:"class_id"`
	Sex            *string `json:"sex" validate:"omitempty,oneof=Male Female"`
	DateOfBirth    *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	PlaceOfBirth   *string `json:"place_of_birth"`
	Nationality    *string `json:"nationality"`
	MotherName     *string `json:"mother_name"`
	MaritalStatus  *string `json:"marital_status"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Mobile         *string `json:"mobile"`
	Address        *string `json:"address"`
	NextOfKin      *string `json:"next_of_kin"`
	SchoolName     *string `json:"school_name"`
	GraduationYear *int    `json:"graduation_year"`
	ProgramMode    *string `json:"program_mode"`
	Password       *string `json:"password" validate:"omitempty,min=6"`
}

// ============================================================================
// Student Management
// ============================================================================

// CreateStudent allocates the id_number from the class's faculty and stores
// the student with a hashed password.
func (s *StudentService) CreateStudent(ctx context.Context, actorID string, req *CreateRequest) (*shared.Student, error) {
	if req == nil || strings.TrimSpace(req.FullName) == "" || req.ClassID == "" {
		return nil, status.Error(codes.InvalidArgument, "full_name and class_id are required")
	}

	password := req.Password
	if password == "" {
		password = s.config.Security.DefaultStudentPass
	}
	if password == "" {
		return nil, status.Error(codes.InvalidArgument, "password is required")
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		d, err := shared.ParseDay(req.DateOfBirth)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		dob = &d
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	idNumber, err := s.ids.Allocate(queryCtx, req.ClassID)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to allocate student id")
	}

	var class shared.Class
	if err := s.classesCol.FindOne(queryCtx, bson.M{"_id": req.ClassID}).Decode(&class); err != nil {
		return nil, shared.ToStatus(err, "failed to load class")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Security.BCryptCost)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to process password")
	}

	now := time.Now()
	student := shared.Student{
		ID:             shared.NewID(),
		FullName:       strings.TrimSpace(req.FullName),
		IDNumber:       idNumber,
		ClassID:        req.ClassID,
		FacultyID:      class.FacultyID,
		Sex:            req.Sex,
		DateOfBirth:    dob,
		PlaceOfBirth:   req.PlaceOfBirth,
		Nationality:    req.Nationality,
		MotherName:     req.MotherName,
		MaritalStatus:  req.MaritalStatus,
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Mobile:         req.Mobile,
		Address:        req.Address,
		NextOfKin:      req.NextOfKin,
		SchoolName:     req.SchoolName,
		GraduationYear: req.GraduationYear,
		ProgramMode:    req.ProgramMode,
		PasswordHash:   string(hash),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.studentsCol.InsertOne(queryCtx, student); err != nil {
		return nil, shared.ToStatus(err, "failed to create student")
	}

	shared.LogAuditEvent(queryCtx, s.auditCol, actorID, shared.ActionStudentCreate, student.ID, map[string]interface{}{"id_number": idNumber})
	log.Printf("INFO: created student %s (%s)", idNumber, student.ID)

	return &student, nil
}

// ListStudents returns students sorted by name, optionally limited to a class
func (s *StudentService) ListStudents(ctx context.Context, classID string) ([]shared.Student, error) {
	filter := bson.M{}
	if classID != "" {
		filter["class_id"] = classID
	}

	students := []shared.Student{}
	if err := shared.FindAll(ctx, s.studentsCol, filter, &students, options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}})); err != nil {
		return nil, shared.ToStatus(err, "failed to list students")
	}
	return students, nil
}

// GetStudent returns one student by document id
func (s *StudentService) GetStudent(ctx context.Context, id string) (*shared.Student, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "student id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var student shared.Student
	if err := s.studentsCol.FindOne(queryCtx, bson.M{"_id": id}).Decode(&student); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "student not found")
		}
		return nil, shared.ToStatus(err, "failed to retrieve student")
	}
	return &student, nil
}

// UpdateStudent applies the supplied fields. The id_number never changes,
// even when the student moves to another class.
func (s *StudentService) UpdateStudent(ctx context.Context, id string, req *UpdateRequest) (*shared.Student, error) {
	if id == "" || req == nil {
		return nil, status.Error(codes.InvalidArgument, "student id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update := bson.M{}
	setString := func(field string, v *string) {
		if v != nil {
			update[field] = strings.TrimSpace(*v)
		}
	}
	setString("full_name", req.FullName)
	setString("sex", req.Sex)
	setString("place_of_birth", req.PlaceOfBirth)
	setString("nationality", req.Nationality)
	setString("mother_name", req.MotherName)
	setString("marital_status", req.MaritalStatus)
	setString("mobile", req.Mobile)
	setString("address", req.Address)
	setString("next_of_kin", req.NextOfKin)
	setString("school_name", req.SchoolName)
	setString("program_mode", req.ProgramMode)
	if req.Email != nil {
		update["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.GraduationYear != nil {
		update["graduation_year"] = *req.GraduationYear
	}
	if req.DateOfBirth != nil {
		d, err := shared.ParseDay(*req.DateOfBirth)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		update["date_of_birth"] = d
	}

	if req.ClassID != nil && *req.ClassID != "" {
		var class shared.Class
		if err := s.classesCol.FindOne(queryCtx, bson.M{"_id": *req.ClassID}).Decode(&class); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, status.Errorf(codes.FailedPrecondition, "class %s not found", *req.ClassID)
			}
			return nil, shared.ToStatus(err, "failed to load class")
		}
		update["class_id"] = class.ID
		update["faculty_id"] = class.FacultyID
	}

	passwordChanged := false
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.config.Security.BCryptCost)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to process password")
		}
		update["password_hash"] = string(hash)
		passwordChanged = true
	}

	update["updated_at"] = time.Now()

	res, err := s.studentsCol.UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return nil, shared.ToStatus(err, "failed to update student")
	}
	if res.MatchedCount == 0 {
		return nil, status.Error(codes.NotFound, "student not found")
	}

	if passwordChanged {
		_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"subject_id": id})
	}
	s.invalidate(queryCtx, id)

	return s.GetStudent(ctx, id)
}

// DeleteStudent removes the student and revokes their sessions
func (s *StudentService) DeleteStudent(ctx context.Context, actorID, id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "student id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.studentsCol.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to delete student")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "student not found")
	}

	_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"subject_id": id})
	s.invalidate(queryCtx, id)
	shared.LogAuditEvent(queryCtx, s.auditCol, actorID, shared.ActionStudentDelete, id, nil)

	return nil
}

func (s *StudentService) invalidate(ctx context.Context, id string) {
	if s.principals != nil {
		s.principals.Invalidate(ctx, id)
	}
}
