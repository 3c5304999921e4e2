package academic

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

// ClassRequest is the body of POST and PUT /classes
type ClassRequest struct {
	Name       string `json:"name" validate:"required"`
	FacultyID  string `json:"faculty_id" validate:"required"`
	SemesterID string `json:"semester_id"`
	TeacherID  string `json:"teacher_id"`
}

// ClassDetail is a class together with its enrolled students
type ClassDetail struct {
	shared.Class
	Students []shared.Student `json:"students"`
}

// SubjectRequest is the body of POST and PUT /subjects
type SubjectRequest struct {
	Name        string   `json:"name" validate:"required"`
	Code        string   `json:"code" validate:"required,alphanum"`
	Description string   `json:"description"`
	ClassIDs    []string `json:"class_ids"`
}

// ============================================================================
// Classes
// ============================================================================

func (s *AcademicService) CreateClass(ctx context.Context, req *ClassRequest) (*shared.Class, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" || req.FacultyID == "" {
		return nil, status.Error(codes.InvalidArgument, "name and faculty_id are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.requireRefs(queryCtx,
		ref{"faculty", s.facultiesCol, req.FacultyID},
		ref{"teacher", s.db.Collection(shared.CollUsers), req.TeacherID},
	); err != nil {
		return nil, err
	}

	now := time.Now()
	class := shared.Class{
		ID:         shared.NewID(),
		Name:       strings.TrimSpace(req.Name),
		FacultyID:  req.FacultyID,
		SemesterID: req.SemesterID,
		TeacherID:  req.TeacherID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.classesCol.InsertOne(queryCtx, class); err != nil {
		return nil, shared.ToStatus(err, "failed to create class")
	}
	return &class, nil
}

func (s *AcademicService) ListClasses(ctx context.Context, facultyID string) ([]shared.Class, error) {
	filter := bson.M{}
	if facultyID != "" {
		filter["faculty_id"] = facultyID
	}

	classes := []shared.Class{}
	if err := shared.FindAll(ctx, s.classesCol, filter, &classes, shared.BuildFindOptions(0, "name", 1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list classes")
	}
	return classes, nil
}

// GetClass returns the class with its students sorted by name
func (s *AcademicService) GetClass(ctx context.Context, id string) (*ClassDetail, error) {
	var class shared.Class
	if err := s.findByID(ctx, s.classesCol, id, "class", &class); err != nil {
		return nil, err
	}

	students := []shared.Student{}
	opts := options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}})
	if err := shared.FindAll(ctx, s.studentsCol, bson.M{"class_id": id}, &students, opts); err != nil {
		return nil, shared.ToStatus(err, "failed to load class students")
	}

	return &ClassDetail{Class: class, Students: students}, nil
}

func (s *AcademicService) UpdateClass(ctx context.Context, id string, req *ClassRequest) (*shared.Class, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" || req.FacultyID == "" {
		return nil, status.Error(codes.InvalidArgument, "name and faculty_id are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.requireRefs(queryCtx,
		ref{"faculty", s.facultiesCol, req.FacultyID},
		ref{"teacher", s.db.Collection(shared.CollUsers), req.TeacherID},
	); err != nil {
		return nil, err
	}

	var class shared.Class
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.classesCol.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"name":        strings.TrimSpace(req.Name),
		"faculty_id":  req.FacultyID,
		"semester_id": req.SemesterID,
		"teacher_id":  req.TeacherID,
		"updated_at":  time.Now(),
	}}, opts).Decode(&class)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to update class")
	}
	return &class, nil
}

// DeleteClass refuses while students are still enrolled
func (s *AcademicService) DeleteClass(ctx context.Context, id string) error {
	enrolled, err := shared.Exists(ctx, s.studentsCol, bson.M{"class_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to check class students")
	}
	if enrolled {
		return status.Error(codes.FailedPrecondition, "class still has students")
	}
	return s.deleteByID(ctx, s.classesCol, id, "class")
}

// ============================================================================
// Subjects
// ============================================================================

func (s *AcademicService) subjectFields(ctx context.Context, req *SubjectRequest, skipID string) (bson.M, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Code) == "" {
		return nil, status.Error(codes.InvalidArgument, "name and code are required")
	}

	name := strings.TrimSpace(req.Name)
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	clash := bson.M{"$or": []bson.M{{"name": name}, {"code": code}}}
	if skipID != "" {
		clash["_id"] = bson.M{"$ne": skipID}
	}
	taken, err := shared.Exists(ctx, s.subjectsCol, clash)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to check subject")
	}
	if taken {
		return nil, status.Errorf(codes.AlreadyExists, "a subject named %s or coded %s already exists", name, code)
	}

	classIDs := req.ClassIDs
	if classIDs == nil {
		classIDs = []string{}
	}
	for _, classID := range classIDs {
		if err := s.requireRefs(ctx, ref{"class", s.classesCol, classID}); err != nil {
			return nil, err
		}
	}

	return bson.M{"name": name, "code": code, "description": req.Description, "class_ids": classIDs}, nil
}

func (s *AcademicService) CreateSubject(ctx context.Context, req *SubjectRequest) (*shared.Subject, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fields, err := s.subjectFields(queryCtx, req, "")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	subject := shared.Subject{
		ID:          shared.NewID(),
		Name:        fields["name"].(string),
		Code:        fields["code"].(string),
		Description: req.Description,
		ClassIDs:    fields["class_ids"].([]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.subjectsCol.InsertOne(queryCtx, subject); err != nil {
		return nil, shared.ToStatus(err, "failed to create subject")
	}
	return &subject, nil
}

// ListSubjects returns subjects sorted by name, optionally taught to one class
func (s *AcademicService) ListSubjects(ctx context.Context, classID string) ([]shared.Subject, error) {
	filter := bson.M{}
	if classID != "" {
		filter["class_ids"] = classID
	}

	subjects := []shared.Subject{}
	if err := shared.FindAll(ctx, s.subjectsCol, filter, &subjects, shared.BuildFindOptions(0, "name", 1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list subjects")
	}
	return subjects, nil
}

func (s *AcademicService) GetSubject(ctx context.Context, id string) (*shared.Subject, error) {
	var subject shared.Subject
	if err := s.findByID(ctx, s.subjectsCol, id, "subject", &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *AcademicService) UpdateSubject(ctx context.Context, id string, req *SubjectRequest) (*shared.Subject, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fields, err := s.subjectFields(queryCtx, req, id)
	if err != nil {
		return nil, err
	}
	fields["updated_at"] = time.Now()

	var subject shared.Subject
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.subjectsCol.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&subject); err != nil {
		return nil, shared.ToStatus(err, "failed to update subject")
	}
	return &subject, nil
}

func (s *AcademicService) DeleteSubject(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.subjectsCol, id, "subject")
}
