package admin

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

// FacultyRequest is the body of POST and PUT /faculties
type FacultyRequest struct {
	Name            string   `json:"name" validate:"required,min=2"`
	ArabicName      string   `json:"arabic_name"`
	Description     string   `json:"description" validate:"required"`
	DeanID          string   `json:"dean_id"`
	Code            string   `json:"code" validate:"omitempty,alphanum,max=8"`
	EstablishedYear int      `json:"established_year" validate:"required,gte=1800,lte=2100"`
	Departments     []string `json:"departments"`
}

// BatchRequest is the body of POST and PUT /batches
type BatchRequest struct {
	Name string `json:"name" validate:"required"`
}

// SemesterRequest is the body of POST and PUT /semesters
type SemesterRequest struct {
	Department string `json:"department" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Title      string `json:"title" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=running completed cancelled"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date" validate:"required"`
}

// AnnouncementRequest is the body of POST and PUT /announcements
type AnnouncementRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Receiver    string `json:"receiver" validate:"required,oneof=teachers students"`
}

// ============================================================================
// Faculties
// ============================================================================

func (s *AdminService) CreateFaculty(ctx context.Context, actorID string, req *FacultyRequest) (*shared.Faculty, error) {
	if req == nil || req.Name == "" || req.Description == "" || req.EstablishedYear == 0 {
		return nil, status.Error(codes.InvalidArgument, "name, description and established_year are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now()
	faculty := shared.Faculty{
		ID:              shared.NewID(),
		Name:            strings.TrimSpace(req.Name),
		ArabicName:      req.ArabicName,
		Description:     req.Description,
		DeanID:          req.DeanID,
		Code:            strings.ToUpper(strings.TrimSpace(req.Code)),
		EstablishedYear: req.EstablishedYear,
		Departments:     nonNil(req.Departments),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if _, err := s.facultiesCol.InsertOne(queryCtx, faculty); err != nil {
		return nil, shared.ToStatus(err, "failed to create faculty")
	}

	shared.LogAuditEvent(queryCtx, s.auditLogsCol, actorID, shared.ActionFacultyCreate, faculty.ID, nil)
	return &faculty, nil
}

func (s *AdminService) ListFaculties(ctx context.Context) ([]shared.Faculty, error) {
	faculties := []shared.Faculty{}
	if err := shared.FindAll(ctx, s.facultiesCol, bson.M{}, &faculties, shared.BuildFindOptions(0, "name", 1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list faculties")
	}
	return faculties, nil
}

func (s *AdminService) GetFaculty(ctx context.Context, id string) (*shared.Faculty, error) {
	var faculty shared.Faculty
	if err := s.findByID(ctx, s.facultiesCol, id, &faculty); err != nil {
		return nil, notFound(err, "faculty")
	}
	return &faculty, nil
}

func (s *AdminService) UpdateFaculty(ctx context.Context, id string, req *FacultyRequest) (*shared.Faculty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request body is required")
	}

	var faculty shared.Faculty
	err := s.replaceByID(ctx, s.facultiesCol, id, "faculty", bson.M{
		"name":             strings.TrimSpace(req.Name),
		"arabic_name":      req.ArabicName,
		"description":      req.Description,
		"dean_id":          req.DeanID,
		"code":             strings.ToUpper(strings.TrimSpace(req.Code)),
		"established_year": req.EstablishedYear,
		"departments":      nonNil(req.Departments),
	}, &faculty)
	if err != nil {
		return nil, err
	}
	return &faculty, nil
}

// DeleteFaculty refuses while classes still belong to the faculty
func (s *AdminService) DeleteFaculty(ctx context.Context, actorID, id string) error {
	inUse, err := shared.Exists(ctx, s.classesCol, bson.M{"faculty_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to check faculty classes")
	}
	if inUse {
		return status.Error(codes.FailedPrecondition, "faculty still has classes")
	}

	if err := s.deleteByID(ctx, s.facultiesCol, id, "faculty"); err != nil {
		return err
	}
	shared.LogAuditEvent(ctx, s.auditLogsCol, actorID, shared.ActionFacultyDelete, id, nil)
	return nil
}

// ============================================================================
// Batches
// ============================================================================

func (s *AdminService) CreateBatch(ctx context.Context, req *BatchRequest) (*shared.Batch, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now()
	batch := shared.Batch{ID: shared.NewID(), Name: strings.TrimSpace(req.Name), CreatedAt: now, UpdatedAt: now}
	if _, err := s.batchesCol.InsertOne(queryCtx, batch); err != nil {
		return nil, shared.ToStatus(err, "failed to create batch")
	}
	return &batch, nil
}

func (s *AdminService) ListBatches(ctx context.Context) ([]shared.Batch, error) {
	batches := []shared.Batch{}
	if err := shared.FindAll(ctx, s.batchesCol, bson.M{}, &batches, shared.BuildFindOptions(0, "created_at", -1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list batches")
	}
	return batches, nil
}

func (s *AdminService) GetBatch(ctx context.Context, id string) (*shared.Batch, error) {
	var batch shared.Batch
	if err := s.findByID(ctx, s.batchesCol, id, &batch); err != nil {
		return nil, notFound(err, "batch")
	}
	return &batch, nil
}

func (s *AdminService) UpdateBatch(ctx context.Context, id string, req *BatchRequest) (*shared.Batch, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	var batch shared.Batch
	if err := s.replaceByID(ctx, s.batchesCol, id, "batch", bson.M{"name": strings.TrimSpace(req.Name)}, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *AdminService) DeleteBatch(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.batchesCol, id, "batch")
}

// ============================================================================
// Semesters
// ============================================================================

func semesterFields(req *SemesterRequest) (bson.M, error) {
	if req == nil || req.Department == "" || req.Name == "" || req.Title == "" {
		return nil, status.Error(codes.InvalidArgument, "department, name and title are required")
	}
	if !shared.IsValidSemesterStatus(req.Status) {
		return nil, status.Error(codes.InvalidArgument, "status must be running, completed or cancelled")
	}

	start, err := shared.ParseDay(req.StartDate)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "start_date: "+err.Error())
	}
	end, err := shared.ParseDay(req.EndDate)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "end_date: "+err.Error())
	}
	if end.Before(start) {
		return nil, status.Error(codes.InvalidArgument, "end_date must not be before start_date")
	}

	return bson.M{
		"department": req.Department,
		"name":       req.Name,
		"title":      req.Title,
		"status":     req.Status,
		"start_date": start,
		"end_date":   end,
	}, nil
}

func (s *AdminService) CreateSemester(ctx context.Context, actorID string, req *SemesterRequest) (*shared.Semester, error) {
	fields, err := semesterFields(req)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now()
	semester := shared.Semester{
		ID:         shared.NewID(),
		Department: req.Department,
		Name:       req.Name,
		Title:      req.Title,
		Status:     req.Status,
		StartDate:  fields["start_date"].(time.Time),
		EndDate:    fields["end_date"].(time.Time),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.semestersCol.InsertOne(queryCtx, semester); err != nil {
		return nil, shared.ToStatus(err, "failed to create semester")
	}

	shared.LogAuditEvent(queryCtx, s.auditLogsCol, actorID, shared.ActionSemesterCreate, semester.ID, nil)
	return &semester, nil
}

// ListSemesters returns semesters, optionally filtered by status
func (s *AdminService) ListSemesters(ctx context.Context, semesterStatus string) ([]shared.Semester, error) {
	filter := bson.M{}
	if semesterStatus != "" {
		filter["status"] = semesterStatus
	}

	semesters := []shared.Semester{}
	if err := shared.FindAll(ctx, s.semestersCol, filter, &semesters, shared.BuildFindOptions(0, "start_date", -1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list semesters")
	}
	return semesters, nil
}

func (s *AdminService) GetSemester(ctx context.Context, id string) (*shared.Semester, error) {
	var semester shared.Semester
	if err := s.findByID(ctx, s.semestersCol, id, &semester); err != nil {
		return nil, notFound(err, "semester")
	}
	return &semester, nil
}

func (s *AdminService) UpdateSemester(ctx context.Context, id string, req *SemesterRequest) (*shared.Semester, error) {
	fields, err := semesterFields(req)
	if err != nil {
		return nil, err
	}

	var semester shared.Semester
	if err := s.replaceByID(ctx, s.semestersCol, id, "semester", fields, &semester); err != nil {
		return nil, err
	}
	return &semester, nil
}

func (s *AdminService) DeleteSemester(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.semestersCol, id, "semester")
}

// ============================================================================
// Announcements
// ============================================================================

func announcementFields(req *AnnouncementRequest) (bson.M, error) {
	if req == nil || req.Title == "" || req.Description == "" {
		return nil, status.Error(codes.InvalidArgument, "title and description are required")
	}
	if req.Receiver != shared.ReceiverTeachers && req.Receiver != shared.ReceiverStudents {
		return nil, status.Error(codes.InvalidArgument, "receiver must be teachers or students")
	}
	return bson.M{"title": req.Title, "description": req.Description, "receiver": req.Receiver}, nil
}

func (s *AdminService) CreateAnnouncement(ctx context.Context, req *AnnouncementRequest) (*shared.Announcement, error) {
	if _, err := announcementFields(req); err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now()
	a := shared.Announcement{
		ID:          shared.NewID(),
		Title:       req.Title,
		Description: req.Description,
		Receiver:    req.Receiver,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.announcementsCol.InsertOne(queryCtx, a); err != nil {
		return nil, shared.ToStatus(err, "failed to create announcement")
	}
	return &a, nil
}

// ListAnnouncements returns announcements newest first, optionally for one receiver
func (s *AdminService) ListAnnouncements(ctx context.Context, receiver string) ([]shared.Announcement, error) {
	filter := bson.M{}
	if receiver != "" {
		filter["receiver"] = receiver
	}

	list := []shared.Announcement{}
	if err := shared.FindAll(ctx, s.announcementsCol, filter, &list, shared.BuildFindOptions(0, "created_at", -1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list announcements")
	}
	return list, nil
}

func (s *AdminService) GetAnnouncement(ctx context.Context, id string) (*shared.Announcement, error) {
	var a shared.Announcement
	if err := s.findByID(ctx, s.announcementsCol, id, &a); err != nil {
		return nil, notFound(err, "announcement")
	}
	return &a, nil
}

func (s *AdminService) UpdateAnnouncement(ctx context.Context, id string, req *AnnouncementRequest) (*shared.Announcement, error) {
	fields, err := announcementFields(req)
	if err != nil {
		return nil, err
	}

	var a shared.Announcement
	if err := s.replaceByID(ctx, s.announcementsCol, id, "announcement", fields, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AdminService) DeleteAnnouncement(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.announcementsCol, id, "announcement")
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
