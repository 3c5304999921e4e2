package attendance

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

// AttendanceService records daily attendance per class and subject
type AttendanceService struct {
	db            *mongo.Database
	attendanceCol *mongo.Collection
	studentsCol   *mongo.Collection
	classesCol    *mongo.Collection
	subjectsCol   *mongo.Collection
	now           func() time.Time
}

// NewAttendanceService creates a new AttendanceService instance
func NewAttendanceService(db *mongo.Database) *AttendanceService {
	return &AttendanceService{
		db:            db,
		attendanceCol: db.Collection(shared.CollAttendance),
		studentsCol:   db.Collection(shared.CollStudents),
		classesCol:    db.Collection(shared.CollClasses),
		subjectsCol:   db.Collection(shared.CollSubjects),
		now:           time.Now,
	}
}

// BulkRequest is the body of POST /attendance
type BulkRequest struct {
	ClassID   string        `json:"class" validate:"required"`
	SubjectID string        `json:"subject" validate:"required"`
	Date      string        `json:"date" validate:"required"`
	Records   []RecordEntry `json:"records" validate:"required,min=1,dive"`
}

// UpdateRequest is the body of PUT /attendance/{id}
type UpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// RecordView is a stored record with the student's name
type RecordView struct {
	shared.Attendance
	StudentName string `json:"student_name"`
	IDNumber    string `json:"id_number"`
}

// Report is a list of records with their summary
type Report struct {
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Records []RecordView `json:"records"`
	Summary Summary      `json:"summary"`
}

// RangeQuery selects records between two days inclusive
type RangeQuery struct {
	ClassID   string
	SubjectID string
	StudentID string
	From      time.Time
	To        time.Time
}

// ============================================================================
// Writes
// ============================================================================

// CreateBulk stores every record of the submission or none of them
func (s *AttendanceService) CreateBulk(ctx context.Context, req *BulkRequest) (int, error) {
	if req == nil || req.ClassID == "" || req.SubjectID == "" {
		return 0, status.Error(codes.InvalidArgument, "class and subject are required")
	}
	if len(req.Records) == 0 {
		return 0, status.Error(codes.InvalidArgument, "records must not be empty")
	}
	day, err := shared.ParseDay(req.Date)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.requireScope(queryCtx, req.ClassID, req.SubjectID); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(req.Records))
	for _, r := range req.Records {
		ids = append(ids, r.StudentID)
	}

	var students []shared.Student
	if err := shared.FindAll(queryCtx, s.studentsCol, bson.M{"_id": bson.M{"$in": ids}, "class_id": req.ClassID}, &students); err != nil {
		return 0, shared.ToStatus(err, "failed to resolve students")
	}
	enrolled := make(map[string]bool, len(students))
	for _, st := range students {
		enrolled[st.ID] = true
	}

	var existing []shared.Attendance
	existingFilter := bson.M{"date": day, "class_id": req.ClassID, "subject_id": req.SubjectID, "student_id": bson.M{"$in": ids}}
	if err := shared.FindAll(queryCtx, s.attendanceCol, existingFilter, &existing); err != nil {
		return 0, shared.ToStatus(err, "failed to check existing attendance")
	}
	recorded := make(map[string]bool, len(existing))
	for _, a := range existing {
		recorded[a.StudentID] = true
	}

	if issues := checkRecords(req.Records, enrolled, recorded); len(issues) > 0 {
		return 0, &shared.BatchError{Message: "attendance rejected, nothing was saved", Issues: issues}
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(req.Records))
	for _, r := range req.Records {
		docs = append(docs, shared.Attendance{
			ID:        shared.NewID(),
			Date:      day,
			Status:    r.Status,
			StudentID: r.StudentID,
			ClassID:   req.ClassID,
			SubjectID: req.SubjectID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if _, err := s.attendanceCol.InsertMany(queryCtx, docs); err != nil {
		return 0, shared.ToStatus(err, "failed to save attendance")
	}

	log.Printf("INFO: recorded attendance for %d students (class %s, %s)", len(docs), req.ClassID, day.Format("2006-01-02"))
	return len(docs), nil
}

func (s *AttendanceService) GetRecord(ctx context.Context, id string) (*shared.Attendance, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "attendance id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var record shared.Attendance
	if err := s.attendanceCol.FindOne(queryCtx, bson.M{"_id": id}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "attendance record not found")
		}
		return nil, shared.ToStatus(err, "failed to retrieve attendance")
	}
	return &record, nil
}

// UpdateRecord changes the status of one record
func (s *AttendanceService) UpdateRecord(ctx context.Context, id string, req *UpdateRequest) (*shared.Attendance, error) {
	if id == "" || req == nil {
		return nil, status.Error(codes.InvalidArgument, "attendance id is required")
	}
	if !shared.IsValidAttendanceStatus(req.Status) {
		return nil, status.Error(codes.InvalidArgument, "status must be Present, Absent, Leave or Late")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var record shared.Attendance
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"status": req.Status, "updated_at": time.Now()}}
	if err := s.attendanceCol.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, update, opts).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "attendance record not found")
		}
		return nil, shared.ToStatus(err, "failed to update attendance")
	}
	return &record, nil
}

func (s *AttendanceService) DeleteRecord(ctx context.Context, id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "attendance id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.attendanceCol.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to delete attendance")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "attendance record not found")
	}
	return nil
}

// ============================================================================
// Reports
// ============================================================================

// Range returns the records selected by q with their summary
func (s *AttendanceService) Range(ctx context.Context, q RangeQuery) (*Report, error) {
	if q.ClassID == "" && q.StudentID == "" {
		return nil, status.Error(codes.InvalidArgument, "class or student is required")
	}
	if q.To.Before(q.From) {
		return nil, status.Error(codes.InvalidArgument, "end date must not be before start date")
	}

	start, end := dayRange(q.From, q.To)
	filter := bson.M{"date": bson.M{"$gte": start, "$lt": end}}
	if q.ClassID != "" {
		filter["class_id"] = q.ClassID
	}
	if q.SubjectID != "" {
		filter["subject_id"] = q.SubjectID
	}
	if q.StudentID != "" {
		filter["student_id"] = q.StudentID
	}

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var records []shared.Attendance
	if err := shared.FindAll(queryCtx, s.attendanceCol, filter, &records, shared.BuildFindOptions(0, "date", 1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list attendance")
	}

	views, err := s.withStudents(queryCtx, records)
	if err != nil {
		return nil, err
	}

	return &Report{
		From:    shared.DayStart(q.From),
		To:      shared.DayStart(q.To),
		Records: views,
		Summary: Summarize(records),
	}, nil
}

// ClassDay returns a class's attendance on one day
func (s *AttendanceService) ClassDay(ctx context.Context, classID, subjectID string, day time.Time) (*Report, error) {
	if classID == "" {
		return nil, status.Error(codes.InvalidArgument, "class is required")
	}
	return s.Range(ctx, RangeQuery{ClassID: classID, SubjectID: subjectID, From: day, To: day})
}

// StudentRange returns one student's attendance between two days
func (s *AttendanceService) StudentRange(ctx context.Context, studentID string, from, to time.Time) (*Report, error) {
	if studentID == "" {
		return nil, status.Error(codes.InvalidArgument, "student is required")
	}
	return s.Range(ctx, RangeQuery{StudentID: studentID, From: from, To: to})
}

// Today returns a class's attendance for the current day
func (s *AttendanceService) Today(ctx context.Context, classID string) (*Report, error) {
	return s.ClassDay(ctx, classID, "", s.now())
}

// Month returns a class's attendance for the current calendar month
func (s *AttendanceService) Month(ctx context.Context, classID string) (*Report, error) {
	if classID == "" {
		return nil, status.Error(codes.InvalidArgument, "class is required")
	}
	from, to := monthRange(s.now())
	return s.Range(ctx, RangeQuery{ClassID: classID, From: from, To: to})
}

func (s *AttendanceService) withStudents(ctx context.Context, records []shared.Attendance) ([]RecordView, error) {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.StudentID)
	}

	var students []shared.Student
	if err := shared.FindAll(ctx, s.studentsCol, bson.M{"_id": bson.M{"$in": ids}}, &students); err != nil {
		return nil, shared.ToStatus(err, "failed to resolve students")
	}
	byID := make(map[string]shared.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	views := make([]RecordView, 0, len(records))
	for _, r := range records {
		st := byID[r.StudentID]
		views = append(views, RecordView{Attendance: r, StudentName: st.FullName, IDNumber: st.IDNumber})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].Date.Equal(views[j].Date) {
			return views[i].Date.Before(views[j].Date)
		}
		return strings.ToLower(views[i].StudentName) < strings.ToLower(views[j].StudentName)
	})
	return views, nil
}

func (s *AttendanceService) requireScope(ctx context.Context, classID, subjectID string) error {
	ok, err := shared.Exists(ctx, s.classesCol, bson.M{"_id": classID})
	if err != nil {
		return shared.ToStatus(err, "failed to check class")
	}
	if !ok {
		return shared.ToStatus(shared.MissingDependencyf("class %s not found", classID), "")
	}

	ok, err = shared.Exists(ctx, s.subjectsCol, bson.M{"_id": subjectID})
	if err != nil {
		return shared.ToStatus(err, "failed to check subject")
	}
	if !ok {
		return shared.ToStatus(shared.MissingDependencyf("subject %s not found", subjectID), "")
	}
	return nil
}
