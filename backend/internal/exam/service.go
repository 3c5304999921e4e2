package exam

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

// ExamService manages exams and their results
type ExamService struct {
	db          *mongo.Database
	examsCol    *mongo.Collection
	resultsCol  *mongo.Collection
	studentsCol *mongo.Collection
	subjectsCol *mongo.Collection
	classesCol  *mongo.Collection
}

// NewExamService creates a new ExamService instance
func NewExamService(db *mongo.Database) *ExamService {
	return &ExamService{
		db:          db,
		examsCol:    db.Collection(shared.CollExams),
		resultsCol:  db.Collection(shared.CollExamResults),
		studentsCol: db.Collection(shared.CollStudents),
		subjectsCol: db.Collection(shared.CollSubjects),
		classesCol:  db.Collection(shared.CollClasses),
	}
}

// ExamRequest is the body of POST and PUT /exams
type ExamRequest struct {
	Title      string `json:"title" validate:"required"`
	ExamType   string `json:"exam_type" validate:"required,exam_type"`
	Date       string `json:"date" validate:"required"`
	AcademicID string `json:"academic_id"`
}

// UpdateMarkRequest is the body of PATCH /exam-results
type UpdateMarkRequest struct {
	ExamID    string  `json:"exam" validate:"required"`
	StudentID string  `json:"student" validate:"required"`
	SubjectID string  `json:"subject" validate:"required"`
	Marks     float64 `json:"marks"`
	Remark    *string `json:"remark"`
}

// ResultView is a stored result with exam and student details
type ResultView struct {
	shared.ExamResult
	ExamTitle   string `json:"exam_title"`
	ExamType    string `json:"exam_type"`
	StudentName string `json:"student_name"`
	IDNumber    string `json:"id_number"`
}

// ResultFilter narrows result listings; empty fields match everything
type ResultFilter struct {
	ExamType   string
	SubjectID  string
	ClassID    string
	AcademicID string
	StudentID  string
}

// ============================================================================
// Exams
// ============================================================================

func examFields(req *ExamRequest) (bson.M, error) {
	if req == nil || strings.TrimSpace(req.Title) == "" {
		return nil, status.Error(codes.InvalidArgument, "title is required")
	}
	examType := strings.ToLower(req.ExamType)
	if !IsValidExamType(examType) {
		return nil, status.Error(codes.InvalidArgument, "exam_type must be cw1, cw2, midterm or final")
	}
	date, err := shared.ParseDay(req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return bson.M{
		"title":       strings.TrimSpace(req.Title),
		"exam_type":   examType,
		"date":        date,
		"academic_id": req.AcademicID,
	}, nil
}

func (s *ExamService) CreateExam(ctx context.Context, req *ExamRequest) (*shared.Exam, error) {
	fields, err := examFields(req)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now()
	exam := shared.Exam{
		ID:         shared.NewID(),
		Title:      fields["title"].(string),
		ExamType:   fields["exam_type"].(string),
		Date:       fields["date"].(time.Time),
		AcademicID: req.AcademicID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.examsCol.InsertOne(queryCtx, exam); err != nil {
		return nil, shared.ToStatus(err, "failed to create exam")
	}
	return &exam, nil
}

// ListExams returns exams newest first, optionally of one type
func (s *ExamService) ListExams(ctx context.Context, examType string) ([]shared.Exam, error) {
	filter := bson.M{}
	if examType != "" {
		filter["exam_type"] = strings.ToLower(examType)
	}

	exams := []shared.Exam{}
	if err := shared.FindAll(ctx, s.examsCol, filter, &exams, shared.BuildFindOptions(0, "date", -1)); err != nil {
		return nil, shared.ToStatus(err, "failed to list exams")
	}
	return exams, nil
}

func (s *ExamService) GetExam(ctx context.Context, id string) (*shared.Exam, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "exam id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var exam shared.Exam
	if err := s.examsCol.FindOne(queryCtx, bson.M{"_id": id}).Decode(&exam); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "exam not found")
		}
		return nil, shared.ToStatus(err, "failed to retrieve exam")
	}
	return &exam, nil
}

// UpdateExam replaces the exam. The type cannot change once results exist.
func (s *ExamService) UpdateExam(ctx context.Context, id string, req *ExamRequest) (*shared.Exam, error) {
	fields, err := examFields(req)
	if err != nil {
		return nil, err
	}

	current, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if current.ExamType != fields["exam_type"] {
		graded, err := shared.Exists(queryCtx, s.resultsCol, bson.M{"exam_id": id})
		if err != nil {
			return nil, shared.ToStatus(err, "failed to check exam results")
		}
		if graded {
			return nil, status.Error(codes.FailedPrecondition, "exam_type cannot change after results were recorded")
		}
	}

	fields["updated_at"] = time.Now()
	var exam shared.Exam
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.examsCol.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).Decode(&exam); err != nil {
		return nil, shared.ToStatus(err, "failed to update exam")
	}
	return &exam, nil
}

// DeleteExam removes the exam together with its results
func (s *ExamService) DeleteExam(ctx context.Context, id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "exam id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.examsCol.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to delete exam")
	}
	if res.DeletedCount == 0 {
		return status.Error(codes.NotFound, "exam not found")
	}

	if _, err := s.resultsCol.DeleteMany(queryCtx, bson.M{"exam_id": id}); err != nil {
		log.Printf("WARN: failed to delete results of exam %s: %v", id, err)
	}
	return nil
}

// ============================================================================
// Results
// ============================================================================

// SubmitResults records every entry or none. Unknown students, students
// that already have a result and out-of-range marks are all reported
// together in a *shared.BatchError.
func (s *ExamService) SubmitResults(ctx context.Context, req *SubmitRequest) (int, error) {
	if req == nil || req.ExamID == "" || req.SubjectID == "" || req.ClassID == "" {
		return 0, status.Error(codes.InvalidArgument, "exam, subject and class are required")
	}
	if len(req.Results) == 0 {
		return 0, status.Error(codes.InvalidArgument, "results must not be empty")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var exam shared.Exam
	if err := s.examsCol.FindOne(queryCtx, bson.M{"_id": req.ExamID}).Decode(&exam); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, shared.ToStatus(shared.MissingDependencyf("exam %s not found", req.ExamID), "")
		}
		return 0, shared.ToStatus(err, "failed to load exam")
	}
	if err := s.requireScope(queryCtx, req.SubjectID, req.ClassID); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(req.Results))
	for _, r := range req.Results {
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

	var existing []shared.ExamResult
	existingFilter := bson.M{"exam_id": req.ExamID, "subject_id": req.SubjectID, "student_id": bson.M{"$in": ids}}
	if err := shared.FindAll(queryCtx, s.resultsCol, existingFilter, &existing); err != nil {
		return 0, shared.ToStatus(err, "failed to check existing results")
	}
	recorded := make(map[string]bool, len(existing))
	for _, r := range existing {
		recorded[r.StudentID] = true
	}

	if issues := checkResults(exam.ExamType, req.Results, enrolled, recorded); len(issues) > 0 {
		return 0, &shared.BatchError{Message: "exam results rejected, nothing was saved", Issues: issues}
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(req.Results))
	for _, r := range req.Results {
		docs = append(docs, shared.ExamResult{
			ID:        shared.NewID(),
			ExamID:    req.ExamID,
			StudentID: r.StudentID,
			SubjectID: req.SubjectID,
			ClassID:   req.ClassID,
			Marks:     r.Marks,
			Remark:    r.Remark,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if _, err := s.resultsCol.InsertMany(queryCtx, docs); err != nil {
		return 0, shared.ToStatus(err, "failed to save exam results")
	}

	log.Printf("INFO: recorded %d results for exam %s (subject %s)", len(docs), req.ExamID, req.SubjectID)
	return len(docs), nil
}

// UpdateMark changes a single recorded mark
func (s *ExamService) UpdateMark(ctx context.Context, req *UpdateMarkRequest) (*shared.ExamResult, error) {
	if req == nil || req.ExamID == "" || req.StudentID == "" || req.SubjectID == "" {
		return nil, status.Error(codes.InvalidArgument, "exam, student and subject are required")
	}

	exam, err := s.GetExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if err := checkMarks(exam.ExamType, req.Marks); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	set := bson.M{"marks": req.Marks, "updated_at": time.Now()}
	if req.Remark != nil {
		set["remark"] = *req.Remark
	}

	var result shared.ExamResult
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"exam_id": req.ExamID, "student_id": req.StudentID, "subject_id": req.SubjectID}
	if err := s.resultsCol.FindOneAndUpdate(queryCtx, filter, bson.M{"$set": set}, opts).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, status.Error(codes.NotFound, "exam result not found")
		}
		return nil, shared.ToStatus(err, "failed to update exam result")
	}
	return &result, nil
}

// Results lists results matching the filter, sorted by student name
func (s *ExamService) Results(ctx context.Context, f ResultFilter) ([]ResultView, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	examFilter := bson.M{}
	if f.ExamType != "" {
		examFilter["exam_type"] = strings.ToLower(f.ExamType)
	}
	if f.AcademicID != "" {
		examFilter["academic_id"] = f.AcademicID
	}

	var exams []shared.Exam
	if err := shared.FindAll(queryCtx, s.examsCol, examFilter, &exams); err != nil {
		return nil, shared.ToStatus(err, "failed to list exams")
	}
	if len(exams) == 0 {
		return []ResultView{}, nil
	}

	examByID := make(map[string]shared.Exam, len(exams))
	examIDs := make([]string, 0, len(exams))
	for _, e := range exams {
		examByID[e.ID] = e
		examIDs = append(examIDs, e.ID)
	}

	resultFilter := bson.M{"exam_id": bson.M{"$in": examIDs}}
	if f.SubjectID != "" {
		resultFilter["subject_id"] = f.SubjectID
	}
	if f.ClassID != "" {
		resultFilter["class_id"] = f.ClassID
	}
	if f.StudentID != "" {
		resultFilter["student_id"] = f.StudentID
	}

	var results []shared.ExamResult
	if err := shared.FindAll(queryCtx, s.resultsCol, resultFilter, &results); err != nil {
		return nil, shared.ToStatus(err, "failed to list exam results")
	}

	studentIDs := make([]string, 0, len(results))
	for _, r := range results {
		studentIDs = append(studentIDs, r.StudentID)
	}
	var students []shared.Student
	if err := shared.FindAll(queryCtx, s.studentsCol, bson.M{"_id": bson.M{"$in": studentIDs}}, &students); err != nil {
		return nil, shared.ToStatus(err, "failed to resolve students")
	}
	studentByID := make(map[string]shared.Student, len(students))
	for _, st := range students {
		studentByID[st.ID] = st
	}

	views := make([]ResultView, 0, len(results))
	for _, r := range results {
		e := examByID[r.ExamID]
		st := studentByID[r.StudentID]
		views = append(views, ResultView{
			ExamResult:  r,
			ExamTitle:   e.Title,
			ExamType:    e.ExamType,
			StudentName: st.FullName,
			IDNumber:    st.IDNumber,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].StudentName != views[j].StudentName {
			return strings.ToLower(views[i].StudentName) < strings.ToLower(views[j].StudentName)
		}
		return views[i].ExamTitle < views[j].ExamTitle
	})
	return views, nil
}

// ResultsByType lists results of one exam type for a subject and class
func (s *ExamService) ResultsByType(ctx context.Context, examType, subjectID, classID string) ([]ResultView, error) {
	if !IsValidExamType(examType) {
		return nil, status.Error(codes.InvalidArgument, "exam_type must be cw1, cw2, midterm or final")
	}
	return s.Results(ctx, ResultFilter{ExamType: examType, SubjectID: subjectID, ClassID: classID})
}

// StudentResults lists one student's results with optional narrowing
func (s *ExamService) StudentResults(ctx context.Context, studentID string, f ResultFilter) ([]ResultView, error) {
	if studentID == "" {
		return nil, status.Error(codes.InvalidArgument, "student id is required")
	}
	f.StudentID = studentID
	return s.Results(ctx, f)
}

func (s *ExamService) requireScope(ctx context.Context, subjectID, classID string) error {
	ok, err := shared.Exists(ctx, s.subjectsCol, bson.M{"_id": subjectID})
	if err != nil {
		return shared.ToStatus(err, "failed to check subject")
	}
	if !ok {
		return shared.ToStatus(shared.MissingDependencyf("subject %s not found", subjectID), "")
	}

	ok, err = shared.Exists(ctx, s.classesCol, bson.M{"_id": classID})
	if err != nil {
		return shared.ToStatus(err, "failed to check class")
	}
	if !ok {
		return shared.ToStatus(shared.MissingDependencyf("class %s not found", classID), "")
	}
	return nil
}
