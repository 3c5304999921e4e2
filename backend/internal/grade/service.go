package grade

import (
	"context"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

// GradeService exposes the grade aggregator to the gateway
type GradeService struct {
	repo Repository
}

// NewGradeService creates a new GradeService instance
func NewGradeService(repo Repository) *GradeService {
	return &GradeService{repo: repo}
}

// GradeView is a stored record plus its freshly computed summary
type GradeView struct {
	ID          string  `json:"id"`
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	IDNumber    string  `json:"id_number"`
	ClassID     string  `json:"class_id"`
	SubjectID   string  `json:"subject_id"`
	Scores      Scores  `json:"scores"`
	Summary     Summary `json:"summary"`
}

// ImportRowRequest is one JSON row of POST /grades/import
type ImportRowRequest struct {
	IDNumber string   `json:"id_number" validate:"required"`
	CW1      *float64 `json:"cw1"`
	Midterm  *float64 `json:"midterm"`
	CW2      *float64 `json:"cw2"`
	Final    *float64 `json:"final"`
}

// ImportRequest is the body of POST /grades/import
type ImportRequest struct {
	ClassID   string             `json:"class_id" validate:"required"`
	SubjectID string             `json:"subject_id" validate:"required"`
	Rows      []ImportRowRequest `json:"rows" validate:"required,min=1,dive"`
}

// SaveRequest is the body of PUT /grades
type SaveRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	ClassID   string   `json:"class_id" validate:"required"`
	SubjectID string   `json:"subject_id" validate:"required"`
	CW1       *float64 `json:"cw1"`
	Midterm   *float64 `json:"midterm"`
	CW2       *float64 `json:"cw2"`
	Final     *float64 `json:"final"`
}

// ============================================================================
// Write paths
// ============================================================================

// ImportRows runs the all-or-nothing import for JSON rows
func (s *GradeService) ImportRows(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	if req == nil || req.ClassID == "" || req.SubjectID == "" {
		return nil, status.Error(codes.InvalidArgument, "class_id and subject_id are required")
	}

	rows := make([]Row, 0, len(req.Rows))
	for i, r := range req.Rows {
		rows = append(rows, Row{
			Line:       i + 1,
			StudentKey: r.IDNumber,
			Scores:     Scores{CW1: r.CW1, Midterm: r.Midterm, CW2: r.CW2, Final: r.Final},
		})
	}

	return s.importRows(ctx, req.ClassID, req.SubjectID, rows)
}

// ImportSheet parses an uploaded workbook and runs the all-or-nothing import
func (s *GradeService) ImportSheet(ctx context.Context, classID, subjectID string, file io.Reader) (*ImportResult, error) {
	if classID == "" || subjectID == "" {
		return nil, status.Error(codes.InvalidArgument, "class_id and subject_id are required")
	}

	rows, err := ParseSheet(file)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unreadable grade sheet: %v", err)
	}

	return s.importRows(ctx, classID, subjectID, rows)
}

func (s *GradeService) importRows(ctx context.Context, classID, subjectID string, rows []Row) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no grade rows supplied")
	}

	result, err := Import(ctx, s.repo, classID, subjectID, rows)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to import grades")
	}

	log.Printf("INFO: imported %d grade rows (class %s, subject %s)", result.Imported, classID, subjectID)
	return result, nil
}

// SaveGrade writes a single record directly. Supplied components replace
// the stored ones; out-of-range values or a sum above 100 are rejected.
func (s *GradeService) SaveGrade(ctx context.Context, req *SaveRequest) (*GradeView, error) {
	if req == nil || req.StudentID == "" || req.ClassID == "" || req.SubjectID == "" {
		return nil, status.Error(codes.InvalidArgument, "student_id, class_id and subject_id are required")
	}

	scores := Scores{CW1: req.CW1, Midterm: req.Midterm, CW2: req.CW2, Final: req.Final}
	if violations := scores.Check(); len(violations) > 0 {
		msgs := make([]string, 0, len(violations))
		for _, v := range violations {
			msgs = append(msgs, v.Message)
		}
		return nil, status.Error(codes.InvalidArgument, strings.Join(msgs, "; "))
	}

	if err := requireScope(ctx, s.repo, req.ClassID, req.SubjectID); err != nil {
		return nil, shared.ToStatus(err, "failed to save grade")
	}

	students, err := s.repo.StudentsByID(ctx, []string{req.StudentID})
	if err != nil {
		return nil, shared.ToStatus(err, "failed to save grade")
	}
	if _, ok := students[req.StudentID]; !ok {
		return nil, status.Errorf(codes.FailedPrecondition, "student %s not found", req.StudentID)
	}

	key := Key{StudentID: req.StudentID, ClassID: req.ClassID, SubjectID: req.SubjectID}
	if err := s.repo.Save(ctx, key, scores); err != nil {
		return nil, shared.ToStatus(err, "failed to save grade")
	}

	views, err := s.views(ctx, Filter{StudentID: key.StudentID, ClassID: key.ClassID, SubjectID: key.SubjectID})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, status.Error(codes.Internal, "saved grade could not be read back")
	}
	return &views[0], nil
}

// DeleteGrades removes every record of a class and subject
func (s *GradeService) DeleteGrades(ctx context.Context, classID, subjectID string) (int64, error) {
	if classID == "" || subjectID == "" {
		return 0, status.Error(codes.InvalidArgument, "class_id and subject_id are required")
	}

	deleted, err := s.repo.DeleteByClassSubject(ctx, classID, subjectID)
	if err != nil {
		return 0, shared.ToStatus(err, "failed to delete grades")
	}
	if deleted == 0 {
		return 0, status.Error(codes.NotFound, "no grades found for this class and subject")
	}
	return deleted, nil
}

// ============================================================================
// Read paths
// ============================================================================

// ClassGrades lists the grades of a class for one subject, sorted by student name
func (s *GradeService) ClassGrades(ctx context.Context, classID, subjectID string) ([]GradeView, error) {
	if classID == "" || subjectID == "" {
		return nil, status.Error(codes.InvalidArgument, "class_id and subject_id are required")
	}
	return s.views(ctx, Filter{ClassID: classID, SubjectID: subjectID})
}

// StudentGrades lists every grade of one student
func (s *GradeService) StudentGrades(ctx context.Context, studentID string) ([]GradeView, error) {
	if studentID == "" {
		return nil, status.Error(codes.InvalidArgument, "student_id is required")
	}
	return s.views(ctx, Filter{StudentID: studentID})
}

func (s *GradeService) views(ctx context.Context, filter Filter) ([]GradeView, error) {
	grades, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to retrieve grades")
	}

	ids := make([]string, 0, len(grades))
	for _, g := range grades {
		ids = append(ids, g.StudentID)
	}
	students, err := s.repo.StudentsByID(ctx, ids)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to retrieve students")
	}

	views := make([]GradeView, 0, len(grades))
	for _, g := range grades {
		scores := ScoresOf(g)
		student := students[g.StudentID]
		views = append(views, GradeView{
			ID:          g.ID,
			StudentID:   g.StudentID,
			StudentName: student.FullName,
			IDNumber:    student.IDNumber,
			ClassID:     g.ClassID,
			SubjectID:   g.SubjectID,
			Scores:      scores,
			Summary:     Summarize(scores),
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].StudentName != views[j].StudentName {
			return strings.ToLower(views[i].StudentName) < strings.ToLower(views[j].StudentName)
		}
		return views[i].SubjectID < views[j].SubjectID
	})
	return views, nil
}

// ============================================================================
// Workbooks
// ============================================================================

// Template builds an empty grade sheet listing the class roster
func (s *GradeService) Template(ctx context.Context, classID string) (*excelize.File, error) {
	if classID == "" {
		return nil, status.Error(codes.InvalidArgument, "class_id is required")
	}

	students, err := s.repo.StudentsInClass(ctx, classID)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to load class roster")
	}

	lines := make([]SheetLine, 0, len(students))
	for _, st := range students {
		lines = append(lines, SheetLine{IDNumber: st.IDNumber, Name: st.FullName})
	}

	f, err := BuildSheet(lines, false)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to build template")
	}
	return f, nil
}

// Export builds a sheet with the stored components and computed summaries
func (s *GradeService) Export(ctx context.Context, classID, subjectID string) (*excelize.File, error) {
	views, err := s.ClassGrades(ctx, classID, subjectID)
	if err != nil {
		return nil, err
	}

	lines := make([]SheetLine, 0, len(views))
	for i := range views {
		v := views[i]
		lines = append(lines, SheetLine{IDNumber: v.IDNumber, Name: v.StudentName, Scores: v.Scores, Summary: &v.Summary})
	}

	f, err := BuildSheet(lines, true)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to build export")
	}
	return f, nil
}
