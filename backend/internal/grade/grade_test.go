package grade

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

func f(v float64) *float64 { return &v }

// newFixture seeds one class, one subject and three students.
func newFixture() *MemoryRepository {
	repo := NewMemoryRepository()
	repo.AddClass("class-1")
	repo.AddSubject("math")
	repo.AddStudent(shared.Student{ID: "s1", FullName: "Amina Yusuf", IDNumber: "ENG25STU001", ClassID: "class-1"})
	repo.AddStudent(shared.Student{ID: "s2", FullName: "Bashir Ali", IDNumber: "ENG25STU002", ClassID: "class-1"})
	repo.AddStudent(shared.Student{ID: "s3", FullName: "Caaliya Omar", IDNumber: "ENG25STU003", ClassID: "class-1"})
	return repo
}

func issueKinds(t *testing.T, err error) []string {
	t.Helper()
	var batch *shared.BatchError
	require.True(t, errors.As(err, &batch), "expected *shared.BatchError, got %v", err)
	kinds := make([]string, 0, len(batch.Issues))
	for _, issue := range batch.Issues {
		kinds = append(kinds, issue.Kind)
	}
	return kinds
}

func TestScoresCheck(t *testing.T) {
	tests := []struct {
		name   string
		scores Scores
		kinds  []string
	}{
		{"all valid", Scores{CW1: f(10), Midterm: f(30), CW2: f(10), Final: f(50)}, nil},
		{"partial valid", Scores{Final: f(60)}, nil},
		{"cw1 above range", Scores{CW1: f(11)}, []string{shared.IssueRangeViolation}},
		{"negative midterm", Scores{Midterm: f(-1)}, []string{shared.IssueRangeViolation}},
		{"final above range", Scores{Final: f(61)}, []string{shared.IssueRangeViolation}},
		{"sum above 100", Scores{CW1: f(10), Midterm: f(30), CW2: f(10), Final: f(60)}, []string{shared.IssueTotalExceeded}},
		{"range and total together", Scores{CW1: f(40), Midterm: f(30), Final: f(60)}, []string{shared.IssueRangeViolation, shared.IssueTotalExceeded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kinds []string
			for _, v := range tt.scores.Check() {
				kinds = append(kinds, v.Kind)
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Run("Missing components count as zero", func(t *testing.T) {
		sum := Summarize(Scores{Midterm: f(20), Final: f(41)})
		assert.Equal(t, 0.0, sum.CW1)
		assert.Equal(t, 61.0, sum.Total)
		assert.Equal(t, 15.0, sum.Average)
	})

	t.Run("Clamped total is idempotent", func(t *testing.T) {
		scores := Scores{CW1: f(10), Midterm: f(30), CW2: f(10), Final: f(55)}
		first := Summarize(scores)
		second := Summarize(scores)

		assert.Equal(t, 100.0, first.Total)
		assert.Equal(t, 25.0, first.Average)
		assert.Equal(t, first, second)
		assert.Equal(t, 55.0, *scores.Final, "summarize must not touch the input")
	})

	t.Run("Average rounds half away from zero", func(t *testing.T) {
		assert.Equal(t, 15.0, Summarize(Scores{Final: f(50), CW1: f(8)}).Average)
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid batch commits in one write", func(t *testing.T) {
		repo := newFixture()
		rows := []Row{
			{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{CW1: f(8), Midterm: f(25)}},
			{Line: 3, StudentKey: "ENG25STU002", Scores: Scores{CW1: f(9), Final: f(50)}},
		}

		result, err := Import(ctx, repo, "class-1", "math", rows)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Imported)
		assert.Equal(t, 1, repo.BatchWrites)

		grades, _ := repo.Find(ctx, Filter{ClassID: "class-1", SubjectID: "math"})
		assert.Len(t, grades, 2)
	})

	t.Run("Out of range cw1 rejects the whole batch", func(t *testing.T) {
		repo := newFixture()
		rows := []Row{
			{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{CW1: f(11)}},
			{Line: 3, StudentKey: "ENG25STU002", Scores: Scores{CW1: f(9), Final: f(50)}},
		}

		_, err := Import(ctx, repo, "class-1", "math", rows)
		assert.Equal(t, []string{shared.IssueRangeViolation}, issueKinds(t, err))
		assert.Equal(t, 0, repo.BatchWrites)

		grades, _ := repo.Find(ctx, Filter{})
		assert.Empty(t, grades, "no row may be persisted")
	})

	t.Run("Sum of 110 is total exceeded", func(t *testing.T) {
		repo := newFixture()
		rows := []Row{{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{CW1: f(10), Midterm: f(30), CW2: f(10), Final: f(60)}}}

		_, err := Import(ctx, repo, "class-1", "math", rows)
		assert.Equal(t, []string{shared.IssueTotalExceeded}, issueKinds(t, err))
	})

	t.Run("Unknown student is reported and every row is checked", func(t *testing.T) {
		repo := newFixture()
		rows := []Row{
			{Line: 2, StudentKey: "ENG25STU999", Scores: Scores{CW1: f(5)}},
			{Line: 3, StudentKey: "ENG25STU002", Scores: Scores{Midterm: f(31)}},
			{Line: 4, StudentKey: "ENG25STU003", Scores: Scores{Final: f(40)}},
		}

		_, err := Import(ctx, repo, "class-1", "math", rows)
		var batch *shared.BatchError
		require.True(t, errors.As(err, &batch))
		require.Len(t, batch.Issues, 2)
		assert.Equal(t, 2, batch.Issues[0].Row)
		assert.Equal(t, shared.IssueMissingDependency, batch.Issues[0].Kind)
		assert.Equal(t, "ENG25STU999", batch.Issues[0].Key)
		assert.Equal(t, 3, batch.Issues[1].Row)
		assert.Equal(t, shared.IssueRangeViolation, batch.Issues[1].Kind)
	})

	t.Run("Non-numeric cell skips the total check", func(t *testing.T) {
		repo := newFixture()
		rows := []Row{{
			Line:       2,
			StudentKey: "ENG25STU001",
			Scores:     Scores{CW1: f(10), Midterm: f(30), Final: f(60)},
			Invalid:    map[Component]string{CW2: "ten"},
		}}

		_, err := Import(ctx, repo, "class-1", "math", rows)
		assert.Equal(t, []string{shared.IssueInvalidValue}, issueKinds(t, err))
	})

	t.Run("Missing class fails before any row", func(t *testing.T) {
		repo := newFixture()
		_, err := Import(ctx, repo, "class-x", "math", []Row{{Line: 2, StudentKey: "ENG25STU001"}})
		assert.ErrorIs(t, err, shared.ErrMissingDependency)
	})

	t.Run("Row without id_number rejects the batch", func(t *testing.T) {
		repo := newFixture()
		rows := []Row{
			{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{CW1: f(5)}},
			{Line: 3, StudentKey: "", Scores: Scores{CW1: f(9)}},
		}

		_, err := Import(ctx, repo, "class-1", "math", rows)
		assert.Equal(t, []string{shared.IssueMissingDependency}, issueKinds(t, err))
		assert.Equal(t, 0, repo.BatchWrites)
	})

	t.Run("Merged total above 100 is rejected", func(t *testing.T) {
		repo := newFixture()

		_, err := Import(ctx, repo, "class-1", "math", []Row{{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{Midterm: f(30), Final: f(60)}}})
		require.NoError(t, err)

		_, err = Import(ctx, repo, "class-1", "math", []Row{{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{CW1: f(10), CW2: f(10)}}})
		assert.Equal(t, []string{shared.IssueTotalExceeded}, issueKinds(t, err))

		grades, _ := repo.Find(ctx, Filter{StudentID: "s1"})
		require.Len(t, grades, 1)
		assert.Equal(t, 90.0, grades[0].Total)
		assert.Nil(t, grades[0].CW1)
	})

	t.Run("Repeated student in one batch merges in order", func(t *testing.T) {
		repo := newFixture()
		rows := []Row{
			{Line: 2, StudentKey: "ENG25STU002", Scores: Scores{Final: f(60)}},
			{Line: 3, StudentKey: "ENG25STU002", Scores: Scores{Midterm: f(30), CW1: f(10), CW2: f(5)}},
		}

		_, err := Import(ctx, repo, "class-1", "math", rows)
		assert.Equal(t, []string{shared.IssueTotalExceeded}, issueKinds(t, err))
		assert.Equal(t, 0, repo.BatchWrites)
	})

	t.Run("Resubmitting a triple updates the same record", func(t *testing.T) {
		repo := newFixture()

		_, err := Import(ctx, repo, "class-1", "math", []Row{{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{CW1: f(5), Midterm: f(20)}}})
		require.NoError(t, err)
		_, err = Import(ctx, repo, "class-1", "math", []Row{{Line: 2, StudentKey: "ENG25STU001", Scores: Scores{CW1: f(7), Final: f(45)}}})
		require.NoError(t, err)

		grades, _ := repo.Find(ctx, Filter{StudentID: "s1"})
		require.Len(t, grades, 1)
		g := grades[0]
		assert.Equal(t, 7.0, *g.CW1)
		assert.Equal(t, 20.0, *g.Midterm, "components not resubmitted keep their value")
		assert.Equal(t, 45.0, *g.Final)
		assert.Nil(t, g.CW2)
		assert.Equal(t, 72.0, g.Total)
	})
}

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	for r, cols := range rows {
		for c, v := range cols {
			name, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, wb.SetCellValue(sheet, name, v))
		}
	}

	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseSheet(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"ID Number", "Name", "CW1", "Midterm", "CW2", "Final"},
		{"ENG25STU001", "Amina Yusuf", 8, 25, "", 50},
		{"", "blank key row", 1, 1, 1, 1},
		{"ENG25STU002", "Bashir Ali", "abc", 20},
		{"", "notes only"},
	})

	rows, err := ParseSheet(buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "ENG25STU001", first.StudentKey)
	assert.Equal(t, 8.0, *first.Scores.CW1)
	assert.Equal(t, 25.0, *first.Scores.Midterm)
	assert.Nil(t, first.Scores.CW2)
	assert.Equal(t, 50.0, *first.Scores.Final)

	keyless := rows[1]
	assert.Equal(t, 3, keyless.Line)
	assert.Empty(t, keyless.StudentKey)
	assert.Equal(t, 1.0, *keyless.Scores.Final)

	third := rows[2]
	assert.Equal(t, 4, third.Line)
	assert.Equal(t, "abc", third.Invalid[CW1])
	assert.Nil(t, third.Scores.Final)
}

func TestGradeService(t *testing.T) {
	ctx := context.Background()

	t.Run("Sheet upload then class listing", func(t *testing.T) {
		repo := newFixture()
		svc := NewGradeService(repo)

		buf := buildWorkbook(t, [][]interface{}{
			{"ID Number", "Name", "CW1", "Midterm", "CW2", "Final"},
			{"ENG25STU002", "Bashir Ali", 10, 30, 10, 50},
			{"ENG25STU001", "Amina Yusuf", 5, 15, 5, 30},
		})

		result, err := svc.ImportSheet(ctx, "class-1", "math", buf)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Imported)

		views, err := svc.ClassGrades(ctx, "class-1", "math")
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "Amina Yusuf", views[0].StudentName)
		assert.Equal(t, 55.0, views[0].Summary.Total)
		assert.Equal(t, 14.0, views[0].Summary.Average)
		assert.Equal(t, 100.0, views[1].Summary.Total)
	})

	t.Run("Rejected upload maps to a batch error", func(t *testing.T) {
		svc := NewGradeService(newFixture())
		_, err := svc.ImportRows(ctx, &ImportRequest{
			ClassID:   "class-1",
			SubjectID: "math",
			Rows:      []ImportRowRequest{{IDNumber: "ENG25STU001", CW1: f(11)}},
		})
		var batch *shared.BatchError
		assert.True(t, errors.As(err, &batch))
	})

	t.Run("Missing subject is a failed precondition", func(t *testing.T) {
		svc := NewGradeService(newFixture())
		_, err := svc.ImportRows(ctx, &ImportRequest{
			ClassID:   "class-1",
			SubjectID: "history",
			Rows:      []ImportRowRequest{{IDNumber: "ENG25STU001", CW1: f(5)}},
		})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("Direct save stores the raw sum and replaces components", func(t *testing.T) {
		repo := newFixture()
		svc := NewGradeService(repo)

		_, err := svc.SaveGrade(ctx, &SaveRequest{StudentID: "s3", ClassID: "class-1", SubjectID: "math", CW1: f(9), Final: f(52)})
		require.NoError(t, err)

		view, err := svc.SaveGrade(ctx, &SaveRequest{StudentID: "s3", ClassID: "class-1", SubjectID: "math", Midterm: f(28), Final: f(52)})
		require.NoError(t, err)
		assert.Nil(t, view.Scores.CW1)
		assert.Equal(t, 80.0, view.Summary.Total)

		grades, _ := repo.Find(ctx, Filter{StudentID: "s3"})
		require.Len(t, grades, 1)
		assert.Equal(t, 80.0, grades[0].Total)
	})

	t.Run("Direct save rejects a sum above 100", func(t *testing.T) {
		svc := NewGradeService(newFixture())
		_, err := svc.SaveGrade(ctx, &SaveRequest{
			StudentID: "s1", ClassID: "class-1", SubjectID: "math",
			CW1: f(10), Midterm: f(30), CW2: f(10), Final: f(60),
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Direct save reports every violation", func(t *testing.T) {
		svc := NewGradeService(newFixture())
		_, err := svc.SaveGrade(ctx, &SaveRequest{
			StudentID: "s1", ClassID: "class-1", SubjectID: "math",
			CW1: f(11), CW2: f(12),
		})
		require.Equal(t, codes.InvalidArgument, status.Code(err))
		msg := status.Convert(err).Message()
		assert.Contains(t, msg, "cw1 must be between 0 and 10")
		assert.Contains(t, msg, "cw2 must be between 0 and 10")
	})

	t.Run("Delete reports not found on empty scope", func(t *testing.T) {
		svc := NewGradeService(newFixture())
		_, err := svc.DeleteGrades(ctx, "class-1", "math")
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("Template lists the roster", func(t *testing.T) {
		svc := NewGradeService(newFixture())
		wb, err := svc.Template(ctx, "class-1")
		require.NoError(t, err)
		defer wb.Close()

		rows, err := wb.GetRows(sheetName)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "ENG25STU001", rows[1][0])
		assert.Equal(t, "Amina Yusuf", rows[1][1])
	})
}
