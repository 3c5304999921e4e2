package exam

import (
	"fmt"
	"math"
	"strings"

	"schoolapi/backend/internal/grade"
	"schoolapi/backend/internal/shared"
)

// ResultEntry is one student's mark in a submission
type ResultEntry struct {
	StudentID string  `json:"student" validate:"required"`
	Marks     float64 `json:"marks"`
	Remark    string  `json:"remark"`
}

// SubmitRequest is the body of POST /exam-results
type SubmitRequest struct {
	ExamID    string        `json:"exam" validate:"required"`
	SubjectID string        `json:"subject" validate:"required"`
	ClassID   string        `json:"class" validate:"required"`
	Results   []ResultEntry `json:"results" validate:"required,min=1,dive"`
}

// MaxMarks returns the upper bound for an exam type, which is the range of
// the grade component of the same name.
func MaxMarks(examType string) (float64, bool) {
	return grade.MaxScore(grade.Component(strings.ToLower(examType)))
}

// IsValidExamType reports whether examType names a grade component
func IsValidExamType(examType string) bool {
	_, ok := MaxMarks(examType)
	return ok
}

func checkMarks(examType string, marks float64) error {
	limit, ok := MaxMarks(examType)
	if !ok {
		return fmt.Errorf("unknown exam type %q", examType)
	}
	if math.IsNaN(marks) || marks < 0 || marks > limit {
		return fmt.Errorf("marks must be between 0 and %g for %s, got %g", limit, examType, marks)
	}
	return nil
}

// checkResults validates a whole submission without touching the store.
// enrolled holds the students of the class; recorded holds students that
// already have a result for this exam and subject. Rows are 1-based.
func checkResults(examType string, entries []ResultEntry, enrolled, recorded map[string]bool) []shared.Issue {
	var issues []shared.Issue
	seen := make(map[string]bool, len(entries))

	for i, e := range entries {
		row := i + 1
		report := func(kind, msg string) {
			issues = append(issues, shared.Issue{Row: row, Key: e.StudentID, Kind: kind, Message: msg})
		}

		switch {
		case e.StudentID == "":
			report(shared.IssueInvalidValue, "student is required")
			continue
		case !enrolled[e.StudentID]:
			report(shared.IssueMissingDependency, fmt.Sprintf("student %s is not enrolled in the class", e.StudentID))
		case recorded[e.StudentID]:
			report(shared.IssueDuplicateKey, fmt.Sprintf("student %s already has a result for this exam and subject", e.StudentID))
		case seen[e.StudentID]:
			report(shared.IssueDuplicateKey, fmt.Sprintf("student %s appears more than once", e.StudentID))
		}
		seen[e.StudentID] = true

		if err := checkMarks(examType, e.Marks); err != nil {
			report(shared.IssueRangeViolation, err.Error())
		}
	}

	return issues
}
