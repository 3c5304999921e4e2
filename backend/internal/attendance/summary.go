package attendance

import (
	"fmt"
	"time"

	"schoolapi/backend/internal/shared"
)

// Summary counts records per status
type Summary struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Leave   int `json:"leave"`
}

// Summarize tallies records by status. Unknown statuses only count toward Total.
func Summarize(records []shared.Attendance) Summary {
	var sum Summary
	for _, r := range records {
		sum.Total++
		switch r.Status {
		case shared.AttendancePresent:
			sum.Present++
		case shared.AttendanceAbsent:
			sum.Absent++
		case shared.AttendanceLate:
			sum.Late++
		case shared.AttendanceLeave:
			sum.Leave++
		}
	}
	return sum
}

// RecordEntry is one student's status in a bulk submission
type RecordEntry struct {
	StudentID string `json:"student" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// checkRecords validates a bulk submission without touching the store.
// enrolled holds the students of the class; recorded holds students that
// already have a record for the day, class and subject. Rows are 1-based.
func checkRecords(entries []RecordEntry, enrolled, recorded map[string]bool) []shared.Issue {
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
		case !enrolled[e.StudentID]:
			report(shared.IssueMissingDependency, fmt.Sprintf("student %s is not enrolled in the class", e.StudentID))
		case recorded[e.StudentID]:
			report(shared.IssueDuplicateKey, fmt.Sprintf("student %s already has attendance for this day", e.StudentID))
		case seen[e.StudentID]:
			report(shared.IssueDuplicateKey, fmt.Sprintf("student %s appears more than once", e.StudentID))
		}
		seen[e.StudentID] = true

		if !shared.IsValidAttendanceStatus(e.Status) {
			report(shared.IssueInvalidValue, fmt.Sprintf("status %q must be Present, Absent, Leave or Late", e.Status))
		}
	}

	return issues
}

// dayRange returns [start of from, start of the day after to)
func dayRange(from, to time.Time) (time.Time, time.Time) {
	return shared.DayStart(from), shared.DayStart(to).AddDate(0, 0, 1)
}

// monthRange returns the first and last day of the month containing t
func monthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.UTC().Year(), t.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}
