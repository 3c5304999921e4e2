package attendance

import (
	"testing"
	"time"

	"schoolapi/backend/internal/shared"
)

func TestSummarize(t *testing.T) {
	records := []shared.Attendance{
		{Status: shared.AttendancePresent},
		{Status: shared.AttendancePresent},
		{Status: shared.AttendanceAbsent},
		{Status: shared.AttendanceLate},
		{Status: shared.AttendanceLeave},
		{Status: "Excused"},
	}

	got := Summarize(records)
	want := Summary{Total: 6, Present: 2, Absent: 1, Late: 1, Leave: 1}
	if got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}

	if empty := Summarize(nil); empty != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", empty)
	}
}

func TestCheckRecords(t *testing.T) {
	enrolled := map[string]bool{"s1": true, "s2": true}

	t.Run("Valid batch", func(t *testing.T) {
		issues := checkRecords([]RecordEntry{
			{StudentID: "s1", Status: "Present"},
			{StudentID: "s2", Status: "Late"},
		}, enrolled, nil)
		if len(issues) != 0 {
			t.Errorf("expected no issues, got %+v", issues)
		}
	})

	t.Run("All problems reported", func(t *testing.T) {
		issues := checkRecords([]RecordEntry{
			{StudentID: "s1", Status: "present"},
			{StudentID: "ghost", Status: "Absent"},
			{StudentID: "s2", Status: "Absent"},
		}, enrolled, map[string]bool{"s2": true})

		want := []struct {
			row  int
			kind string
		}{
			{1, shared.IssueInvalidValue},
			{2, shared.IssueMissingDependency},
			{3, shared.IssueDuplicateKey},
		}
		if len(issues) != len(want) {
			t.Fatalf("got %d issues, want %d: %+v", len(issues), len(want), issues)
		}
		for i, w := range want {
			if issues[i].Row != w.row || issues[i].Kind != w.kind {
				t.Errorf("issue %d = %+v, want row %d kind %s", i, issues[i], w.row, w.kind)
			}
		}
	})

	t.Run("Repeated student", func(t *testing.T) {
		issues := checkRecords([]RecordEntry{
			{StudentID: "s1", Status: "Present"},
			{StudentID: "s1", Status: "Absent"},
		}, enrolled, nil)
		if len(issues) != 1 || issues[0].Row != 2 || issues[0].Kind != shared.IssueDuplicateKey {
			t.Errorf("unexpected issues: %+v", issues)
		}
	})
}

func TestRanges(t *testing.T) {
	day := time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)

	start, end := dayRange(day, day)
	if !start.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dayRange = %v..%v", start, end)
	}

	first, last := monthRange(day)
	if first.Day() != 1 || last.Day() != 31 || last.Month() != time.March {
		t.Errorf("monthRange = %v..%v", first, last)
	}

	_, feb := monthRange(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	if feb.Day() != 29 {
		t.Errorf("leap February ends on %d, want 29", feb.Day())
	}
}
