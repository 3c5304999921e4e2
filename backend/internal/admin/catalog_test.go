package admin

import (
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSemesterFields(t *testing.T) {
	valid := SemesterRequest{
		Department: "Engineering",
		Name:       "Semester 1",
		Title:      "Fall 2025",
		Status:     "running",
		StartDate:  "2025-09-01",
		EndDate:    "2026-01-31",
	}

	t.Run("Valid request parses dates", func(t *testing.T) {
		req := valid
		fields, err := semesterFields(&req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		start := fields["start_date"].(time.Time)
		if start.Year() != 2025 || start.Month() != time.September || start.Day() != 1 {
			t.Errorf("start_date = %v", start)
		}
	})

	tests := []struct {
		name   string
		mutate func(r *SemesterRequest)
	}{
		{"Unknown status", func(r *SemesterRequest) { r.Status = "paused" }},
		{"Missing title", func(r *SemesterRequest) { r.Title = "" }},
		{"Bad start date", func(r *SemesterRequest) { r.StartDate = "01/09/2025" }},
		{"End before start", func(r *SemesterRequest) { r.EndDate = "2025-08-31" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if _, err := semesterFields(&req); status.Code(err) != codes.InvalidArgument {
				t.Errorf("expected InvalidArgument, got %v", err)
			}
		})
	}

	t.Run("Same day start and end is allowed", func(t *testing.T) {
		req := valid
		req.EndDate = req.StartDate
		if _, err := semesterFields(&req); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestAnnouncementFields(t *testing.T) {
	if _, err := announcementFields(&AnnouncementRequest{Title: "Exams", Description: "Week 12", Receiver: "students"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := announcementFields(&AnnouncementRequest{Title: "Exams", Description: "Week 12", Receiver: "parents"}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for unknown receiver, got %v", err)
	}
	if _, err := announcementFields(nil); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for nil request, got %v", err)
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Errorf("nonNil(nil) = %#v, want empty slice", got)
	}
	if got := nonNil([]string{"Civil"}); len(got) != 1 {
		t.Errorf("nonNil kept %d items, want 1", len(got))
	}
}
