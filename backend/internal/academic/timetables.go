package academic

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

// TimetableRequest is the body of POST and PUT /timetables
type TimetableRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	SubjectID  string `json:"subject_id" validate:"required"`
	FacultyID  string `json:"faculty_id" validate:"required"`
	AcademicID string `json:"academic_id" validate:"required"`
	DayOfWeek  string `json:"day_of_week" validate:"required"`
	StartTime  string `json:"start_time" validate:"required,hhmm"`
	EndTime    string `json:"end_time" validate:"required,hhmm"`
	Date       string `json:"date" validate:"required"`
	Location   string `json:"location" validate:"required"`
}

// TimetableFilter narrows ListTimetables; empty fields match everything
type TimetableFilter struct {
	ClassID    string
	FacultyID  string
	AcademicID string
}

var weekdays = map[string]string{
	"monday": "Monday", "tuesday": "Tuesday", "wednesday": "Wednesday",
	"thursday": "Thursday", "friday": "Friday", "saturday": "Saturday", "sunday": "Sunday",
}

var weekdayOrder = map[string]int{
	"Monday": 1, "Tuesday": 2, "Wednesday": 3, "Thursday": 4, "Friday": 5, "Saturday": 6, "Sunday": 7,
}

// sortSlots orders slots by weekday then start time
func sortSlots(slots []shared.Timetable) {
	sort.SliceStable(slots, func(i, j int) bool {
		di, dj := weekdayOrder[slots[i].DayOfWeek], weekdayOrder[slots[j].DayOfWeek]
		if di != dj {
			return di < dj
		}
		return slots[i].StartTime < slots[j].StartTime
	})
}

// normalizeSlot checks the request and returns the canonical weekday
func normalizeSlot(req *TimetableRequest) (string, error) {
	if req == nil || req.ClassID == "" || req.SubjectID == "" || req.FacultyID == "" ||
		req.AcademicID == "" || req.Date == "" || req.Location == "" {
		return "", status.Error(codes.InvalidArgument, "all timetable fields are required")
	}

	day, ok := weekdays[strings.ToLower(strings.TrimSpace(req.DayOfWeek))]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "invalid day_of_week %q", req.DayOfWeek)
	}

	start, err := shared.ClockMinutes(req.StartTime)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	end, err := shared.ClockMinutes(req.EndTime)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	if start >= end {
		return "", status.Error(codes.InvalidArgument, "start_time must be before end_time")
	}

	return day, nil
}

// findOverlap returns the first slot in existing that overlaps start..end,
// ignoring the slot whose document id is skipID.
func findOverlap(start, end string, existing []shared.Timetable, skipID string) *shared.Timetable {
	for i := range existing {
		if existing[i].ID == skipID {
			continue
		}
		if shared.TimesOverlap(start, end, existing[i].StartTime, existing[i].EndTime) {
			return &existing[i]
		}
	}
	return nil
}

func (s *AcademicService) checkSlot(ctx context.Context, req *TimetableRequest, day, skipID string) error {
	err := s.requireRefs(ctx,
		ref{"class", s.classesCol, req.ClassID},
		ref{"subject", s.subjectsCol, req.SubjectID},
		ref{"faculty", s.facultiesCol, req.FacultyID},
		ref{"academic", s.academicsCol, req.AcademicID},
	)
	if err != nil {
		return err
	}

	var sameDay []shared.Timetable
	if err := shared.FindAll(ctx, s.timetablesCol, bson.M{"class_id": req.ClassID, "day_of_week": day}, &sameDay); err != nil {
		return shared.ToStatus(err, "failed to check timetable overlap")
	}
	if clash := findOverlap(req.StartTime, req.EndTime, sameDay, skipID); clash != nil {
		return status.Errorf(codes.AlreadyExists, "slot overlaps %s (%s-%s) on %s",
			clash.TimetableID, clash.StartTime, clash.EndTime, day)
	}
	return nil
}

// CreateTimetable stores a slot under a freshly allocated TTB identifier
func (s *AcademicService) CreateTimetable(ctx context.Context, req *TimetableRequest) (*shared.Timetable, error) {
	day, err := normalizeSlot(req)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.checkSlot(queryCtx, req, day, ""); err != nil {
		return nil, err
	}

	timetableID, err := s.timetableIDs.Allocate(queryCtx)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to allocate timetable id")
	}

	now := time.Now()
	slot := shared.Timetable{
		ID:          shared.NewID(),
		TimetableID: timetableID,
		ClassID:     req.ClassID,
		SubjectID:   req.SubjectID,
		FacultyID:   req.FacultyID,
		AcademicID:  req.AcademicID,
		DayOfWeek:   day,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Date:        req.Date,
		Location:    req.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.timetablesCol.InsertOne(queryCtx, slot); err != nil {
		return nil, shared.ToStatus(err, "failed to create timetable")
	}

	log.Printf("INFO: created timetable %s for class %s on %s", timetableID, req.ClassID, day)
	return &slot, nil
}

// ListTimetables returns slots ordered by day then start time
func (s *AcademicService) ListTimetables(ctx context.Context, f TimetableFilter) ([]shared.Timetable, error) {
	filter := bson.M{}
	if f.ClassID != "" {
		filter["class_id"] = f.ClassID
	}
	if f.FacultyID != "" {
		filter["faculty_id"] = f.FacultyID
	}
	if f.AcademicID != "" {
		filter["academic_id"] = f.AcademicID
	}

	slots := []shared.Timetable{}
	if err := shared.FindAll(ctx, s.timetablesCol, filter, &slots); err != nil {
		return nil, shared.ToStatus(err, "failed to list timetables")
	}
	sortSlots(slots)
	return slots, nil
}

func (s *AcademicService) GetTimetable(ctx context.Context, id string) (*shared.Timetable, error) {
	var slot shared.Timetable
	if err := s.findByID(ctx, s.timetablesCol, id, "timetable", &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// UpdateTimetable replaces the slot. The TTB identifier is kept.
func (s *AcademicService) UpdateTimetable(ctx context.Context, id string, req *TimetableRequest) (*shared.Timetable, error) {
	day, err := normalizeSlot(req)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.checkSlot(queryCtx, req, day, id); err != nil {
		return nil, err
	}

	var slot shared.Timetable
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.timetablesCol.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"class_id":    req.ClassID,
		"subject_id":  req.SubjectID,
		"faculty_id":  req.FacultyID,
		"academic_id": req.AcademicID,
		"day_of_week": day,
		"start_time":  req.StartTime,
		"end_time":    req.EndTime,
		"date":        req.Date,
		"location":    req.Location,
		"updated_at":  time.Now(),
	}}, opts).Decode(&slot)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to update timetable")
	}
	return &slot, nil
}

func (s *AcademicService) DeleteTimetable(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.timetablesCol, id, "timetable")
}
