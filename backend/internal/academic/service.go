// Package academic manages the teaching calendar: academic sessions,
// timetable slots, classes and subjects.
package academic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/sequence"
	"schoolapi/backend/internal/shared"
)

// AcademicService owns academics, timetables, classes and subjects
type AcademicService struct {
	db            *mongo.Database
	config        *shared.ServiceConfig
	academicsCol  *mongo.Collection
	timetablesCol *mongo.Collection
	classesCol    *mongo.Collection
	subjectsCol   *mongo.Collection
	studentsCol   *mongo.Collection
	batchesCol    *mongo.Collection
	facultiesCol  *mongo.Collection
	academicIDs   sequence.Allocator
	timetableIDs  sequence.Allocator
}

// NewAcademicService wires the ACC and TTB allocators with the configured policy
func NewAcademicService(db *mongo.Database, config *shared.ServiceConfig, counters sequence.CounterStore) (*AcademicService, error) {
	s := &AcademicService{
		db:            db,
		config:        config,
		academicsCol:  db.Collection(shared.CollAcademics),
		timetablesCol: db.Collection(shared.CollTimetables),
		classesCol:    db.Collection(shared.CollClasses),
		subjectsCol:   db.Collection(shared.CollSubjects),
		studentsCol:   db.Collection(shared.CollStudents),
		batchesCol:    db.Collection(shared.CollBatches),
		facultiesCol:  db.Collection(shared.CollFaculties),
	}

	var err error
	s.academicIDs, err = sequence.New(config.IDAllocation, counters, sequence.PurposeAcademic, "ACC",
		sequence.FieldExists(s.academicsCol, "academic_id"))
	if err != nil {
		return nil, err
	}
	s.timetableIDs, err = sequence.New(config.IDAllocation, counters, sequence.PurposeTimetable, "TTB",
		sequence.FieldExists(s.timetablesCol, "timetable_id"))
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *AcademicService) findByID(ctx context.Context, col *mongo.Collection, id, resource string, out interface{}) error {
	if id == "" {
		return status.Errorf(codes.InvalidArgument, "%s id is required", resource)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := col.FindOne(queryCtx, bson.M{"_id": id}).Decode(out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return status.Errorf(codes.NotFound, "%s not found", resource)
		}
		return shared.ToStatus(err, "failed to retrieve "+resource)
	}
	return nil
}

func (s *AcademicService) deleteByID(ctx context.Context, col *mongo.Collection, id, resource string) error {
	if id == "" {
		return status.Errorf(codes.InvalidArgument, "%s id is required", resource)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := col.DeleteOne(queryCtx, bson.M{"_id": id})
	if err != nil {
		return shared.ToStatus(err, "failed to delete "+resource)
	}
	if res.DeletedCount == 0 {
		return status.Errorf(codes.NotFound, "%s not found", resource)
	}
	return nil
}

// requireRefs checks that every referenced document exists. A missing one
// is a failed precondition naming the field.
func (s *AcademicService) requireRefs(ctx context.Context, refs ...ref) error {
	for _, r := range refs {
		if r.id == "" {
			continue
		}
		ok, err := shared.Exists(ctx, r.col, bson.M{"_id": r.id})
		if err != nil {
			return shared.ToStatus(err, "failed to check "+r.field)
		}
		if !ok {
			return shared.ToStatus(shared.MissingDependencyf("%s %s not found", r.field, r.id), "")
		}
	}
	return nil
}

type ref struct {
	field string
	col   *mongo.Collection
	id    string
}

func parseRange(startValue, endValue string) (time.Time, time.Time, error) {
	start, err := shared.ParseDay(startValue)
	if err != nil {
		return time.Time{}, time.Time{}, status.Error(codes.InvalidArgument, fmt.Sprintf("start_date: %v", err))
	}
	end, err := shared.ParseDay(endValue)
	if err != nil {
		return time.Time{}, time.Time{}, status.Error(codes.InvalidArgument, fmt.Sprintf("end_date: %v", err))
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, status.Error(codes.InvalidArgument, "end_date must not be before start_date")
	}
	return start, end, nil
}
