package academic

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/shared"
)

// AcademicRequest is the body of POST and PUT /academics
type AcademicRequest struct {
	AcademicYear string `json:"academic_year" validate:"required"`
	BatchID      string `json:"batch_id" validate:"required"`
	SemesterID   string `json:"semester_id"`
	StartDate    string `json:"start_date" validate:"required"`
	EndDate      string `json:"end_date" validate:"required"`
}

// CreateAcademic stores a session under a freshly allocated ACC identifier
func (s *AcademicService) CreateAcademic(ctx context.Context, req *AcademicRequest) (*shared.Academic, error) {
	if req == nil || strings.TrimSpace(req.AcademicYear) == "" || req.BatchID == "" {
		return nil, status.Error(codes.InvalidArgument, "academic_year and batch_id are required")
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.requireRefs(queryCtx, ref{"batch", s.batchesCol, req.BatchID}); err != nil {
		return nil, err
	}

	year := strings.TrimSpace(req.AcademicYear)
	taken, err := shared.Exists(queryCtx, s.academicsCol, bson.M{"academic_year": year})
	if err != nil {
		return nil, shared.ToStatus(err, "failed to check academic year")
	}
	if taken {
		return nil, status.Errorf(codes.AlreadyExists, "academic year %s already exists", year)
	}

	academicID, err := s.academicIDs.Allocate(queryCtx)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to allocate academic id")
	}

	now := time.Now()
	academic := shared.Academic{
		ID:           shared.NewID(),
		AcademicID:   academicID,
		AcademicYear: year,
		BatchID:      req.BatchID,
		SemesterID:   req.SemesterID,
		StartDate:    start,
		EndDate:      end,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.academicsCol.InsertOne(queryCtx, academic); err != nil {
		return nil, shared.ToStatus(err, "failed to create academic")
	}

	log.Printf("INFO: created academic %s (%s)", academicID, year)
	return &academic, nil
}

func (s *AcademicService) ListAcademics(ctx context.Context) ([]shared.Academic, error) {
	return s.findAcademics(ctx, bson.M{})
}

// ListAcademicsByBatch returns the sessions of one batch
func (s *AcademicService) ListAcademicsByBatch(ctx context.Context, batchID string) ([]shared.Academic, error) {
	if batchID == "" {
		return nil, status.Error(codes.InvalidArgument, "batch id is required")
	}
	return s.findAcademics(ctx, bson.M{"batch_id": batchID})
}

func (s *AcademicService) findAcademics(ctx context.Context, filter bson.M) ([]shared.Academic, error) {
	academics := []shared.Academic{}
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}})
	if err := shared.FindAll(ctx, s.academicsCol, filter, &academics, opts); err != nil {
		return nil, shared.ToStatus(err, "failed to list academics")
	}
	return academics, nil
}

func (s *AcademicService) GetAcademic(ctx context.Context, id string) (*shared.Academic, error) {
	var academic shared.Academic
	if err := s.findByID(ctx, s.academicsCol, id, "academic", &academic); err != nil {
		return nil, err
	}
	return &academic, nil
}

// UpdateAcademic replaces the editable fields. The ACC identifier is kept.
func (s *AcademicService) UpdateAcademic(ctx context.Context, id string, req *AcademicRequest) (*shared.Academic, error) {
	if req == nil || strings.TrimSpace(req.AcademicYear) == "" || req.BatchID == "" {
		return nil, status.Error(codes.InvalidArgument, "academic_year and batch_id are required")
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.requireRefs(queryCtx, ref{"batch", s.batchesCol, req.BatchID}); err != nil {
		return nil, err
	}

	var academic shared.Academic
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.academicsCol.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"academic_year": strings.TrimSpace(req.AcademicYear),
		"batch_id":      req.BatchID,
		"semester_id":   req.SemesterID,
		"start_date":    start,
		"end_date":      end,
		"updated_at":    time.Now(),
	}}, opts).Decode(&academic)
	if err != nil {
		return nil, shared.ToStatus(err, "failed to update academic")
	}
	return &academic, nil
}

func (s *AcademicService) DeleteAcademic(ctx context.Context, id string) error {
	return s.deleteByID(ctx, s.academicsCol, id, "academic")
}
