package grade

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"schoolapi/backend/internal/shared"
)

// Key identifies a grade record. At most one record exists per key.
type Key struct {
	StudentID string
	ClassID   string
	SubjectID string
}

// Upsert writes the supplied components for Key, creating the record when
// absent. Components not supplied keep their stored value.
type Upsert struct {
	Key
	Scores Scores
}

// Filter narrows Find; empty fields are ignored.
type Filter struct {
	StudentID string
	ClassID   string
	SubjectID string
}

// Repository is the persistence boundary of the grade aggregator.
type Repository interface {
	ClassExists(ctx context.Context, classID string) (bool, error)
	SubjectExists(ctx context.Context, subjectID string) (bool, error)

	// StudentsByNumber resolves id_number values; unknown numbers are absent from the map.
	StudentsByNumber(ctx context.Context, idNumbers []string) (map[string]shared.Student, error)
	StudentsByID(ctx context.Context, ids []string) (map[string]shared.Student, error)
	StudentsInClass(ctx context.Context, classID string) ([]shared.Student, error)

	// UpsertMany applies every upsert in one batched write.
	UpsertMany(ctx context.Context, upserts []Upsert) error
	// Save replaces all components of one record and stores their raw sum.
	Save(ctx context.Context, key Key, scores Scores) error
	Find(ctx context.Context, filter Filter) ([]shared.Grade, error)
	DeleteByClassSubject(ctx context.Context, classID, subjectID string) (int64, error)
}

// ScoresOf extracts the component values of a stored record.
func ScoresOf(g shared.Grade) Scores {
	return Scores{CW1: g.CW1, Midterm: g.Midterm, CW2: g.CW2, Final: g.Final}
}

// ============================================================================
// MongoDB implementation
// ============================================================================

// MongoRepository stores grades in the grades collection
type MongoRepository struct {
	gradesCol   *mongo.Collection
	studentsCol *mongo.Collection
	classesCol  *mongo.Collection
	subjectsCol *mongo.Collection
}

// NewMongoRepository creates a new MongoRepository instance
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		gradesCol:   db.Collection(shared.CollGrades),
		studentsCol: db.Collection(shared.CollStudents),
		classesCol:  db.Collection(shared.CollClasses),
		subjectsCol: db.Collection(shared.CollSubjects),
	}
}

func (r *MongoRepository) ClassExists(ctx context.Context, classID string) (bool, error) {
	return shared.Exists(ctx, r.classesCol, bson.M{"_id": classID})
}

func (r *MongoRepository) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	return shared.Exists(ctx, r.subjectsCol, bson.M{"_id": subjectID})
}

func (r *MongoRepository) StudentsByNumber(ctx context.Context, idNumbers []string) (map[string]shared.Student, error) {
	var students []shared.Student
	if err := shared.FindAll(ctx, r.studentsCol, bson.M{"id_number": bson.M{"$in": idNumbers}}, &students); err != nil {
		return nil, err
	}

	byNumber := make(map[string]shared.Student, len(students))
	for _, s := range students {
		byNumber[s.IDNumber] = s
	}
	return byNumber, nil
}

func (r *MongoRepository) StudentsByID(ctx context.Context, ids []string) (map[string]shared.Student, error) {
	var students []shared.Student
	if err := shared.FindAll(ctx, r.studentsCol, bson.M{"_id": bson.M{"$in": ids}}, &students); err != nil {
		return nil, err
	}

	byID := make(map[string]shared.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}
	return byID, nil
}

func (r *MongoRepository) StudentsInClass(ctx context.Context, classID string) ([]shared.Student, error) {
	var students []shared.Student
	opts := options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}})
	if err := shared.FindAll(ctx, r.studentsCol, bson.M{"class_id": classID}, &students, opts); err != nil {
		return nil, err
	}
	return students, nil
}

// UpsertMany issues one ordered bulkWrite. Each update is a pipeline so the
// stored total is recomputed from the merged document on the server. New
// records get a hex string _id like every other collection.
func (r *MongoRepository) UpsertMany(ctx context.Context, upserts []Upsert) error {
	if len(upserts) == 0 {
		return nil
	}

	now := time.Now()
	total := bson.A{}
	for _, c := range Components {
		total = append(total, bson.M{"$ifNull": bson.A{"$" + string(c), 0}})
	}

	models := make([]mongo.WriteModel, 0, len(upserts))
	for _, u := range upserts {
		set := bson.M{"updated_at": now}
		u.Scores.Present(func(c Component, v float64) {
			set[string(c)] = v
		})

		pipeline := mongo.Pipeline{
			{{Key: "$set", Value: set}},
			{{Key: "$set", Value: bson.M{
				"_id":        bson.M{"$ifNull": bson.A{"$_id", shared.NewID()}},
				"total":      bson.M{"$add": total},
				"created_at": bson.M{"$ifNull": bson.A{"$created_at", now}},
			}}},
		}

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(keyFilter(u.Key)).
			SetUpdate(pipeline).
			SetUpsert(true))
	}

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.gradesCol.BulkWrite(writeCtx, models, options.BulkWrite().SetOrdered(true))
	return err
}

func (r *MongoRepository) Save(ctx context.Context, key Key, scores Scores) error {
	now := time.Now()
	set := bson.M{"total": scores.Sum(), "updated_at": now}
	unset := bson.M{}
	for _, c := range Components {
		if v := scores.Get(c); v != nil {
			set[string(c)] = *v
		} else {
			unset[string(c)] = ""
		}
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": shared.NewID(), "created_at": now},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.gradesCol.UpdateOne(writeCtx, keyFilter(key), update, options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) Find(ctx context.Context, filter Filter) ([]shared.Grade, error) {
	query := bson.M{}
	if filter.StudentID != "" {
		query["student_id"] = filter.StudentID
	}
	if filter.ClassID != "" {
		query["class_id"] = filter.ClassID
	}
	if filter.SubjectID != "" {
		query["subject_id"] = filter.SubjectID
	}

	var grades []shared.Grade
	if err := shared.FindAll(ctx, r.gradesCol, query, &grades); err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *MongoRepository) DeleteByClassSubject(ctx context.Context, classID, subjectID string) (int64, error) {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.gradesCol.DeleteMany(writeCtx, bson.M{"class_id": classID, "subject_id": subjectID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func keyFilter(k Key) bson.M {
	return bson.M{"student_id": k.StudentID, "class_id": k.ClassID, "subject_id": k.SubjectID}
}
