package student

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"schoolapi/backend/internal/sequence"
	"schoolapi/backend/internal/shared"
)

// FacultyCodeLookup resolves the faculty code that prefixes the identifiers
// of students enrolled in a class.
type FacultyCodeLookup interface {
	FacultyCode(ctx context.Context, classID string) (string, error)
}

// MongoFacultyLookup walks class -> faculty -> code
type MongoFacultyLookup struct {
	classesCol   *mongo.Collection
	facultiesCol *mongo.Collection
}

func NewMongoFacultyLookup(db *mongo.Database) *MongoFacultyLookup {
	return &MongoFacultyLookup{
		classesCol:   db.Collection(shared.CollClasses),
		facultiesCol: db.Collection(shared.CollFaculties),
	}
}

func (l *MongoFacultyLookup) FacultyCode(ctx context.Context, classID string) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var class shared.Class
	if err := l.classesCol.FindOne(queryCtx, bson.M{"_id": classID}).Decode(&class); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", shared.MissingDependencyf("class %s not found", classID)
		}
		return "", fmt.Errorf("find class: %w", err)
	}
	if class.FacultyID == "" {
		return "", shared.MissingDependencyf("class %s has no faculty", classID)
	}

	var faculty shared.Faculty
	if err := l.facultiesCol.FindOne(queryCtx, bson.M{"_id": class.FacultyID}).Decode(&faculty); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", shared.MissingDependencyf("faculty %s of class %s not found", class.FacultyID, classID)
		}
		return "", fmt.Errorf("find faculty: %w", err)
	}
	if strings.TrimSpace(faculty.Code) == "" {
		return "", shared.MissingDependencyf("faculty %s has no code", faculty.ID)
	}

	return faculty.Code, nil
}

// IDAllocator issues <FACULTYCODE><YY>STU<NNN> identifiers from the
// studentId counter. The faculty code is resolved first so a missing
// dependency never consumes a counter value.
type IDAllocator struct {
	Lookup FacultyCodeLookup
	Store  sequence.CounterStore
	Now    func() time.Time
}

func NewIDAllocator(lookup FacultyCodeLookup, store sequence.CounterStore) *IDAllocator {
	return &IDAllocator{Lookup: lookup, Store: store, Now: time.Now}
}

func (a *IDAllocator) Allocate(ctx context.Context, classID string) (string, error) {
	if classID == "" {
		return "", shared.MissingDependencyf("class is required to derive a student id")
	}

	code, err := a.Lookup.FacultyCode(ctx, classID)
	if err != nil {
		return "", err
	}

	n, err := a.Store.Next(ctx, sequence.PurposeStudent)
	if err != nil {
		return "", fmt.Errorf("allocate student id: %w", err)
	}

	return sequence.StudentID(code, a.Now().Year(), n), nil
}
