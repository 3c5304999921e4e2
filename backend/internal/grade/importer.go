package grade

import (
	"context"
	"fmt"
	"strings"

	"schoolapi/backend/internal/shared"
)

// Row is one line of a grade sheet. StudentKey is the student's id_number.
// Invalid holds raw cell text for components that were present but not
// numeric.
type Row struct {
	Line       int
	StudentKey string
	Scores     Scores
	Invalid    map[Component]string
}

// ImportResult reports a committed batch.
type ImportResult struct {
	Imported int `json:"imported"`
}

// Import validates every row in memory and then commits all of them in a
// single batched write, or none of them. The returned error is
// shared.ErrMissingDependency (wrapped) when the class or subject does not
// exist, a *shared.BatchError listing every rejected row, or a store error.
func Import(ctx context.Context, repo Repository, classID, subjectID string, rows []Row) (*ImportResult, error) {
	if err := requireScope(ctx, repo, classID, subjectID); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, strings.TrimSpace(row.StudentKey))
	}
	students, err := repo.StudentsByNumber(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("resolve students: %w", err)
	}

	// Bulk upserts merge with stored components, so the total check runs
	// against the merged record. Later rows for the same student see the
	// result of earlier ones.
	existing, err := repo.Find(ctx, Filter{ClassID: classID, SubjectID: subjectID})
	if err != nil {
		return nil, fmt.Errorf("load stored grades: %w", err)
	}
	merged := make(map[string]Scores, len(existing))
	for _, g := range existing {
		merged[g.StudentID] = ScoresOf(g)
	}

	var issues []shared.Issue
	upserts := make([]Upsert, 0, len(rows))

	for i, row := range rows {
		key := keys[i]
		report := func(kind, msg string) {
			issues = append(issues, shared.Issue{Row: row.Line, Key: key, Kind: kind, Message: msg})
		}
		before := len(issues)

		student, ok := students[key]
		if key == "" {
			report(shared.IssueMissingDependency, "row has no student id_number")
		} else if !ok {
			report(shared.IssueMissingDependency, fmt.Sprintf("no student with id_number %q", key))
		}

		for _, c := range Components {
			if raw, bad := row.Invalid[c]; bad {
				report(shared.IssueInvalidValue, fmt.Sprintf("%s is not a number: %q", c, raw))
			}
		}

		// The total check needs every present component to be numeric.
		for _, v := range row.Scores.Check() {
			if v.Kind == shared.IssueTotalExceeded && len(row.Invalid) > 0 {
				continue
			}
			report(v.Kind, v.Message)
		}

		if len(issues) > before {
			continue
		}

		next := merged[student.ID]
		row.Scores.Present(func(c Component, v float64) { next.Set(c, v) })
		if sum := next.Sum(); sum > MaxTotal {
			report(shared.IssueTotalExceeded, fmt.Sprintf("total with stored components would be %g, must not exceed %g", sum, MaxTotal))
			continue
		}
		merged[student.ID] = next

		upserts = append(upserts, Upsert{
			Key:    Key{StudentID: student.ID, ClassID: classID, SubjectID: subjectID},
			Scores: row.Scores,
		})
	}

	if len(issues) > 0 {
		return nil, &shared.BatchError{
			Message: "grade import rejected, no rows were saved",
			Issues:  issues,
		}
	}

	if err := repo.UpsertMany(ctx, upserts); err != nil {
		return nil, err
	}

	return &ImportResult{Imported: len(upserts)}, nil
}

func requireScope(ctx context.Context, repo Repository, classID, subjectID string) error {
	ok, err := repo.ClassExists(ctx, classID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.MissingDependencyf("class %s not found", classID)
	}

	ok, err = repo.SubjectExists(ctx, subjectID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.MissingDependencyf("subject %s not found", subjectID)
	}
	return nil
}
