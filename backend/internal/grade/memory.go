package grade

import (
	"context"
	"sort"
	"sync"
	"time"

	"schoolapi/backend/internal/shared"
)

// MemoryRepository is a mutex-guarded Repository used by tests and local
// tooling. It applies the same merge and total rules as MongoRepository.
type MemoryRepository struct {
	mu       sync.Mutex
	classes  map[string]bool
	subjects map[string]bool
	students map[string]shared.Student
	grades   map[Key]*shared.Grade

	// BatchWrites counts UpsertMany calls that wrote at least one row.
	BatchWrites int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		classes:  make(map[string]bool),
		subjects: make(map[string]bool),
		students: make(map[string]shared.Student),
		grades:   make(map[Key]*shared.Grade),
	}
}

func (r *MemoryRepository) AddClass(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[id] = true
}

func (r *MemoryRepository) AddSubject(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects[id] = true
}

func (r *MemoryRepository) AddStudent(s shared.Student) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[s.ID] = s
}

func (r *MemoryRepository) ClassExists(_ context.Context, classID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classes[classID], nil
}

func (r *MemoryRepository) SubjectExists(_ context.Context, subjectID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subjects[subjectID], nil
}

func (r *MemoryRepository) StudentsByNumber(_ context.Context, idNumbers []string) (map[string]shared.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]bool, len(idNumbers))
	for _, n := range idNumbers {
		wanted[n] = true
	}

	found := make(map[string]shared.Student)
	for _, s := range r.students {
		if wanted[s.IDNumber] {
			found[s.IDNumber] = s
		}
	}
	return found, nil
}

func (r *MemoryRepository) StudentsByID(_ context.Context, ids []string) (map[string]shared.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := make(map[string]shared.Student)
	for _, id := range ids {
		if s, ok := r.students[id]; ok {
			found[id] = s
		}
	}
	return found, nil
}

func (r *MemoryRepository) StudentsInClass(_ context.Context, classID string) ([]shared.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []shared.Student
	for _, s := range r.students {
		if s.ClassID == classID {
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].FullName < list[j].FullName })
	return list, nil
}

func (r *MemoryRepository) UpsertMany(_ context.Context, upserts []Upsert) error {
	if len(upserts) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, u := range upserts {
		g := r.record(u.Key, now)
		merged := ScoresOf(*g)
		u.Scores.Present(func(c Component, v float64) { merged.Set(c, v) })
		apply(g, merged, now)
	}
	r.BatchWrites++
	return nil
}

func (r *MemoryRepository) Save(_ context.Context, key Key, scores Scores) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	apply(r.record(key, now), scores, now)
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, filter Filter) ([]shared.Grade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []shared.Grade
	for k, g := range r.grades {
		if filter.StudentID != "" && k.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && k.ClassID != filter.ClassID {
			continue
		}
		if filter.SubjectID != "" && k.SubjectID != filter.SubjectID {
			continue
		}
		list = append(list, *g)
	}
	return list, nil
}

func (r *MemoryRepository) DeleteByClassSubject(_ context.Context, classID, subjectID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for k := range r.grades {
		if k.ClassID == classID && k.SubjectID == subjectID {
			delete(r.grades, k)
			deleted++
		}
	}
	return deleted, nil
}

// record returns the stored grade for key, creating it when absent.
// Callers hold r.mu.
func (r *MemoryRepository) record(key Key, now time.Time) *shared.Grade {
	g, ok := r.grades[key]
	if !ok {
		g = &shared.Grade{
			ID:        shared.NewID(),
			StudentID: key.StudentID,
			ClassID:   key.ClassID,
			SubjectID: key.SubjectID,
			CreatedAt: now,
		}
		r.grades[key] = g
	}
	return g
}

func apply(g *shared.Grade, s Scores, now time.Time) {
	var stored Scores
	s.Present(func(c Component, v float64) { stored.Set(c, v) })
	g.CW1, g.Midterm, g.CW2, g.Final = stored.CW1, stored.Midterm, stored.CW2, stored.Final
	g.Total = stored.Sum()
	g.UpdatedAt = now
}
