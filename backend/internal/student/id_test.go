package student

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"schoolapi/backend/internal/sequence"
	"schoolapi/backend/internal/shared"
)

type fakeLookup map[string]string

func (f fakeLookup) FacultyCode(_ context.Context, classID string) (string, error) {
	code, ok := f[classID]
	if !ok {
		return "", shared.MissingDependencyf("class %s not found", classID)
	}
	return code, nil
}

func newAllocator(store *sequence.MemoryCounterStore) *IDAllocator {
	a := NewIDAllocator(fakeLookup{"eng-1": "eng", "med-1": "MED"}, store)
	a.Now = func() time.Time { return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC) }
	return a
}

func TestIDAllocator(t *testing.T) {
	ctx := context.Background()

	t.Run("Formats faculty code, year and padded counter", func(t *testing.T) {
		a := newAllocator(sequence.NewMemoryCounterStore())

		want := []string{"ENG25STU001", "ENG25STU002", "MED25STU003"}
		classes := []string{"eng-1", "eng-1", "med-1"}
		for i, classID := range classes {
			got, err := a.Allocate(ctx, classID)
			if err != nil {
				t.Fatalf("Allocate(%s) failed: %v", classID, err)
			}
			if got != want[i] {
				t.Errorf("Allocate(%s) = %s, want %s", classID, got, want[i])
			}
		}
	})

	t.Run("Missing dependency leaves the counter untouched", func(t *testing.T) {
		store := sequence.NewMemoryCounterStore()
		a := newAllocator(store)

		if _, err := a.Allocate(ctx, "unknown"); !errors.Is(err, shared.ErrMissingDependency) {
			t.Fatalf("expected ErrMissingDependency, got %v", err)
		}
		if _, err := a.Allocate(ctx, ""); !errors.Is(err, shared.ErrMissingDependency) {
			t.Fatalf("expected ErrMissingDependency for empty class, got %v", err)
		}

		seq, _ := store.Current(ctx, sequence.PurposeStudent)
		if seq != 0 {
			t.Errorf("counter advanced to %d on failed allocation", seq)
		}

		got, err := a.Allocate(ctx, "eng-1")
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if got != "ENG25STU001" {
			t.Errorf("first id after failures = %s, want ENG25STU001", got)
		}
	})

	t.Run("Concurrent allocations are distinct", func(t *testing.T) {
		a := newAllocator(sequence.NewMemoryCounterStore())

		const n = 100
		var wg sync.WaitGroup
		var mu sync.Mutex
		seen := make(map[string]bool, n)

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := a.Allocate(ctx, "eng-1")
				if err != nil {
					t.Errorf("Allocate failed: %v", err)
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(seen) != n {
			t.Errorf("got %d distinct ids, want %d", len(seen), n)
		}
		if !seen["ENG25STU100"] {
			t.Error("expected ENG25STU100 among allocated ids")
		}
	})
}
