package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"schoolapi/backend/internal/shared"
)

// takenSet is an ExistsFunc backed by a set, recording every probe.
type takenSet struct {
	mu     sync.Mutex
	ids    map[string]bool
	probes int
}

func newTakenSet(ids ...string) *takenSet {
	s := &takenSet{ids: make(map[string]bool)}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

func (s *takenSet) exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	return s.ids[id], nil
}

func (s *takenSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = true
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Unpadded("ACC")(7), "ACC7"},
		{Unpadded("TTB")(120), "TTB120"},
		{Padded("STU", 3)(7), "STU007"},
		{Padded("STU", 3)(1234), "STU1234"},
		{StudentID("eng", 2025, 4), "ENG25STU004"},
		{StudentID("MED", 2009, 42), "MED09STU042"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestProbeAllocator(t *testing.T) {
	ctx := context.Background()

	t.Run("First allocation on empty collection is 1", func(t *testing.T) {
		a := NewProbeAllocator("ACC", newTakenSet().exists)
		id, err := a.Allocate(ctx)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if id != "ACC1" {
			t.Errorf("id = %q, want ACC1", id)
		}
	})

	t.Run("N sequential allocations end at N", func(t *testing.T) {
		taken := newTakenSet()
		a := NewProbeAllocator("TTB", taken.exists)

		var last string
		for i := 0; i < 25; i++ {
			id, err := a.Allocate(ctx)
			if err != nil {
				t.Fatalf("Allocate #%d: %v", i+1, err)
			}
			taken.add(id)
			last = id
		}
		if last != "TTB25" {
			t.Errorf("25th id = %q, want TTB25", last)
		}
	})

	t.Run("Fills the smallest gap", func(t *testing.T) {
		a := NewProbeAllocator("ACC", newTakenSet("ACC1", "ACC2", "ACC4").exists)
		id, _ := a.Allocate(ctx)
		if id != "ACC3" {
			t.Errorf("id = %q, want ACC3", id)
		}
	})

	t.Run("Respects the limit", func(t *testing.T) {
		a := NewProbeAllocator("ACC", newTakenSet("ACC1", "ACC2").exists)
		a.Limit = 2
		if _, err := a.Allocate(ctx); !errors.Is(err, ErrProbeLimit) {
			t.Errorf("err = %v, want ErrProbeLimit", err)
		}
	})

	t.Run("Propagates lookup failures", func(t *testing.T) {
		boom := errors.New("connection reset")
		a := NewProbeAllocator("ACC", func(context.Context, string) (bool, error) { return false, boom })
		if _, err := a.Allocate(ctx); !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapped %v", err, boom)
		}
	})
}

func TestCounterAllocator(t *testing.T) {
	ctx := context.Background()

	t.Run("Concurrent increments are distinct with no gaps", func(t *testing.T) {
		store := NewMemoryCounterStore()
		const k = 200

		values := make([]int64, k)
		var wg sync.WaitGroup
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				n, err := store.Next(ctx, PurposeStudent)
				if err != nil {
					t.Errorf("Next: %v", err)
					return
				}
				values[i] = n
			}(i)
		}
		wg.Wait()

		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		for i, v := range values {
			if v != int64(i+1) {
				t.Fatalf("sorted values[%d] = %d, want %d", i, v, i+1)
			}
		}
	})

	t.Run("Purposes are independent", func(t *testing.T) {
		store := NewMemoryCounterStore()
		store.Next(ctx, PurposeAcademic)
		store.Next(ctx, PurposeAcademic)
		n, _ := store.Next(ctx, PurposeTimetable)
		if n != 1 {
			t.Errorf("timetable counter = %d, want 1", n)
		}
	})

	t.Run("Skips values occupied by legacy rows", func(t *testing.T) {
		store := NewMemoryCounterStore()
		a := NewCounterAllocator(store, PurposeAcademic, "ACC", newTakenSet("ACC1", "ACC2").exists)

		id, err := a.Allocate(ctx)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if id != "ACC3" {
			t.Errorf("id = %q, want ACC3", id)
		}
		if cur, _ := store.Current(ctx, PurposeAcademic); cur != 3 {
			t.Errorf("counter = %d, want 3", cur)
		}
	})

	t.Run("Never reuses a value", func(t *testing.T) {
		a := NewCounterAllocator(NewMemoryCounterStore(), PurposeTimetable, "TTB", nil)
		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			id, _ := a.Allocate(ctx)
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	})
}

func TestNew(t *testing.T) {
	store := NewMemoryCounterStore()
	exists := newTakenSet().exists

	if a, err := New("counter", store, PurposeAcademic, "ACC", exists); err != nil {
		t.Errorf("counter: %v", err)
	} else if _, ok := a.(*CounterAllocator); !ok {
		t.Errorf("counter policy built %T", a)
	}

	if a, err := New("probe", store, PurposeAcademic, "ACC", exists); err != nil {
		t.Errorf("probe: %v", err)
	} else if _, ok := a.(*ProbeAllocator); !ok {
		t.Errorf("probe policy built %T", a)
	}

	if _, err := New("random", store, PurposeAcademic, "ACC", exists); err == nil {
		t.Error("expected error for unknown policy")
	}
}

// TestMongoCounterStore_Integration runs against a real MongoDB when
// MONGO_URI is available.
func TestMongoCounterStore_Integration(t *testing.T) {
	_ = godotenv.Load("../../../.env")
	uri := shared.GetEnv("MONGO_URI", "")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	cfg := shared.DefaultMongoConfig(uri, "school_sequence_test")
	cfg.ConnectTimeout = 10 * time.Second
	client, db, err := shared.ConnectMongoDB(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	ctx := context.Background()
	db.Drop(ctx)
	defer db.Drop(ctx)

	store := NewMongoCounterStore(db)

	const k = 50
	results := make(chan int64, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Next(ctx, PurposeStudent)
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for n := range results {
		if seen[n] {
			t.Fatalf("duplicate counter value %d", n)
		}
		seen[n] = true
	}
	for i := int64(1); i <= k; i++ {
		if !seen[i] {
			t.Errorf("missing counter value %d", i)
		}
	}

	if cur, err := store.Current(ctx, PurposeStudent); err != nil || cur != k {
		t.Errorf("Current = %d, %v; want %d", cur, err, k)
	}
}
