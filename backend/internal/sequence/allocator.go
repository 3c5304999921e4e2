// Package sequence allocates human-readable sequential identifiers such as
// ACC3, TTB12 or ENG25STU004.
//
// Two strategies are provided. CounterAllocator draws from a named counter
// that is incremented atomically by the store and is safe under concurrent
// callers. ProbeAllocator scans upward from 1 for the first unused suffix;
// it is not atomic and relies on a unique index to reject the loser of a
// race.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Counter purposes
const (
	PurposeStudent   = "studentId"
	PurposeAcademic  = "academicId"
	PurposeTimetable = "timetableId"
)

// ErrProbeLimit is returned when a probe scan passes its configured bound.
var ErrProbeLimit = errors.New("sequence: probe limit reached")

// Allocator produces a fresh identifier for a new record.
type Allocator interface {
	Allocate(ctx context.Context) (string, error)
}

// CounterStore atomically increments the counter for purpose and returns
// the new value. A missing counter starts at 0, so the first call returns 1.
type CounterStore interface {
	Next(ctx context.Context, purpose string) (int64, error)
}

// ExistsFunc reports whether id is already taken in the target collection.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// FormatFunc renders a counter value as an identifier.
type FormatFunc func(n int64) string

// ============================================================================
// Formatting
// ============================================================================

// Unpadded renders prefix followed by the bare number, e.g. ACC7.
func Unpadded(prefix string) FormatFunc {
	return func(n int64) string {
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// Padded renders prefix followed by the number zero-padded to width, e.g. STU007.
func Padded(prefix string, width int) FormatFunc {
	return func(n int64) string {
		return fmt.Sprintf("%s%0*d", prefix, width, n)
	}
}

// StudentID renders <FACULTYCODE><YY>STU<NNN>, e.g. ENG25STU004.
func StudentID(facultyCode string, year int, n int64) string {
	prefix := fmt.Sprintf("%s%02dSTU", strings.ToUpper(strings.TrimSpace(facultyCode)), year%100)
	return Padded(prefix, 3)(n)
}

// ============================================================================
// Strategy A: probe
// ============================================================================

// ProbeAllocator returns the smallest positive suffix not currently in use.
// Two concurrent callers can observe the same free candidate; the insert of
// the second one must fail on the unique index.
type ProbeAllocator struct {
	Format FormatFunc
	Exists ExistsFunc
	Limit  int64 // 0 means unbounded
}

// NewProbeAllocator returns a probe allocator for Unpadded(prefix).
func NewProbeAllocator(prefix string, exists ExistsFunc) *ProbeAllocator {
	return &ProbeAllocator{Format: Unpadded(prefix), Exists: exists}
}

func (a *ProbeAllocator) Allocate(ctx context.Context) (string, error) {
	for n := int64(1); a.Limit == 0 || n <= a.Limit; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		id := a.Format(n)
		taken, err := a.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("sequence: probe %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrProbeLimit
}

// ============================================================================
// Strategy B: counter
// ============================================================================

// CounterAllocator formats values drawn from a named counter. When Exists is
// set, values whose rendering is already occupied (rows created before the
// counter existed) are skipped by drawing again. Uniqueness never depends
// on that check.
type CounterAllocator struct {
	Store   CounterStore
	Purpose string
	Format  FormatFunc
	Exists  ExistsFunc
}

// NewCounterAllocator returns a counter allocator for Unpadded(prefix).
func NewCounterAllocator(store CounterStore, purpose, prefix string, exists ExistsFunc) *CounterAllocator {
	return &CounterAllocator{Store: store, Purpose: purpose, Format: Unpadded(prefix), Exists: exists}
}

func (a *CounterAllocator) Allocate(ctx context.Context) (string, error) {
	for {
		n, err := a.Store.Next(ctx, a.Purpose)
		if err != nil {
			return "", fmt.Errorf("sequence: next %s: %w", a.Purpose, err)
		}

		id := a.Format(n)
		if a.Exists == nil {
			return id, nil
		}

		taken, err := a.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("sequence: check %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
}

// New builds the allocator selected by policy ("counter" or "probe").
func New(policy string, store CounterStore, purpose, prefix string, exists ExistsFunc) (Allocator, error) {
	switch policy {
	case "", "counter":
		return NewCounterAllocator(store, purpose, prefix, exists), nil
	case "probe":
		return NewProbeAllocator(prefix, exists), nil
	default:
		return nil, fmt.Errorf("sequence: unknown allocation policy %q", policy)
	}
}
