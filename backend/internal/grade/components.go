package grade

import (
	"fmt"
	"math"

	"schoolapi/backend/internal/shared"
)

// Component is one of the four scored parts of a subject grade.
type Component string

const (
	CW1     Component = "cw1"
	Midterm Component = "midterm"
	CW2     Component = "cw2"
	Final   Component = "final"
)

// MaxTotal caps the sum of all components.
const MaxTotal = 100.0

// Components lists the components in sheet column order.
var Components = []Component{CW1, Midterm, CW2, Final}

var maxScores = map[Component]float64{
	CW1:     10,
	CW2:     10,
	Midterm: 30,
	Final:   60,
}

// MaxScore returns the upper bound for c. The lower bound is always 0.
func MaxScore(c Component) (float64, bool) {
	limit, ok := maxScores[c]
	return limit, ok
}

// Scores holds the optional component values of one grade record. A nil
// field means "not supplied", which is different from 0.
type Scores struct {
	CW1     *float64 `json:"cw1,omitempty"`
	Midterm *float64 `json:"midterm,omitempty"`
	CW2     *float64 `json:"cw2,omitempty"`
	Final   *float64 `json:"final,omitempty"`
}

func (s *Scores) field(c Component) **float64 {
	switch c {
	case CW1:
		return &s.CW1
	case Midterm:
		return &s.Midterm
	case CW2:
		return &s.CW2
	case Final:
		return &s.Final
	}
	return nil
}

// Get returns the value of c, or nil when it was not supplied.
func (s Scores) Get(c Component) *float64 {
	if f := s.field(c); f != nil {
		return *f
	}
	return nil
}

// Set stores v for c.
func (s *Scores) Set(c Component, v float64) {
	if f := s.field(c); f != nil {
		*f = &v
	}
}

// Present calls fn for every supplied component in column order.
func (s Scores) Present(fn func(c Component, v float64)) {
	for _, c := range Components {
		if v := s.Get(c); v != nil {
			fn(c, *v)
		}
	}
}

// Empty reports whether no component was supplied.
func (s Scores) Empty() bool {
	empty := true
	s.Present(func(Component, float64) { empty = false })
	return empty
}

// Sum adds the supplied components, unclamped.
func (s Scores) Sum() float64 {
	var sum float64
	s.Present(func(_ Component, v float64) { sum += v })
	return sum
}

// Violation is a failed check on a set of scores.
type Violation struct {
	Kind      string // shared.IssueRangeViolation or shared.IssueTotalExceeded
	Component Component
	Message   string
}

// Check validates each supplied component against its range and the sum
// of supplied components against MaxTotal. Every violation is returned.
func (s Scores) Check() []Violation {
	var violations []Violation

	s.Present(func(c Component, v float64) {
		limit, _ := MaxScore(c)
		if math.IsNaN(v) || v < 0 || v > limit {
			violations = append(violations, Violation{
				Kind:      shared.IssueRangeViolation,
				Component: c,
				Message:   fmt.Sprintf("%s must be between 0 and %g, got %g", c, limit, v),
			})
		}
	})

	if sum := s.Sum(); sum > MaxTotal {
		violations = append(violations, Violation{
			Kind:    shared.IssueTotalExceeded,
			Message: fmt.Sprintf("total of supplied components is %g, must not exceed %g", sum, MaxTotal),
		})
	}

	return violations
}

// Summary is the read-side view of a grade record.
type Summary struct {
	CW1     float64 `json:"cw1"`
	Midterm float64 `json:"midterm"`
	CW2     float64 `json:"cw2"`
	Final   float64 `json:"final"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
}

// Summarize derives total and average for display. Missing components
// count as 0, the total is clamped to MaxTotal and average is
// round(total/4). Nothing stored is consulted or changed.
func Summarize(s Scores) Summary {
	value := func(c Component) float64 {
		if v := s.Get(c); v != nil {
			return *v
		}
		return 0
	}

	sum := Summary{
		CW1:     value(CW1),
		Midterm: value(Midterm),
		CW2:     value(CW2),
		Final:   value(Final),
	}
	sum.Total = math.Min(sum.CW1+sum.Midterm+sum.CW2+sum.Final, MaxTotal)
	sum.Average = math.Round(sum.Total / 4)
	return sum
}
