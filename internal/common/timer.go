// Package common provides shared timing utilities.
package common

import (
	"fmt"
	"time"
)

// Timer measures a single elapsed interval with an optional name.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return fmt.Sprintf("%v", t.duration)
}

// DurationStats aggregates repeated measurements of the same operation.
type DurationStats struct {
	Count int           `json:"count" yaml:"count"`
	Total time.Duration `json:"total" yaml:"total"`
	Min   time.Duration `json:"min"   yaml:"min"`
	Max   time.Duration `json:"max"   yaml:"max"`
}

// Add records one measurement.
func (s *DurationStats) Add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
}

// Mean returns the average measurement, or 0 when nothing was recorded.
func (s DurationStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s DurationStats) String() string {
	return fmt.Sprintf("n=%d avg=%v min=%v max=%v", s.Count, s.Mean(), s.Min, s.Max)
}
