package partition

import "github.com/jittakal/kafeventstore/pkg/event"

// RotationPolicy decides when the currently open temp artifact should be
// closed and committed.
type RotationPolicy interface {
	ShouldRotate(stats event.FileStats) bool
}

// CountPolicy rotates once a temp artifact holds flushSize records,
// adapted from the teacher's multi-criteria CompositePolicy down to the
// single record-count knob the connector config exposes (flush_size).
type CountPolicy struct {
	flushSize int
}

// NewCountPolicy creates a rotation policy that fires at flushSize
// records.
func NewCountPolicy(flushSize int) *CountPolicy {
	return &CountPolicy{flushSize: flushSize}
}

// ShouldRotate returns true once stats.RecordCount reaches flushSize.
func (p *CountPolicy) ShouldRotate(stats event.FileStats) bool {
	return p.flushSize > 0 && stats.RecordCount >= p.flushSize
}
