package metrics

import (
	"time"

	"github.com/wattplan/wattplan/core/model"
)

// PlanEvent describes one completed planning run.
type PlanEvent struct {
	PlanID   string
	Time     time.Time
	Duration time.Duration
	Result   model.PlanResult
	// GuardNotes lists lock overrides reported by the mode guard.
	GuardNotes []string
}

// MetricsSink receives planning results. Implementations must be safe for
// use from the service goroutine that drains the event bus.
type MetricsSink interface {
	RecordPlan(PlanEvent) error
	Close() error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordPlan(PlanEvent) error { return nil }
func (NopSink) Close() error               { return nil }
