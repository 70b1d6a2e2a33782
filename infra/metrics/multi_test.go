package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
)

type recordingSink struct {
	records int
	closes  int
	err     error
}

func (r *recordingSink) RecordPlan(coremetrics.PlanEvent) error {
	r.records++
	return r.err
}

func (r *recordingSink) Close() error {
	r.closes++
	return r.err
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, b)

	require.NoError(t, m.RecordPlan(coremetrics.PlanEvent{}))
	require.Equal(t, 1, a.records)
	require.Equal(t, 1, b.records)

	require.NoError(t, m.Close())
	require.Equal(t, 1, a.closes)
	require.Equal(t, 1, b.closes)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	failing := &recordingSink{err: errors.New("sink down")}
	healthy := &recordingSink{}
	m := NewMultiSink(failing, healthy)

	err := m.RecordPlan(coremetrics.PlanEvent{})
	require.Error(t, err)
	// The healthy sink is still attempted.
	require.Equal(t, 1, healthy.records)
}

func TestNopSink(t *testing.T) {
	var s coremetrics.MetricsSink = coremetrics.NopSink{}
	require.NoError(t, s.RecordPlan(coremetrics.PlanEvent{}))
	require.NoError(t, s.Close())
}
