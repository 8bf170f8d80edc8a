package health

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func probeWithStatus(name string, status Status, weight float64, critical bool) Probe {
	return NewProbe(name, weight, critical, func(_ context.Context) Result {
		return Result{Component: name, Status: status, CheckedAt: time.Now()}
	})
}

func TestAggregator_AllHealthyIsHealthy(t *testing.T) {
	a := New(DefaultConfig(), probeWithStatus("a", Healthy, 1, false), probeWithStatus("b", Healthy, 1, false))
	agg := a.Check(context.Background())

	assert.Equal(t, Healthy, agg.Overall)
	assert.Equal(t, 1.0, agg.Score)
}

func TestAggregator_WeightedScoreDegradesWithOneUnhealthyProbe(t *testing.T) {
	cfg := Config{ProbeTimeout: time.Second, HealthyThreshold: 0.9, DegradedThreshold: 0.3}
	a := New(cfg, probeWithStatus("a", Healthy, 1, false), probeWithStatus("b", Unhealthy, 1, false))
	agg := a.Check(context.Background())

	assert.Equal(t, Degraded, agg.Overall)
	assert.InDelta(t, 0.5, agg.Score, 0.0001)
}

func TestAggregator_AllUnhealthyIsUnhealthy(t *testing.T) {
	a := New(DefaultConfig(), probeWithStatus("a", Unhealthy, 1, true))
	agg := a.Check(context.Background())

	assert.Equal(t, Unhealthy, agg.Overall)
	assert.Equal(t, 0.0, agg.Score)
}

func TestAggregator_ReadyFailsOnlyWhenACriticalProbeIsUnhealthy(t *testing.T) {
	a := New(DefaultConfig(),
		probeWithStatus("critical", Unhealthy, 1, true),
		probeWithStatus("noncritical", Healthy, 1, false),
	)
	assert.False(t, a.Ready(context.Background()))

	b := New(DefaultConfig(),
		probeWithStatus("critical", Healthy, 1, true),
		probeWithStatus("noncritical", Unhealthy, 1, false),
	)
	assert.True(t, b.Ready(context.Background()))
}

func TestWithBreaker_OpensAfterRepeatedFailuresAndShortCircuits(t *testing.T) {
	var calls int
	inner := NewProbe("flaky", 1, true, func(_ context.Context) Result {
		calls++
		return Result{Component: "flaky", Status: Unhealthy, CheckedAt: time.Now()}
	})

	settings := gobreaker.Settings{
		Name:        "flaky",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 },
	}
	wrapped := WithBreaker(inner, settings)

	for i := 0; i < 2; i++ {
		res := wrapped.Check(context.Background())
		assert.Equal(t, Unhealthy, res.Status)
	}
	callsAfterTrip := calls

	// The breaker should now be open; Check should short-circuit without
	// invoking the wrapped probe again.
	res := wrapped.Check(context.Background())
	assert.Equal(t, Unhealthy, res.Status)
	assert.Equal(t, callsAfterTrip, calls, "breaker should short-circuit once open")
}

func TestStatus_ScoreMapping(t *testing.T) {
	assert.Equal(t, 1.0, Healthy.Score())
	assert.Equal(t, 0.5, Degraded.Score())
	assert.Equal(t, 0.0, Unhealthy.Score())
}
