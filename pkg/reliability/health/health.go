// Package health aggregates the results of independent dependency probes
// into a single weighted composite status, with a critical-only subset
// usable as a Kubernetes-style readiness check.
package health

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// Status is the health of a single probe or the aggregated system.
type Status int

const (
	Unhealthy Status = iota
	Degraded
	Healthy
)

// Score maps a Status to the numeric weight used in the composite score.
func (s Status) Score() float64 {
	switch s {
	case Healthy:
		return 1.0
	case Degraded:
		return 0.5
	default:
		return 0.0
	}
}

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// Result is one probe's outcome.
type Result struct {
	Component string
	Status    Status
	Message   string
	Latency   time.Duration
	CheckedAt time.Time
}

// Probe is an independent dependency health check. It must respect ctx
// cancellation/timeout.
type Probe interface {
	Name() string
	Check(ctx context.Context) Result
	// Critical marks this probe as part of the readiness subset: if it is
	// Unhealthy, the system is not ready to serve traffic even if the
	// overall weighted score would otherwise pass.
	Critical() bool
	Weight() float64
}

// basicProbe is a Probe built from a plain check function.
type basicProbe struct {
	name     string
	weight   float64
	critical bool
	check    func(ctx context.Context) Result
}

// NewProbe wraps a check function as a Probe.
func NewProbe(name string, weight float64, critical bool, check func(ctx context.Context) Result) Probe {
	return &basicProbe{name: name, weight: weight, critical: critical, check: check}
}

func (p *basicProbe) Name() string                          { return p.name }
func (p *basicProbe) Critical() bool                         { return p.critical }
func (p *basicProbe) Weight() float64                        { return p.weight }
func (p *basicProbe) Check(ctx context.Context) Result       { return p.check(ctx) }

// breakerProbe wraps another Probe with a circuit breaker so a probe that
// is already failing isn't hammered on every aggregation tick.
type breakerProbe struct {
	Probe
	cb *gobreaker.CircuitBreaker
}

// WithBreaker wraps probe with a circuit breaker configured per the
// teacher's generalized "fail fast when a dependency is known-bad" pattern.
// When the breaker is open, Check returns Unhealthy immediately without
// invoking the wrapped probe.
func WithBreaker(probe Probe, settings gobreaker.Settings) Probe {
	if settings.Name == "" {
		settings.Name = probe.Name()
	}
	return &breakerProbe{Probe: probe, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerProbe) Check(ctx context.Context) Result {
	out, err := b.cb.Execute(func() (any, error) {
		res := b.Probe.Check(ctx)
		if res.Status == Unhealthy {
			return res, errBreakerTrip
		}
		return res, nil
	})
	if err != nil {
		if res, ok := out.(Result); ok {
			return res
		}
		return Result{
			Component: b.Probe.Name(),
			Status:    Unhealthy,
			Message:   "circuit open",
			CheckedAt: time.Now(),
		}
	}
	return out.(Result)
}

var errBreakerTrip = breakerTripError{}

type breakerTripError struct{}

func (breakerTripError) Error() string { return "probe reported unhealthy" }

// Config bounds aggregation behavior.
type Config struct {
	ProbeTimeout time.Duration
	// HealthyThreshold and DegradedThreshold bucket the weighted
	// composite score (0.0-1.0) into an overall Status: score >= Healthy
	// threshold is Healthy, >= Degraded threshold but below is Degraded,
	// otherwise Unhealthy.
	HealthyThreshold  float64
	DegradedThreshold float64
}

// DefaultConfig matches common Kubernetes probe tuning.
func DefaultConfig() Config {
	return Config{ProbeTimeout: 2 * time.Second, HealthyThreshold: 0.9, DegradedThreshold: 0.5}
}

// Aggregate is the result of running every registered probe once.
type Aggregate struct {
	Overall Status
	Score   float64
	Results []Result
}

// Aggregator runs a fixed set of probes concurrently and combines them.
type Aggregator struct {
	config Config
	probes []Probe
}

// New creates an Aggregator over the given probes.
func New(config Config, probes ...Probe) *Aggregator {
	return &Aggregator{config: config, probes: probes}
}

// Check runs every probe concurrently (bounded by config.ProbeTimeout) and
// returns the weighted composite aggregate.
func (a *Aggregator) Check(ctx context.Context) Aggregate {
	results := make([]Result, len(a.probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range a.probes {
		i, p := i, p
		g.Go(func() error {
			probeCtx := gctx
			var cancel context.CancelFunc
			if a.config.ProbeTimeout > 0 {
				probeCtx, cancel = context.WithTimeout(gctx, a.config.ProbeTimeout)
				defer cancel()
			}
			results[i] = p.Check(probeCtx)
			return nil
		})
	}
	_ = g.Wait() // individual probe failures surface as Unhealthy results, not errors

	return a.combine(results)
}

func (a *Aggregator) combine(results []Result) Aggregate {
	var totalWeight, weightedScore float64
	for i, p := range a.probes {
		w := p.Weight()
		if w <= 0 {
			w = 1
		}
		totalWeight += w
		weightedScore += w * results[i].Status.Score()
	}

	score := 1.0
	if totalWeight > 0 {
		score = weightedScore / totalWeight
	}

	overall := Unhealthy
	switch {
	case score >= a.config.HealthyThreshold:
		overall = Healthy
	case score >= a.config.DegradedThreshold:
		overall = Degraded
	}

	return Aggregate{Overall: overall, Score: score, Results: results}
}

// Ready runs only the probes marked Critical and reports whether all of
// them are at least Degraded (i.e. available) — the readiness subset used
// by a Kubernetes readiness probe, which must not flap on a non-critical
// dependency blip.
func (a *Aggregator) Ready(ctx context.Context) bool {
	for _, p := range a.probes {
		if !p.Critical() {
			continue
		}
		probeCtx := ctx
		var cancel context.CancelFunc
		if a.config.ProbeTimeout > 0 {
			probeCtx, cancel = context.WithTimeout(ctx, a.config.ProbeTimeout)
		}
		res := p.Check(probeCtx)
		if cancel != nil {
			cancel()
		}
		if res.Status == Unhealthy {
			return false
		}
	}
	return true
}
