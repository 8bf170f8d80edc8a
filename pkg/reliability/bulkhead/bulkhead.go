// Package bulkhead isolates concurrent work into named, semaphore-bounded
// islands so that saturation in one area cannot starve another.
package bulkhead

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Errors returned by Bulkhead.Execute/Acquire.
var (
	ErrQueueFull       = errors.New("bulkhead: waiter queue is full")
	ErrAcquireTimeout = errors.New("bulkhead: timed out waiting for a permit")
	ErrRejected       = errors.New("bulkhead: rejected")
)

// Config bounds one bulkhead's concurrency and admission behavior.
type Config struct {
	MaxConcurrent int
	MaxQueueSize  int
	AcquireTimeout time.Duration
}

// DefaultConfig mirrors the original implementation's default tuning.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 25, MaxQueueSize: 100, AcquireTimeout: 30 * time.Second}
}

// SmallConfig is for limited-resource dependencies (e.g. a single external API).
func SmallConfig() Config {
	return Config{MaxConcurrent: 10, MaxQueueSize: 50, AcquireTimeout: 10 * time.Second}
}

// LargeConfig is for high-throughput, cheaply-scaled dependencies.
func LargeConfig() Config {
	return Config{MaxConcurrent: 100, MaxQueueSize: 500, AcquireTimeout: 60 * time.Second}
}

// Metrics is a point-in-time snapshot of one bulkhead's counters.
type Metrics struct {
	Active    int
	Queued    int
	Rejected  uint64
	Timeouts  uint64
	Successes uint64
	Failures  uint64
}

// Bulkhead bounds concurrent execution under a name, with a bounded waiter
// queue in front of the semaphore and a timeout on how long a caller will
// wait for a permit.
type Bulkhead struct {
	name   string
	config Config

	sem     chan struct{}
	waiters int64 // current number of goroutines blocked waiting for a permit

	rejected  uint64
	timeouts  uint64
	successes uint64
	failures  uint64
}

// New creates a bulkhead with the given name and config.
func New(name string, config Config) *Bulkhead {
	return &Bulkhead{
		name:   name,
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

func (b *Bulkhead) Name() string   { return b.name }
func (b *Bulkhead) Config() Config { return b.config }

// Metrics returns a snapshot of the bulkhead's current counters.
func (b *Bulkhead) Metrics() Metrics {
	return Metrics{
		Active:    len(b.sem),
		Queued:    int(atomic.LoadInt64(&b.waiters)),
		Rejected:  atomic.LoadUint64(&b.rejected),
		Timeouts:  atomic.LoadUint64(&b.timeouts),
		Successes: atomic.LoadUint64(&b.successes),
		Failures:  atomic.LoadUint64(&b.failures),
	}
}

// AvailablePermits returns how many concurrent slots are currently free.
func (b *Bulkhead) AvailablePermits() int {
	return cap(b.sem) - len(b.sem)
}

// acquire takes a free permit at once if there is one. Otherwise it joins
// the waiter queue and blocks until a permit is available, ctx is
// cancelled, or the configured AcquireTimeout elapses; it fails at once if
// the waiter queue is already full.
func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}

	if int(atomic.LoadInt64(&b.waiters)) >= b.config.MaxQueueSize {
		atomic.AddUint64(&b.rejected, 1)
		return ErrQueueFull
	}

	atomic.AddInt64(&b.waiters, 1)
	defer atomic.AddInt64(&b.waiters, -1)

	waitCtx := ctx
	var cancel context.CancelFunc
	if b.config.AcquireTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, b.config.AcquireTimeout)
		defer cancel()
	}

	select {
	case b.sem <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			atomic.AddUint64(&b.rejected, 1)
			return ErrRejected
		}
		atomic.AddUint64(&b.timeouts, 1)
		return ErrAcquireTimeout
	}
}

func (b *Bulkhead) release() {
	<-b.sem
}

// tryAcquire takes a permit only if one is immediately available, without
// waiting in line behind other callers.
func (b *Bulkhead) tryAcquire() error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
		atomic.AddUint64(&b.rejected, 1)
		return ErrRejected
	}
}

// Execute runs fn once a permit is acquired, releasing it unconditionally
// afterward and updating success/failure counters accordingly.
func Execute[T any](ctx context.Context, b *Bulkhead, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.acquire(ctx); err != nil {
		return zero, err
	}
	defer b.release()

	out, err := fn(ctx)
	if err != nil {
		atomic.AddUint64(&b.failures, 1)
		return zero, err
	}
	atomic.AddUint64(&b.successes, 1)
	return out, nil
}

// TryExecute behaves like Execute except it never waits: if no permit is
// immediately available it returns ErrRejected without running fn.
func TryExecute[T any](ctx context.Context, b *Bulkhead, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.tryAcquire(); err != nil {
		return zero, err
	}
	defer b.release()

	out, err := fn(ctx)
	if err != nil {
		atomic.AddUint64(&b.failures, 1)
		return zero, err
	}
	atomic.AddUint64(&b.successes, 1)
	return out, nil
}

// Registry holds named bulkheads, creating them lazily with a default
// config on first use.
type Registry struct {
	mu        sync.RWMutex
	bulkheads map[string]*Bulkhead
	defaults  Config
}

// NewRegistry returns a registry that creates bulkheads with defaultConfig
// on first GetOrCreate for an unseen name.
func NewRegistry(defaultConfig Config) *Registry {
	return &Registry{bulkheads: make(map[string]*Bulkhead), defaults: defaultConfig}
}

// Register installs an explicitly configured bulkhead under name,
// overwriting any existing one.
func (r *Registry) Register(name string, config Config) *Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := New(name, config)
	r.bulkheads[name] = b
	return b
}

// Get returns the named bulkhead, or nil if it hasn't been created.
func (r *Registry) Get(name string) (*Bulkhead, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bulkheads[name]
	return b, ok
}

// GetOrCreate returns the named bulkhead, creating one with the registry's
// default config if it doesn't exist yet.
func (r *Registry) GetOrCreate(name string) *Bulkhead {
	r.mu.RLock()
	b, ok := r.bulkheads[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bulkheads[name]; ok {
		return b
	}
	b = New(name, r.defaults)
	r.bulkheads[name] = b
	return b
}

// List returns the names of every bulkhead currently registered.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bulkheads))
	for name := range r.bulkheads {
		names = append(names, name)
	}
	return names
}

// AllMetrics returns a snapshot of every registered bulkhead's metrics.
func (r *Registry) AllMetrics() map[string]Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Metrics, len(r.bulkheads))
	for name, b := range r.bulkheads {
		out[name] = b.Metrics()
	}
	return out
}

// TotalWaiters sums the current waiter count across every registered
// bulkhead; the load shedder uses this as its queue_size signal.
func (r *Registry) TotalWaiters() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, b := range r.bulkheads {
		total += int(atomic.LoadInt64(&b.waiters))
	}
	return total
}
