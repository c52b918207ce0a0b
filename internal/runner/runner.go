// Package runner wires the source loader and a reconciler into single runs,
// dry runs and a periodic sync loop, and keeps the outcome of the last run.
package runner

import (
	"context"
	"filtersync/internal/reconciler"
	"filtersync/internal/source"
	"filtersync/pkg/domain"
	"filtersync/pkg/logger"
	"filtersync/pkg/metrics"
	"filtersync/pkg/serrors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Loader computes the desired state from the configured sources.
type Loader interface {
	Load(ctx context.Context, src source.Sources) (domain.DesiredState, error)
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Status describes a finished run.
type Status struct {
	Provider   string              `json:"provider"`
	Tag        domain.OwnershipTag `json:"tag"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Status     string              `json:"status"`
	Error      string              `json:"error,omitempty"`
	ErrorKind  string              `json:"errorKind,omitempty"`
	Report     reconciler.Report   `json:"report"`
}

// Schedule defaults, used for non-positive values.
const (
	DefaultInterval   = 6 * time.Hour
	DefaultMinBackoff = time.Minute
	DefaultMaxBackoff = time.Hour
)

// Schedule configures Serve.
type Schedule struct {
	// Interval is the delay between the end of a successful run and the
	// start of the next one.
	Interval time.Duration
	// MinBackoff is the delay after the first failure; it doubles per
	// consecutive failure up to MaxBackoff.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// withDefaults replaces non-positive durations by the defaults and raises
// MaxBackoff to MinBackoff when it is below.
func (s Schedule) withDefaults() Schedule {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.MinBackoff <= 0 {
		s.MinBackoff = DefaultMinBackoff
	}
	if s.MaxBackoff <= 0 {
		s.MaxBackoff = DefaultMaxBackoff
	}
	s.MaxBackoff = max(s.MaxBackoff, s.MinBackoff)

	return s
}

// Runner executes reconciliation runs for one provider.
type Runner struct {
	provider   string
	loader     Loader
	reconciler reconciler.Reconciler
	sources    source.Sources
	metrics    *metrics.Metrics

	mu   sync.RWMutex
	last *Status
}

// New creates a Runner. m may be nil.
func New(provider string, loader Loader, rec reconciler.Reconciler, sources source.Sources, m *metrics.Metrics) *Runner {
	if m == nil {
		m = metrics.Noop()
	}

	return &Runner{
		provider:   provider,
		loader:     loader,
		reconciler: rec,
		sources:    sources,
		metrics:    m,
	}
}

// Plan loads the desired state without touching the provider.
func (r *Runner) Plan(ctx context.Context) (domain.DesiredState, error) {
	desired, err := r.loader.Load(ctx, r.sources)
	if err != nil {
		return domain.DesiredState{}, fmt.Errorf("could not load sources: %w", err)
	}

	return desired, nil
}

// Run performs one reconciliation under a fresh ownership tag.
func (r *Runner) Run(ctx context.Context) (reconciler.Report, error) {
	tag := domain.NewOwnershipTag()
	ctx = logger.WithFields(ctx, zap.String("provider", r.provider))
	status := Status{Provider: r.provider, Tag: tag, StartedAt: time.Now()}

	report, err := r.run(ctx, tag)

	status.FinishedAt = time.Now()
	status.Report = report
	status.Status = StatusSuccess
	if err != nil {
		status.Status = StatusFailed
		status.Error = err.Error()
		if k := serrors.KindOf(err); k != nil {
			status.ErrorKind = k.Error()
		}
	}
	r.metrics.RecordRun(ctx, r.provider, status.Status, status.FinishedAt.Sub(status.StartedAt))

	r.mu.Lock()
	r.last = &status
	r.mu.Unlock()

	return report, err
}

func (r *Runner) run(ctx context.Context, tag domain.OwnershipTag) (reconciler.Report, error) {
	desired, err := r.Plan(ctx)
	if err != nil {
		return reconciler.Report{}, err
	}

	report, err := r.reconciler.Reconcile(ctx, tag, desired)
	if err != nil {
		return report, fmt.Errorf("could not reconcile: %w", err)
	}

	return report, nil
}

// LastStatus returns the outcome of the most recent run.
func (r *Runner) LastStatus() (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.last == nil {
		return Status{}, false
	}

	return *r.last, true
}

// Serve runs reconciliations one after another until ctx is done. Failed runs
// are retried with exponential backoff; authorization failures stop the loop
// because retrying cannot fix them.
func (r *Runner) Serve(ctx context.Context, s Schedule) error {
	s = s.withDefaults()
	failures := 0
	for {
		_, err := r.Run(ctx)
		if ctx.Err() != nil {
			return nil //nolint: nilerr
		}

		delay := s.Interval
		switch {
		case err == nil:
			if failures > 0 {
				logger.Info(ctx, "sync recovered", zap.Int("failures", failures))
			}
			failures = 0
		case serrors.IsAuth(err):
			return err
		default:
			failures++
			delay = jitter(Backoff(s.MinBackoff, s.MaxBackoff, failures))
			logger.Error(ctx, "sync failed", zap.Error(err), zap.Int("attempt", failures), zap.Duration("backoff", delay))
		}

		logger.Info(ctx, "next sync scheduled", zap.Duration("in", delay))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case <-timer.C:
		}
	}
}

// Backoff returns the delay after the given number of consecutive failures:
// minDelay doubled per failure beyond the first, capped at maxDelay.
func Backoff(minDelay, maxDelay time.Duration, failures int) time.Duration {
	if failures < 1 {
		return 0
	}

	d := minDelay
	for i := 1; i < failures; i++ {
		if d >= maxDelay/2 {
			return maxDelay
		}
		d *= 2
	}

	return min(d, maxDelay)
}

// jitter spreads d by up to ±20%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	frac := 0.2

	return d + time.Duration((rand.Float64()*2-1)*frac*float64(d))
}
