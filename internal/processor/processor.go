// Package processor executes queues of remote write operations one at a time
// while tolerating provider throttling.
package processor

import (
	"container/list"
	"context"
	"errors"
	"filtersync/pkg/logger"
	"filtersync/pkg/metrics"
	"filtersync/pkg/serrors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultCooldown is how long the processor pauses after the provider
// signals throttling.
const DefaultCooldown = 60 * time.Second

// countdownStep is the interval between countdown log events.
const countdownStep = time.Second

// Options configures a Processor.
type Options struct {
	// Cooldown is the pause after a throttled request. Zero means DefaultCooldown.
	Cooldown time.Duration
	// RequestsPerSecond paces requests on the client side. Zero disables pacing.
	RequestsPerSecond float64
	// Burst is the pacer bucket size. Values below 1 are treated as 1.
	Burst int
	// RequestsPerMinute caps requests in any minute. Zero disables the cap.
	RequestsPerMinute int
	// Metrics receives per request outcomes. Nil records nothing.
	Metrics *metrics.Metrics
}

// Processor drives a queue of independent remote mutations with at most one
// request in flight.
//
// # Outcomes
//
// Each item is handed to the request function exactly once per attempt and
// the returned error decides what happens next:
//   - nil: the item succeeded and counts towards the current wave.
//   - serrors.ErrRejected: the provider refused the item in a successful
//     response. It is reported and not retried.
//   - serrors.ErrRateLimited: the item is pushed back to the front of the
//     queue so it is retried before any other pending item. The processor
//     reports the throughput of the current wave, sleeps for the cool-down
//     while logging a countdown and starts a new wave. Retries are unbounded.
//   - anything else: fatal. Run returns immediately and the remaining items
//     are not attempted.
//
// Optionally token buckets (golang.org/x/time/rate) space requests out
// before the provider has to throttle: one per second and one per minute. Canceling the context during a
// cool-down or a pacer wait ends the run with the context error.
//
// A Processor holds no per-run state and may be shared by sequential runs.
type Processor struct {
	cooldown time.Duration
	limiters []*rate.Limiter
	metrics  *metrics.Metrics
}

// Stats summarizes a Run.
type Stats struct {
	// Total is the number of queued items.
	Total int
	// Succeeded counts items accepted by the provider.
	Succeeded int
	// Rejected counts items refused by the provider and abandoned.
	Rejected int
	// Throttled counts throttled attempts. It may exceed Total.
	Throttled int
}

// New creates a Processor.
func New(opts Options) *Processor {
	p := &Processor{
		cooldown: opts.Cooldown,
		metrics:  opts.Metrics,
	}
	if p.cooldown <= 0 {
		p.cooldown = DefaultCooldown
	}
	if p.metrics == nil {
		p.metrics = metrics.Noop()
	}
	if opts.RequestsPerSecond > 0 {
		p.limiters = append(p.limiters, rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1)))
	}
	if opts.RequestsPerMinute > 0 {
		n := opts.RequestsPerMinute
		p.limiters = append(p.limiters, rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n))
	}

	return p
}

// Run processes items to exhaustion with do, see Processor. op names the
// operation in logs and metrics.
func Run[T any](ctx context.Context, p *Processor, op string, items []T, do func(context.Context, T) error) (Stats, error) {
	ctx = logger.WithFields(ctx, zap.String("op", op))
	stats := Stats{Total: len(items)}
	if len(items) == 0 {
		return stats, nil
	}

	queue := list.New()
	for _, item := range items {
		queue.PushBack(item)
	}

	wave := 0
	waveStart := time.Now()
	for queue.Len() > 0 {
		item, _ := queue.Remove(queue.Front()).(T)

		for _, l := range p.limiters {
			if err := l.Wait(ctx); err != nil {
				return stats, fmt.Errorf("could not wait for request slot: %w", err)
			}
		}

		start := time.Now()
		err := do(ctx, item)
		took := time.Since(start)

		switch {
		case err == nil:
			stats.Succeeded++
			wave++
			p.metrics.RecordRequest(ctx, op, metrics.OutcomeSuccess, took)
			logger.Debug(ctx, "progress", zap.Int("succeeded", stats.Succeeded), zap.Int("total", stats.Total))
		case errors.Is(err, serrors.ErrRejected):
			stats.Rejected++
			p.metrics.RecordRequest(ctx, op, metrics.OutcomeRejected, took)
			logger.Warn(ctx, "request rejected", zap.Error(err))
		case errors.Is(err, serrors.ErrRateLimited):
			stats.Throttled++
			queue.PushFront(item)
			p.metrics.RecordRequest(ctx, op, metrics.OutcomeThrottled, took)
			logger.Warn(ctx, "rate limit reached",
				zap.Int("status", serrors.StatusCode(err)),
				zap.Float64("requestsPerSecond", throughput(wave, time.Since(waveStart))),
				zap.Int("waveRequests", wave),
				zap.Duration("cooldown", p.cooldown))

			if err := p.countdown(ctx); err != nil {
				return stats, err
			}
			logger.Info(ctx, "continue")
			wave = 0
			waveStart = time.Now()
		default:
			p.metrics.RecordRequest(ctx, op, metrics.OutcomeFailed, took)
			logger.Error(ctx, "request failed", zap.Error(err))

			return stats, fmt.Errorf("%s: %w", op, err)
		}
	}

	logger.Info(ctx, "completed",
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("rejected", stats.Rejected),
		zap.Int("total", stats.Total))

	return stats, nil
}

// countdown sleeps for the cool-down, logging the remaining time every
// countdownStep.
func (p *Processor) countdown(ctx context.Context) error {
	for remaining := p.cooldown; remaining > 0; {
		d := min(countdownStep, remaining)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()

			return fmt.Errorf("cool-down interrupted: %w", ctx.Err())
		case <-timer.C:
		}
		remaining -= d
		logger.Info(ctx, "waiting for rate limit reset", zap.Duration("remaining", remaining))
	}

	return nil
}

func throughput(requests int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(requests) / elapsed.Seconds()
}
