// Package jobs runs the scheduler's periodic work on a gocron scheduler:
// refilling queues for idle learners and refreshing gauges.
package jobs

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/okian/leakcoach/pkg/logger"
	"github.com/okian/leakcoach/pkg/metrics"
)

const defaultRunTimeout = 5 * time.Minute

// Refiller builds batches for learners with empty queues.
type Refiller interface {
	RefillIdle(ctx context.Context) (int, error)
}

// DueCounter counts items due across all learners.
type DueCounter interface {
	CountDue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler owns the periodic jobs.
type Scheduler struct {
	sched      *gocron.Scheduler
	logger     logger.Logger
	now        func() time.Time
	runTimeout time.Duration
	base       context.Context //nolint:containedctx // jobs outlive the call that registers them
	cancel     context.CancelFunc
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger for job runs.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for the due gauge.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRunTimeout bounds each job run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// New creates a scheduler evaluating cron expressions in UTC. Jobs do not
// overlap with themselves.
func New(opts ...Option) *Scheduler {
	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()
	s := &Scheduler{
		sched:      sched,
		logger:     logger.Nop(),
		now:        time.Now,
		runTimeout: defaultRunTimeout,
		base:       context.Background(),
		cancel:     func() {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddRefill schedules r on a five-field cron expression.
func (s *Scheduler) AddRefill(cronExpr string, r Refiller) error {
	if _, err := s.sched.Cron(cronExpr).Tag("refill").Do(s.RunRefill, r); err != nil {
		return fmt.Errorf("schedule refill %q: %w", cronExpr, err)
	}
	return nil
}

// AddDueGauge refreshes the due items gauge every interval.
func (s *Scheduler) AddDueGauge(interval time.Duration, c DueCounter) error {
	if _, err := s.sched.Every(interval).Tag("due_gauge").Do(s.RunDueGauge, c); err != nil {
		return fmt.Errorf("schedule due gauge: %w", err)
	}
	return nil
}

// AddSystemMetrics samples memory and goroutine gauges every interval.
func (s *Scheduler) AddSystemMetrics(interval time.Duration) error {
	if _, err := s.sched.Every(interval).Tag("system").Do(updateSystemMetrics); err != nil {
		return fmt.Errorf("schedule system metrics: %w", err)
	}
	return nil
}

// Start runs the jobs in the background until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.base, s.cancel = context.WithCancel(ctx)
	s.sched.StartAsync()
	s.logger.Info(ctx, "jobs started", logger.Int("jobs", len(s.sched.Jobs())))
}

// Stop cancels running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.sched.Stop()
}

// RunRefill executes one refill pass.
func (s *Scheduler) RunRefill(r Refiller) {
	ctx, cancel := context.WithTimeout(s.base, s.runTimeout)
	defer cancel()

	start := time.Now()
	built, err := r.RefillIdle(ctx)
	if err != nil {
		s.logger.Error(ctx, "refill job failed", logger.Error(err), logger.Int("batches", built))
		return
	}
	s.logger.Debug(ctx, "refill job done", logger.Int("batches", built), logger.Duration("took", time.Since(start)))
}

// RunDueGauge executes one due gauge refresh.
func (s *Scheduler) RunDueGauge(c DueCounter) {
	ctx, cancel := context.WithTimeout(s.base, s.runTimeout)
	defer cancel()

	n, err := c.CountDue(ctx, s.now())
	if err != nil {
		s.logger.Warn(ctx, "due gauge refresh failed", logger.Error(err))
		return
	}
	metrics.UpdateDueItems(n)
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
