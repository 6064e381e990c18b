package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsAtlas/internal/ports"
)

// CronScheduler runs a job on a cron schedule ("@every 30s", "*/5 * * * *", ...).
// Overlapping runs are skipped.
type CronScheduler struct {
	spec   string
	logger *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron

	// first tracks the run fired at Start, which cron's own stop context does not cover.
	first sync.WaitGroup
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, log *slog.Logger) *CronScheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CronScheduler{spec: spec, logger: log.With("component", "scheduler")}
}

// Start runs job once right away, then on every schedule tick until Stop or ctx is done.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cl := cronLogger{c.logger}
	cr := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	id, err := cr.AddFunc(c.spec, func() { job(time.Now()) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}
	c.cron = cr

	// Run the first pass through the same wrapped job so it is guarded against overlap too.
	wrapped := cr.Entry(id).WrappedJob
	c.first.Add(1)
	go func() {
		defer c.first.Done()
		wrapped.Run()
	}()
	cr.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts scheduling and waits for running jobs, including the initial
// run, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cron == nil {
		c.mu.Unlock()
		return nil
	}
	stopped := c.cron.Stop()
	c.cron = nil
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		c.first.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
