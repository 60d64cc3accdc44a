// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"site-inspector/internal/metrics"
)

const defaultRunTimeout = 2 * time.Minute

// Cleaner removes refresh tokens that can no longer be used.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron       *cron.Cron
	cleaner    Cleaner
	metrics    *metrics.Metrics
	runTimeout time.Duration
}

// New registers the cleanup job on spec (standard cron syntax or
// descriptors such as "@every 1h"). Overlapping runs are skipped.
func New(spec string, cleaner Cleaner, m *metrics.Metrics) (*Scheduler, error) {
	logger := slogLogger{log: slog.Default().With("component", "scheduler")}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		cleaner:    cleaner,
		metrics:    m,
		runTimeout: defaultRunTimeout,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule token cleanup %q: %w", spec, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for a running job or ctx, whichever
// finishes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one cleanup sweep. Failures are logged, never returned.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.cleaner.CleanupExpired(ctx)
	s.metrics.CleanupRun(err)
	if err != nil {
		slog.Error("token cleanup failed", "error", err, "duration", time.Since(start))
		return
	}

	slog.Info("token cleanup finished", "deleted", n, "duration", time.Since(start))
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct {
	log *slog.Logger
}

func (l slogLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l slogLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
