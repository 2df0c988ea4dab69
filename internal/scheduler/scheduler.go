// Package scheduler triggers monitoring cycles on a fixed, reconfigurable interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrCycleInProgress is returned by RunNow while another cycle is running.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// Runner performs one monitoring cycle.
type Runner interface {
	RunCycle(ctx context.Context, force bool, reason string) (int, error)
}

// Scheduler runs cycles every interval and on demand, never more than one at a time.
type Scheduler struct {
	runner Runner
	log    *slog.Logger
	cron   *cron.Cron

	mu       sync.Mutex
	interval time.Duration
	entry    cron.EntryID
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc

	// cycle is held for the whole duration of a cycle.
	cycle sync.Mutex
}

// New creates a stopped Scheduler.
func New(runner Runner, interval time.Duration, log *slog.Logger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		runner:   runner,
		log:      log,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		interval: interval,
		ctx:      context.Background(),
	}
}

// Start begins periodic cycles. Cycles started by the timer use a context
// derived from ctx. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if err := validInterval(s.interval); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.tick))
	s.cron.Start()
	s.running = true

	s.log.Info("scheduler started", "interval", s.interval)
	return nil
}

// Reschedule changes the period. A stopped scheduler keeps it for the next Start.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	if err := validInterval(interval); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = interval
	if !s.running {
		return nil
	}
	s.cron.Remove(s.entry)
	s.entry = s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.tick))

	s.log.Info("scheduler rescheduled", "interval", interval)
	return nil
}

// Interval returns the current period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// RunNow runs a forced cycle immediately. It returns ErrCycleInProgress
// instead of waiting when a cycle is already running.
func (s *Scheduler) RunNow(ctx context.Context, reason string) (int, error) {
	return s.run(ctx, true, reason)
}

// Shutdown stops the timer, cancels the running cycle and waits for it to
// return until ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.cancel()
		s.cron.Stop()
		s.cron.Remove(s.entry)
		s.running = false
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.cycle.Lock()
		s.cycle.Unlock() //nolint:staticcheck // waiting for the in-flight cycle
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running cycle: %w", ctx.Err())
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.run(ctx, false, "auto"); errors.Is(err, ErrCycleInProgress) {
		s.log.Warn("previous cycle still running, tick skipped")
	}
}

func (s *Scheduler) run(ctx context.Context, force bool, reason string) (n int, err error) {
	if !s.cycle.TryLock() {
		return 0, ErrCycleInProgress
	}
	defer s.cycle.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("monitoring cycle panicked", "reason", reason, "panic", r)
			n, err = 0, fmt.Errorf("monitoring cycle panicked: %v", r)
		}
	}()

	n, err = s.runner.RunCycle(ctx, force, reason)
	if err != nil {
		s.log.Error("monitoring cycle failed", "reason", reason, "error", err)
	}
	return n, err
}

func validInterval(d time.Duration) error {
	if d < time.Second {
		return fmt.Errorf("interval %s is below one second", d)
	}
	return nil
}

// cronLogger routes cron's internal messages to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
