package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	applog "budgetmail/internal/log"
)

// ErrSchedulerRunning is returned by Start when the loop is already running.
var ErrSchedulerRunning = errors.New("report scheduler is already running")

// MonthlyReporter sends the reports for the month containing now.
type MonthlyReporter interface {
	SendMonthlyReports(ctx context.Context, now time.Time) (int, error)
}

// ReportSchedulerConfig holds configuration for the report scheduler
type ReportSchedulerConfig struct {
	// Hour of the last day of the month when reports go out (default: 20)
	Hour int

	// PollInterval caps how long the loop sleeps between checks (default: 1h)
	PollInterval time.Duration

	// Location the window is evaluated in (default: time.Local)
	Location *time.Location
}

// DefaultReportSchedulerConfig returns sensible defaults
func DefaultReportSchedulerConfig() ReportSchedulerConfig {
	return ReportSchedulerConfig{
		Hour:         20,
		PollInterval: time.Hour,
		Location:     time.Local,
	}
}

// ReportScheduler fires the monthly report run once, on the last day of
// each month at the configured hour.
type ReportScheduler struct {
	reporter MonthlyReporter
	window   FireWindow
	poll     time.Duration
	now      func() time.Time

	started atomic.Bool

	mu       sync.Mutex
	lastFire string // local date of the last successful run
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReportScheduler creates a scheduler around reporter.
func NewReportScheduler(reporter MonthlyReporter, config ReportSchedulerConfig) *ReportScheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Hour
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &ReportScheduler{
		reporter: reporter,
		window:   FireWindow{Hour: config.Hour, Location: config.Location},
		poll:     config.PollInterval,
		now:      time.Now,
	}
}

// Start launches the loop. A second call returns ErrSchedulerRunning.
func (s *ReportScheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSchedulerRunning
	}

	s.mu.Lock()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Report scheduler started",
		"hour", s.window.Hour,
		"poll_interval", s.poll,
		"location", s.window.loc().String(),
		applog.FieldNextRun, s.window.Next(s.now()))

	return nil
}

// Stop signals the loop and waits for it to exit.
func (s *ReportScheduler) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Report scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report scheduler stop timed out")
		return ctx.Err()
	}

	s.started.Store(false)
	return nil
}

// IsRunning returns whether the loop is running
func (s *ReportScheduler) IsRunning() bool {
	return s.started.Load()
}

func (s *ReportScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	for {
		_, sleep := s.Tick(ctx, s.now())

		timer := time.NewTimer(sleep)
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Tick runs one iteration at now: it fires the report run if now is inside
// the window and it has not already fired that day. It returns whether a
// run happened and how long to sleep before the next tick.
func (s *ReportScheduler) Tick(ctx context.Context, now time.Time) (fired bool, sleep time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "Report scheduler tick panicked",
				applog.FieldComponent, applog.ComponentScheduler,
				"panic", fmt.Sprint(rec))
			fired, sleep = false, s.poll
		}
	}()

	loc := s.window.loc()
	day := now.In(loc).Format("2006-01-02")

	if s.window.Contains(now) && !s.firedOn(day) {
		sent, err := s.reporter.SendMonthlyReports(ctx, now)
		if err != nil {
			slog.ErrorContext(ctx, "Monthly report run failed",
				applog.FieldComponent, applog.ComponentScheduler,
				"error", err)
			return false, s.poll
		}
		s.markFired(day)
		next := StartOfNextDay(now, loc)
		slog.InfoContext(ctx, "Monthly report run completed",
			applog.FieldComponent, applog.ComponentScheduler,
			"sent", sent,
			applog.FieldNextRun, next)
		return true, next.Sub(now)
	}

	if s.firedOn(day) {
		return false, StartOfNextDay(now, loc).Sub(now)
	}

	sleep = s.poll
	if until := s.window.Next(now).Sub(now); until > 0 && until < sleep {
		sleep = until
	}
	return false, sleep
}

func (s *ReportScheduler) firedOn(day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFire == day
}

func (s *ReportScheduler) markFired(day string) {
	s.mu.Lock()
	s.lastFire = day
	s.mu.Unlock()
}
