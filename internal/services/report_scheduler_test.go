package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeReporter struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	panic bool
}

func (f *fakeReporter) SendMonthlyReports(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("boom")
	}
	f.calls = append(f.calls, now)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(r MonthlyReporter) *ReportScheduler {
	return NewReportScheduler(r, ReportSchedulerConfig{
		Hour:         20,
		PollInterval: time.Hour,
		Location:     time.UTC,
	})
}

func TestDefaultReportSchedulerConfig(t *testing.T) {
	config := DefaultReportSchedulerConfig()

	if config.Hour != 20 {
		t.Errorf("expected Hour 20, got %d", config.Hour)
	}
	if config.PollInterval != time.Hour {
		t.Errorf("expected PollInterval 1h, got %v", config.PollInterval)
	}
	if config.Location != time.Local {
		t.Errorf("expected Local location, got %v", config.Location)
	}
}

func TestReportScheduler_FiresOncePerDayUnderPolling(t *testing.T) {
	for _, step := range []time.Duration{time.Hour, 15 * time.Minute, time.Minute} {
		t.Run(step.String(), func(t *testing.T) {
			r := &fakeReporter{}
			s := newTestScheduler(r)
			ctx := context.Background()

			start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
			end := time.Date(2024, 2, 1, 6, 0, 0, 0, time.UTC)
			for now := start; now.Before(end); now = now.Add(step) {
				s.Tick(ctx, now)
			}

			if r.count() != 1 {
				t.Fatalf("expected exactly one run, got %d", r.count())
			}
			if got := r.calls[0]; got.Hour() != 20 || got.Day() != 31 {
				t.Errorf("run happened at %v, want Jan 31 20:xx", got)
			}
		})
	}
}

func TestReportScheduler_FollowingItsOwnSleeps(t *testing.T) {
	r := &fakeReporter{}
	s := newTestScheduler(r)
	ctx := context.Background()

	now := time.Date(2024, 1, 10, 7, 23, 0, 0, time.UTC)
	end := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for now.Before(end) {
		_, sleep := s.Tick(ctx, now)
		if sleep <= 0 || sleep > 24*time.Hour {
			t.Fatalf("unexpected sleep %v at %v", sleep, now)
		}
		now = now.Add(sleep)
	}

	want := []time.Time{
		time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC),
	}
	if len(r.calls) != len(want) {
		t.Fatalf("expected %d runs, got %d: %v", len(want), len(r.calls), r.calls)
	}
	for i := range want {
		if !r.calls[i].Equal(want[i]) {
			t.Errorf("run %d at %v, want %v", i, r.calls[i], want[i])
		}
	}
}

func TestReportScheduler_TickSleeps(t *testing.T) {
	s := newTestScheduler(&fakeReporter{})
	ctx := context.Background()

	tests := []struct {
		name      string
		now       time.Time
		wantFired bool
		wantSleep time.Duration
	}{
		{
			name:      "far from window sleeps poll interval",
			now:       time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
			wantSleep: time.Hour,
		},
		{
			name:      "just before window sleeps until it opens",
			now:       time.Date(2024, 1, 31, 19, 40, 0, 0, time.UTC),
			wantSleep: 20 * time.Minute,
		},
		{
			name:      "in window fires and sleeps to next day",
			now:       time.Date(2024, 1, 31, 20, 30, 0, 0, time.UTC),
			wantFired: true,
			wantSleep: 3*time.Hour + 30*time.Minute,
		},
		{
			name:      "same day after firing sleeps to next day",
			now:       time.Date(2024, 1, 31, 20, 45, 0, 0, time.UTC),
			wantSleep: 3*time.Hour + 15*time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired, sleep := s.Tick(ctx, tt.now)
			if fired != tt.wantFired {
				t.Errorf("fired = %v, want %v", fired, tt.wantFired)
			}
			if sleep != tt.wantSleep {
				t.Errorf("sleep = %v, want %v", sleep, tt.wantSleep)
			}
		})
	}
}

func TestReportScheduler_FailedRunIsRetried(t *testing.T) {
	r := &fakeReporter{err: errors.New("database is locked")}
	s := NewReportScheduler(r, ReportSchedulerConfig{Hour: 20, PollInterval: 10 * time.Minute, Location: time.UTC})
	ctx := context.Background()

	now := time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)
	fired, sleep := s.Tick(ctx, now)
	if fired || sleep != 10*time.Minute {
		t.Fatalf("failed run: fired=%v sleep=%v", fired, sleep)
	}

	r.mu.Lock()
	r.err = nil
	r.mu.Unlock()

	fired, _ = s.Tick(ctx, now.Add(sleep))
	if !fired {
		t.Fatal("expected retry inside the window to fire")
	}
	if r.count() != 2 {
		t.Errorf("expected 2 attempts, got %d", r.count())
	}
}

func TestReportScheduler_TickRecoversPanic(t *testing.T) {
	s := newTestScheduler(&fakeReporter{panic: true})

	fired, sleep := s.Tick(context.Background(), time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC))
	if fired {
		t.Error("panicking run must not count as fired")
	}
	if sleep != time.Hour {
		t.Errorf("expected fallback sleep of poll interval, got %v", sleep)
	}
}

func TestReportScheduler_StartTwice(t *testing.T) {
	s := newTestScheduler(&fakeReporter{})
	s.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running after Start")
	}
	if err := s.Start(ctx); !errors.Is(err, ErrSchedulerRunning) {
		t.Errorf("second Start() error = %v, want ErrSchedulerRunning", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}
}

func TestReportScheduler_StopNotRunning(t *testing.T) {
	s := newTestScheduler(&fakeReporter{})
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestReportScheduler_StopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(&fakeReporter{})
	s.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
}
