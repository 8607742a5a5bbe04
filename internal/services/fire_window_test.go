package services

import (
	"testing"
	"time"
)

func TestFireWindow_Contains(t *testing.T) {
	w := FireWindow{Hour: 20, Location: time.UTC}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"last day at hour", time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC), true},
		{"last day late in hour", time.Date(2024, 1, 31, 20, 59, 59, 0, time.UTC), true},
		{"last day before hour", time.Date(2024, 1, 31, 19, 59, 0, 0, time.UTC), false},
		{"last day after hour", time.Date(2024, 1, 31, 21, 0, 0, 0, time.UTC), false},
		{"leap february", time.Date(2024, 2, 29, 20, 30, 0, 0, time.UTC), true},
		{"non-leap february", time.Date(2023, 2, 28, 20, 30, 0, 0, time.UTC), true},
		{"thirtieth of a 31-day month", time.Date(2024, 3, 30, 20, 0, 0, 0, time.UTC), false},
		{"thirtieth of a 30-day month", time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.now); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestFireWindow_ContainsUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	w := FireWindow{Hour: 20, Location: loc}

	// 14:30 UTC on the 31st is 20:00 in IST.
	if !w.Contains(time.Date(2024, 1, 31, 14, 30, 0, 0, time.UTC)) {
		t.Error("expected window to be evaluated in the configured location")
	}
	if w.Contains(time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)) {
		t.Error("20:00 UTC is past the window in IST")
	}
}

func TestFireWindow_Next(t *testing.T) {
	w := FireWindow{Hour: 20, Location: time.UTC}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid month",
			now:  time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC),
		},
		{
			name: "last day before hour",
			now:  time.Date(2024, 1, 31, 19, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at window start moves to next month",
			now:  time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC),
			want: time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC),
		},
		{
			name: "december rolls into next year",
			now:  time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC),
			want: time.Date(2025, 1, 31, 20, 0, 0, 0, time.UTC),
		},
		{
			name: "short month after long month",
			now:  time.Date(2023, 1, 31, 21, 0, 0, 0, time.UTC),
			want: time.Date(2023, 2, 28, 20, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.Next(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.now, got, tt.want)
			}
			if !got.After(tt.now) {
				t.Errorf("Next(%v) = %v is not after now", tt.now, got)
			}
		})
	}
}

func TestStartOfNextDay(t *testing.T) {
	got := StartOfNextDay(time.Date(2024, 1, 31, 20, 15, 0, 0, time.UTC), time.UTC)
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfNextDay() = %v, want %v", got, want)
	}
}
