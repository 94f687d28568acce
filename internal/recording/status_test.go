package recording

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusRecording, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusRecording, StatusCompleted, true},
		{StatusRecording, StatusFailed, true},
		{StatusRecording, StatusCancelled, true},
		{StatusRecording, StatusPending, false},
		{StatusCompleted, StatusRecording, false},
		{StatusFailed, StatusRecording, false},
		{StatusCancelled, StatusCompleted, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}

	for _, s := range []Status{StatusPending, StatusRecording} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestRecording_Complete(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rec := &Recording{Status: StatusRecording, StartTime: start}
	end := start.Add(90 * time.Second)

	if err := rec.Complete(end); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Expected status completed, got %s", rec.Status)
	}
	if rec.DurationSeconds != 90 {
		t.Errorf("Expected duration 90s, got %d", rec.DurationSeconds)
	}
}

func TestRecording_CompleteClampsEndBeforeStart(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := &Recording{Status: StatusRecording, StartTime: start}

	// Часы устройства отстали: конец раньше старта
	if err := rec.Complete(start.Add(-time.Hour)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if !rec.EndTime.Equal(start.Add(time.Second)) {
		t.Errorf("Expected end clamped to start+1s, got %v", rec.EndTime)
	}
	if rec.DurationSeconds != 1 {
		t.Errorf("Expected duration 1s, got %d", rec.DurationSeconds)
	}
}

func TestRecording_CompleteRejectsTerminal(t *testing.T) {
	rec := &Recording{Status: StatusCompleted, StartTime: time.Now()}

	err := rec.Complete(time.Now())
	if !IsInvalidState(err) {
		t.Errorf("Expected invalid state error, got %v", err)
	}
}
