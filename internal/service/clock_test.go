package service

import (
	"testing"
	"time"

	"github.com/xolan/mondo/internal/config"
)

func TestClockService_Countdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CountdownTarget = "2025-07-01T00:00:00+09:00"
	svc := NewClockService(cfg)

	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.FixedZone("KST", 9*3600))
	b, err := svc.Countdown(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Days != 1 || b.Hours != 0 || b.Minutes != 0 || b.Seconds != 0 {
		t.Errorf("expected 1 day left, got %+v", b)
	}
}

func TestClockService_Together(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TogetherSince = "2023-07-20T00:00:00+09:00"
	cfg.ElapsedAlgorithm = "calendar"
	svc := NewClockService(cfg)

	now := time.Date(2024, 8, 21, 1, 0, 0, 0, time.FixedZone("KST", 9*3600))
	b, err := svc.Together(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Years != 1 || b.Months != 1 || b.Days != 1 || b.Hours != 1 {
		t.Errorf("expected 1y 1mo 1d 1h, got %+v", b)
	}
}

func TestClockService_InvalidReference(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CountdownTarget = "someday"
	svc := NewClockService(cfg)

	if _, err := svc.Countdown(time.Now()); err == nil {
		t.Error("expected error for invalid countdown target")
	}
}

func TestClockService_Location(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "Asia/Seoul"
	if got := NewClockService(cfg).Location().String(); got != "Asia/Seoul" {
		t.Errorf("expected Asia/Seoul, got %q", got)
	}

	cfg.Timezone = "Not/AZone"
	if got := NewClockService(cfg).Location(); got != time.Local {
		t.Errorf("expected fallback to local time, got %v", got)
	}
}
