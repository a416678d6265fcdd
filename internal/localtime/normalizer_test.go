package localtime

import (
	"testing"
	"time"
)

func TestClockOfUsesConfiguredZone(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	n := New(seoul)

	// 01:30 UTC is 10:30 in Seoul (+09:00).
	utc := time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC)
	if got := n.ClockOf(utc); got != "10:30" {
		t.Fatalf("expected 10:30, got %s", got)
	}
	if got := n.MinuteOf(utc); got != 10*60+30 {
		t.Fatalf("expected minute 630, got %d", got)
	}
}

func TestClockOfZeroPads(t *testing.T) {
	n := New(time.UTC)
	at := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	if got := n.ClockOf(at); got != "09:05" {
		t.Fatalf("expected 09:05, got %s", got)
	}
}

func TestParseClock(t *testing.T) {
	minute, err := ParseClock("13:45")
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	if minute != 13*60+45 {
		t.Fatalf("expected 825, got %d", minute)
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatal("expected error for 25:00")
	}
	if _, err := ParseClock("9:00"); err == nil {
		t.Fatal("expected error for non-padded clock")
	}
}

func TestFormatMinuteRoundTrip(t *testing.T) {
	for _, clock := range []string{"00:00", "09:30", "13:00", "23:59"} {
		minute, err := ParseClock(clock)
		if err != nil {
			t.Fatalf("parse %s: %v", clock, err)
		}
		if got := FormatMinute(minute); got != clock {
			t.Fatalf("round trip %s -> %s", clock, got)
		}
	}
}

func TestAtAndParseDate(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	n := New(seoul)

	day, err := n.ParseDate("2026-03-02")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	at := n.At(day, 10*60+30)
	if got := at.UTC(); !got.Equal(time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected 01:30 UTC, got %s", got.Format(time.RFC3339))
	}
	if wd := n.Weekday(day); wd != time.Monday {
		t.Fatalf("expected Monday, got %s", wd)
	}
}
