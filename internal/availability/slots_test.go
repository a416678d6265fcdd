package availability

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func starts(t *testing.T, slots []time.Time) map[string]bool {
	t.Helper()
	out := map[string]bool{}
	for _, s := range slots {
		out[s.Format("15:04")] = true
	}
	return out
}

func TestSlotStarts_LunchAndWorkBounds(t *testing.T) {
	// Designer works 10:00-19:00 with lunch 13:00-14:00; 60 minute service.
	lunch := &Interval{Start: at(13, 0), End: at(14, 0)}
	past := at(0, 0)

	slots := SlotStarts(at(10, 0), at(19, 0), time.Hour, lunch, nil, past)
	got := starts(t, slots)

	for _, blocked := range []string{"09:30", "12:30", "13:00", "13:30"} {
		if got[blocked] {
			t.Fatalf("slot %s should be excluded", blocked)
		}
	}
	for _, free := range []string{"10:00", "12:00", "14:00", "18:00"} {
		if !got[free] {
			t.Fatalf("slot %s should be available", free)
		}
	}
	// Last grid candidate that still fits is exactly work-end minus duration.
	if got["18:30"] {
		t.Fatal("18:30 does not leave room for a 60 minute service before 19:00")
	}
}

func TestSlotStarts_BusyIntervalsBlock(t *testing.T) {
	busy := []Interval{
		{Start: at(11, 0), End: at(12, 0)},  // existing booking
		{Start: at(16, 15), End: at(16, 45)}, // manual block off the grid
	}
	slots := SlotStarts(at(10, 0), at(19, 0), time.Hour, nil, busy, at(0, 0))
	got := starts(t, slots)

	for _, blocked := range []string{"10:30", "11:00", "11:30", "15:30", "16:00", "16:30"} {
		if got[blocked] {
			t.Fatalf("slot %s overlaps a busy interval", blocked)
		}
	}
	if !got["12:00"] {
		t.Fatal("12:00 starts exactly at the end of a busy interval and should be free")
	}
	if !got["17:00"] {
		t.Fatal("17:00 should be free")
	}
}

func TestSlotStarts_GridIndependentOfDuration(t *testing.T) {
	// A 45 minute service still walks the 30 minute grid.
	slots := SlotStarts(at(10, 0), at(12, 0), 45*time.Minute, nil, nil, at(0, 0))
	got := starts(t, slots)
	want := []string{"10:00", "10:30", "11:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for _, w := range want {
		if !got[w] {
			t.Fatalf("expected slot %s", w)
		}
	}
	// 11:15 is never a candidate even though 11:15+45m fits.
	if got["11:15"] {
		t.Fatal("candidates must stay on the fixed grid")
	}
}

func TestSlotStarts_SkipsPast(t *testing.T) {
	now := at(11, 10)
	slots := SlotStarts(at(10, 0), at(13, 0), 30*time.Minute, nil, nil, now)
	got := starts(t, slots)
	for _, blocked := range []string{"10:00", "10:30", "11:00"} {
		if got[blocked] {
			t.Fatalf("slot %s is in the past", blocked)
		}
	}
	if !got["11:30"] {
		t.Fatal("11:30 is in the future and should be offered")
	}
}

func TestSlotStarts_DegenerateInputs(t *testing.T) {
	if s := SlotStarts(at(10, 0), at(9, 0), time.Hour, nil, nil, at(0, 0)); s != nil {
		t.Fatal("inverted window should yield nothing")
	}
	if s := SlotStarts(at(10, 0), at(12, 0), 0, nil, nil, at(0, 0)); s != nil {
		t.Fatal("non-positive duration should yield nothing")
	}
	if s := SlotStarts(at(10, 0), at(12, 0), 3*time.Hour, nil, nil, at(0, 0)); s != nil {
		t.Fatal("duration longer than the window should yield nothing")
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	b := Interval{Start: at(13, 0), End: at(14, 0)}
	if Overlaps(at(12, 0), at(13, 0), b) {
		t.Fatal("interval ending at block start does not overlap")
	}
	if Overlaps(at(14, 0), at(15, 0), b) {
		t.Fatal("interval starting at block end does not overlap")
	}
	if !Overlaps(at(13, 30), at(14, 30), b) {
		t.Fatal("partial overlap should be detected")
	}
	if !Overlaps(at(12, 30), at(14, 30), b) {
		t.Fatal("containing interval should be detected")
	}
}
