package availability

import "time"

// GridStepMinutes is the fixed candidate grid. The step is independent
// of the requested duration; every candidate is collision-checked on
// its own, so a coarse grid cannot hide a conflict.
const GridStepMinutes = 30

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps applies the half-open test: [a1,a2) overlaps [b.Start,b.End)
// iff a1 < b.End && b.Start < a2.
func Overlaps(start, end time.Time, b Interval) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// SlotStarts returns candidate start times on the 30-minute grid from
// workStart to workEnd-duration inclusive where a booking of the given
// length would not overlap the lunch interval or any busy interval.
//
// All times are expected to be in the same location.
func SlotStarts(workStart, workEnd time.Time, duration time.Duration, lunch *Interval, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 {
		return nil
	}
	if !workEnd.After(workStart) {
		return nil
	}

	step := GridStepMinutes * time.Minute
	var slots []time.Time
	for t := workStart; !t.Add(duration).After(workEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		end := t.Add(duration)
		if lunch != nil && Overlaps(t, end, *lunch) {
			continue
		}
		if overlapsAny(t, end, busy) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b) {
			return true
		}
	}
	return false
}
