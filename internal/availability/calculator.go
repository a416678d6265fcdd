package availability

import (
	"context"
	"sort"
	"time"

	"github.com/jwseo/salonbook/internal/localtime"
	"github.com/jwseo/salonbook/internal/model"
)

// Directory resolves shop and designer records.
type Directory interface {
	GetShop(ctx context.Context, shopID string) (model.Shop, error)
	GetDesigner(ctx context.Context, designerID string) (model.Designer, error)
	ListActiveDesigners(ctx context.Context, shopID string) ([]model.Designer, error)
}

// BusyReader lists the occupied intervals (active bookings plus manual
// schedule blocks) for one designer inside [from, to).
type BusyReader interface {
	ListBusyIntervals(ctx context.Context, designerID string, from, to time.Time) ([]Interval, error)
}

// Calculator enumerates bookable start times. It is a pure read path:
// no validation side effects, safe to run per designer in parallel.
type Calculator struct {
	dir           Directory
	busy          BusyReader
	clock         localtime.Normalizer
	lookaheadDays int
	now           func() time.Time
}

func NewCalculator(dir Directory, busy BusyReader, clock localtime.Normalizer, lookaheadDays int) *Calculator {
	if lookaheadDays <= 0 {
		lookaheadDays = 60
	}
	return &Calculator{
		dir:           dir,
		busy:          busy,
		clock:         clock,
		lookaheadDays: lookaheadDays,
		now:           time.Now,
	}
}

// WithNow overrides the wall clock. Test hook.
func (c *Calculator) WithNow(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// ComputeSlots returns the ascending, deduplicated union of free
// "HH:mm" start clocks across the considered designers. The caller
// never learns which designer is free at a given slot.
func (c *Calculator) ComputeSlots(ctx context.Context, shopID, date string, durationMinutes int, designerID string) ([]string, error) {
	if durationMinutes <= 0 {
		return []string{}, nil
	}
	day, err := c.clock.ParseDate(date)
	if err != nil {
		return nil, err
	}
	now := c.now()
	if day.After(now.AddDate(0, 0, c.lookaheadDays)) {
		return []string{}, nil
	}

	shop, err := c.dir.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	weekday := c.clock.Weekday(day)
	if shop.ClosedWeekdays.Contains(weekday) {
		return []string{}, nil
	}

	designers, err := c.resolveDesigners(ctx, shop, designerID)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(durationMinutes) * time.Minute
	dayStart := c.clock.At(day, 0)
	dayEnd := dayStart.AddDate(0, 0, 1)

	minutes := map[int]struct{}{}
	for _, d := range designers {
		if d.DaysOff.Contains(weekday) {
			continue
		}
		workStart, workEnd := c.workWindow(shop, d)
		if workEnd <= workStart {
			continue
		}

		var lunch *Interval
		if d.LunchStartMinute != nil && d.LunchEndMinute != nil {
			lunch = &Interval{
				Start: c.clock.At(day, *d.LunchStartMinute),
				End:   c.clock.At(day, *d.LunchEndMinute),
			}
		}

		busy, err := c.busy.ListBusyIntervals(ctx, d.ID, dayStart, dayEnd.Add(duration))
		if err != nil {
			return nil, err
		}

		starts := SlotStarts(c.clock.At(day, workStart), c.clock.At(day, workEnd), duration, lunch, busy, now)
		for _, s := range starts {
			minutes[c.clock.MinuteOf(s)] = struct{}{}
		}
	}

	out := make([]string, 0, len(minutes))
	keys := make([]int, 0, len(minutes))
	for m := range minutes {
		keys = append(keys, m)
	}
	sort.Ints(keys)
	for _, m := range keys {
		out = append(out, localtime.FormatMinute(m))
	}
	return out, nil
}

func (c *Calculator) resolveDesigners(ctx context.Context, shop model.Shop, designerID string) ([]model.Designer, error) {
	if designerID == "" {
		return c.dir.ListActiveDesigners(ctx, shop.ID)
	}
	d, err := c.dir.GetDesigner(ctx, designerID)
	if err != nil {
		return nil, err
	}
	if !d.Active || d.ShopID != shop.ID {
		return nil, nil
	}
	return []model.Designer{d}, nil
}

// workWindow resolves the designer's work hours in minutes of day,
// falling back to shop hours when the designer record leaves them
// unset. An overnight shop (close before open) keeps the segment from
// open to midnight for the requested date.
func (c *Calculator) workWindow(shop model.Shop, d model.Designer) (int, int) {
	open, close := shop.OpenMinute, shop.CloseMinute
	if close <= open {
		close = 24 * 60
	}
	start, end := open, close
	if d.WorkStartMinute != nil {
		start = *d.WorkStartMinute
	}
	if d.WorkEndMinute != nil {
		end = *d.WorkEndMinute
	}
	return start, end
}
