package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jwseo/salonbook/internal/localtime"
	"github.com/jwseo/salonbook/internal/model"
)

type fakeDirectory struct {
	shop      model.Shop
	designers []model.Designer
}

func (f *fakeDirectory) GetShop(_ context.Context, shopID string) (model.Shop, error) {
	return f.shop, nil
}

func (f *fakeDirectory) GetDesigner(_ context.Context, designerID string) (model.Designer, error) {
	for _, d := range f.designers {
		if d.ID == designerID {
			return d, nil
		}
	}
	return model.Designer{}, errNotFound
}

func (f *fakeDirectory) ListActiveDesigners(_ context.Context, shopID string) ([]model.Designer, error) {
	var out []model.Designer
	for _, d := range f.designers {
		if d.Active && d.ShopID == shopID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeBusy struct {
	byDesigner map[string][]Interval
}

func (f *fakeBusy) ListBusyIntervals(_ context.Context, designerID string, _, _ time.Time) ([]Interval, error) {
	return f.byDesigner[designerID], nil
}

var errNotFound = errors.New("not found")

func minutes(h, m int) *int {
	v := h*60 + m
	return &v
}

func testCalculator(dir *fakeDirectory, busy *fakeBusy) *Calculator {
	clock := localtime.New(time.UTC)
	c := NewCalculator(dir, busy, clock, 60)
	// Fixed "now" well before the test date so no slot is past-filtered.
	return c.WithNow(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) })
}

func baseShop() model.Shop {
	return model.Shop{
		ID:             "shop-1",
		Name:           "test shop",
		OpenMinute:     10 * 60,
		CloseMinute:    20 * 60,
		ClosedWeekdays: model.Weekdays{time.Sunday},
	}
}

func TestComputeSlots_SpecExample(t *testing.T) {
	dir := &fakeDirectory{
		shop: baseShop(),
		designers: []model.Designer{{
			ID: "d1", ShopID: "shop-1", Active: true,
			WorkStartMinute: minutes(10, 0), WorkEndMinute: minutes(19, 0),
			LunchStartMinute: minutes(13, 0), LunchEndMinute: minutes(14, 0),
		}},
	}
	c := testCalculator(dir, &fakeBusy{})

	// 2026-03-02 is a Monday.
	slots, err := c.ComputeSlots(context.Background(), "shop-1", "2026-03-02", 60, "")
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	got := map[string]bool{}
	for _, s := range slots {
		got[s] = true
	}
	for _, absent := range []string{"09:30", "12:30", "13:30"} {
		if got[absent] {
			t.Fatalf("%s must not appear", absent)
		}
	}
	if !got["18:00"] {
		t.Fatal("18:00 must appear when unblocked")
	}
	for i := 1; i < len(slots); i++ {
		if slots[i-1] >= slots[i] {
			t.Fatalf("slots not ascending: %v", slots)
		}
	}
}

func TestComputeSlots_ClosedWeekdayRejectsWholeDate(t *testing.T) {
	dir := &fakeDirectory{
		shop: baseShop(),
		designers: []model.Designer{{
			ID: "d1", ShopID: "shop-1", Active: true,
		}},
	}
	c := testCalculator(dir, &fakeBusy{})

	// 2026-03-01 is a Sunday; shop closes Sundays.
	slots, err := c.ComputeSlots(context.Background(), "shop-1", "2026-03-01", 60, "")
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected empty result on a closed weekday, got %v", slots)
	}
}

func TestComputeSlots_DayOffSkipsDesignerOnly(t *testing.T) {
	dir := &fakeDirectory{
		shop: baseShop(),
		designers: []model.Designer{
			{
				ID: "off", ShopID: "shop-1", Active: true,
				DaysOff: model.Weekdays{time.Monday},
			},
			{
				ID: "on", ShopID: "shop-1", Active: true,
				WorkStartMinute: minutes(11, 0), WorkEndMinute: minutes(12, 0),
			},
		},
	}
	c := testCalculator(dir, &fakeBusy{})

	slots, err := c.ComputeSlots(context.Background(), "shop-1", "2026-03-02", 60, "")
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	if len(slots) != 1 || slots[0] != "11:00" {
		t.Fatalf("expected only the working designer's 11:00, got %v", slots)
	}
}

func TestComputeSlots_UnionHidesWhichDesignerIsFree(t *testing.T) {
	dir := &fakeDirectory{
		shop: baseShop(),
		designers: []model.Designer{
			{
				ID: "d1", ShopID: "shop-1", Active: true,
				WorkStartMinute: minutes(10, 0), WorkEndMinute: minutes(12, 0),
			},
			{
				ID: "d2", ShopID: "shop-1", Active: true,
				WorkStartMinute: minutes(11, 0), WorkEndMinute: minutes(13, 0),
			},
		},
	}
	busy := &fakeBusy{byDesigner: map[string][]Interval{
		"d1": {{
			Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		}},
	}}
	c := testCalculator(dir, busy)

	slots, err := c.ComputeSlots(context.Background(), "shop-1", "2026-03-02", 60, "")
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	// 10:30 blocked for d1 and outside d2's hours; 11:00 free for both but
	// appears once.
	want := []string{"11:00", "11:30", "12:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestComputeSlots_InactiveRequestedDesigner(t *testing.T) {
	dir := &fakeDirectory{
		shop: baseShop(),
		designers: []model.Designer{{
			ID: "d1", ShopID: "shop-1", Active: false,
		}},
	}
	c := testCalculator(dir, &fakeBusy{})

	slots, err := c.ComputeSlots(context.Background(), "shop-1", "2026-03-02", 60, "d1")
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("inactive designer should yield no slots, got %v", slots)
	}
}

func TestComputeSlots_BeyondLookaheadIsEmpty(t *testing.T) {
	dir := &fakeDirectory{
		shop: baseShop(),
		designers: []model.Designer{{
			ID: "d1", ShopID: "shop-1", Active: true,
		}},
	}
	c := testCalculator(dir, &fakeBusy{})

	slots, err := c.ComputeSlots(context.Background(), "shop-1", "2027-01-04", 60, "")
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("dates beyond the lookahead bound should be empty, got %v", slots)
	}
}

func TestComputeSlots_MissingWorkHoursFallBackToShopHours(t *testing.T) {
	dir := &fakeDirectory{
		shop: baseShop(),
		designers: []model.Designer{{
			ID: "d1", ShopID: "shop-1", Active: true,
		}},
	}
	c := testCalculator(dir, &fakeBusy{})

	slots, err := c.ComputeSlots(context.Background(), "shop-1", "2026-03-02", 60, "")
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	got := map[string]bool{}
	for _, s := range slots {
		got[s] = true
	}
	if !got["10:00"] || !got["19:00"] {
		t.Fatalf("expected shop-hour bounds 10:00..19:00, got %v", slots)
	}
	if got["09:30"] || got["19:30"] {
		t.Fatalf("slots outside shop hours leaked: %v", slots)
	}
}
