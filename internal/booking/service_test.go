package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jwseo/salonbook/internal/localtime"
	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/internal/outbox"
	"github.com/jwseo/salonbook/internal/schedule"
)

type fakeStore struct {
	bookings  map[string]model.Booking
	lineItems []model.BookingLineItem
	events    []outbox.Event
	nextID    int

	// A booked interval per designer; Create and Update fail with a
	// range conflict when the candidate overlaps, standing in for the
	// exclusion constraint.
	taken map[string][][2]time.Time
}

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

// conflictErr mimics the exclusion constraint firing.
func conflictErr() error {
	return &pgconn.PgError{Code: "23P01", Message: "conflicting key value violates exclusion constraint"}
}

func newFakeStore() *fakeStore {
	return &fakeStore{bookings: map[string]model.Booking{}, taken: map[string][][2]time.Time{}}
}

func (f *fakeStore) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeStore) conflicts(b model.Booking) bool {
	for _, iv := range f.taken[b.DesignerID] {
		if b.StartTime.Before(iv[1]) && iv[0].Before(b.EndTime) {
			return true
		}
	}
	return false
}

func (f *fakeStore) Create(_ context.Context, _ pgx.Tx, b *model.Booking) (string, error) {
	if f.conflicts(*b) {
		return "", conflictErr()
	}
	f.nextID++
	id := fmt.Sprintf("bk-%d", f.nextID)
	stored := *b
	stored.ID = id
	f.bookings[id] = stored
	return id, nil
}

func (f *fakeStore) InsertLineItem(_ context.Context, _ pgx.Tx, bookingID, menuName string, price int64) error {
	f.lineItems = append(f.lineItems, model.BookingLineItem{BookingID: bookingID, MenuName: menuName, Price: price})
	return nil
}

func (f *fakeStore) Get(_ context.Context, bookingID string) (model.Booking, error) {
	if b, ok := f.bookings[bookingID]; ok {
		return b, nil
	}
	return model.Booking{}, pgx.ErrNoRows
}

func (f *fakeStore) GetForUpdate(ctx context.Context, _ pgx.Tx, bookingID string) (model.Booking, error) {
	return f.Get(ctx, bookingID)
}

func (f *fakeStore) Update(_ context.Context, _ pgx.Tx, b model.Booking) error {
	if _, ok := f.bookings[b.ID]; !ok {
		return pgx.ErrNoRows
	}
	if f.conflicts(b) {
		return conflictErr()
	}
	f.bookings[b.ID] = b
	return nil
}

func (f *fakeStore) Delete(_ context.Context, bookingID string) error {
	if _, ok := f.bookings[bookingID]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.bookings, bookingID)
	return nil
}

func (f *fakeStore) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

type fakeDirectory struct {
	shops     map[string]model.Shop
	designers map[string]model.Designer
	menus     map[string]model.Menu
}

func (f *fakeDirectory) GetShop(_ context.Context, id string) (model.Shop, error) {
	if s, ok := f.shops[id]; ok {
		return s, nil
	}
	return model.Shop{}, pgx.ErrNoRows
}

func (f *fakeDirectory) GetDesigner(_ context.Context, id string) (model.Designer, error) {
	if d, ok := f.designers[id]; ok {
		return d, nil
	}
	return model.Designer{}, pgx.ErrNoRows
}

func (f *fakeDirectory) GetMenu(_ context.Context, _, id string) (model.Menu, error) {
	if m, ok := f.menus[id]; ok {
		return m, nil
	}
	return model.Menu{}, pgx.ErrNoRows
}

func intp(v int) *int { return &v }

var seoul = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		panic(err)
	}
	return loc
}()

// Shop 10:00-20:00, closed Sunday. Designer works 10:00-19:00, lunch
// 12:00-13:00, Monday off.
func fixtures() *fakeDirectory {
	return &fakeDirectory{
		shops: map[string]model.Shop{
			"shop-1": {
				ID:             "shop-1",
				OpenMinute:     10 * 60,
				CloseMinute:    20 * 60,
				ClosedWeekdays: model.Weekdays{time.Sunday},
			},
		},
		designers: map[string]model.Designer{
			"dsg-1": {
				ID:               "dsg-1",
				ShopID:           "shop-1",
				Active:           true,
				WorkStartMinute:  intp(10 * 60),
				WorkEndMinute:    intp(19 * 60),
				LunchStartMinute: intp(12 * 60),
				LunchEndMinute:   intp(13 * 60),
				DaysOff:          model.Weekdays{time.Monday},
			},
		},
		menus: map[string]model.Menu{
			"menu-1": {ID: "menu-1", ShopID: "shop-1", Name: "Cut", Price: 30000},
		},
	}
}

func newTestService(store *fakeStore, dir *fakeDirectory) *Service {
	v := schedule.NewValidator(localtime.New(seoul))
	return NewService(store, dir, store, v, slog.Default())
}

// Tuesday in the shop zone, offset by clock minutes.
func at(minute int) time.Time {
	return time.Date(2026, 3, 3, 0, 0, 0, 0, seoul).Add(time.Duration(minute) * time.Minute)
}

func createInput(start, end time.Time) CreateInput {
	return CreateInput{
		ShopID:     "shop-1",
		DesignerID: "dsg-1",
		CustomerID: "cust-1",
		MenuID:     "menu-1",
		StartTime:  start,
		EndTime:    end,
	}
}

func TestCreateFreezesMenuSnapshot(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fixtures())

	out, err := svc.Create(context.Background(), createInput(at(14*60), at(15*60)), false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.Booking == nil || out.Conflict != nil {
		t.Fatalf("expected a booking, got %+v", out)
	}
	if out.Booking.Status != model.BookingPending {
		t.Fatalf("default status should be PENDING, got %s", out.Booking.Status)
	}
	if len(store.lineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(store.lineItems))
	}
	li := store.lineItems[0]
	if li.MenuName != "Cut" || li.Price != 30000 {
		t.Fatalf("line item must snapshot the menu: %+v", li)
	}
	if len(store.events) != 1 || store.events[0].EventType != "salon.booking.created.v1" {
		t.Fatalf("expected created event, got %+v", store.events)
	}
}

func TestCreateSoftConflictReturnedNotPersisted(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fixtures())

	// 12:30 falls inside lunch.
	out, err := svc.Create(context.Background(), createInput(at(12*60+30), at(13*60+30)), false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.Conflict == nil {
		t.Fatal("expected a soft conflict")
	}
	if out.Conflict.Code != schedule.SoftInsideLunch {
		t.Fatalf("expected inside_lunch, got %s", out.Conflict.Code)
	}
	if len(store.bookings) != 0 {
		t.Fatal("soft conflict must not persist the booking")
	}

	// Resubmit with force.
	out, err = svc.Create(context.Background(), createInput(at(12*60+30), at(13*60+30)), true)
	if err != nil {
		t.Fatalf("forced create: %v", err)
	}
	if out.Booking == nil {
		t.Fatal("force must override the soft conflict")
	}
}

func TestCreateHardErrorIgnoresForce(t *testing.T) {
	svc := newTestService(newFakeStore(), fixtures())

	// 21:00 is after close, even with force.
	_, err := svc.Create(context.Background(), createInput(at(21*60), at(22*60)), true)
	var hard HardRuleError
	if !errors.As(err, &hard) {
		t.Fatalf("expected HardRuleError, got %v", err)
	}
	if hard.Kind != schedule.HardOutsideShopHours {
		t.Fatalf("expected outside_shop_hours, got %s", hard.Kind)
	}
}

func TestCreateSlotTaken(t *testing.T) {
	store := newFakeStore()
	store.taken["dsg-1"] = [][2]time.Time{{at(14 * 60), at(15 * 60)}}
	svc := newTestService(store, fixtures())

	_, err := svc.Create(context.Background(), createInput(at(14*60+30), at(15*60+30)), false)
	if err != ErrSlotTaken {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := newTestService(newFakeStore(), fixtures())
	ctx := context.Background()

	if _, err := svc.Create(ctx, createInput(at(15*60), at(14*60)), false); err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	in := createInput(at(14*60), at(15*60))
	in.Status = model.BookingCompleted
	if _, err := svc.Create(ctx, in, false); err != ErrStatusViaComplete {
		t.Fatalf("expected ErrStatusViaComplete, got %v", err)
	}
	in = createInput(at(14*60), at(15*60))
	in.DesignerID = "nobody"
	if _, err := svc.Create(ctx, in, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown designer, got %v", err)
	}
}

func TestCreateInactiveDesignerNotFound(t *testing.T) {
	dir := fixtures()
	d := dir.designers["dsg-1"]
	d.Active = false
	dir.designers["dsg-1"] = d
	svc := newTestService(newFakeStore(), dir)

	_, err := svc.Create(context.Background(), createInput(at(14*60), at(15*60)), false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive designer, got %v", err)
	}
}

func TestUpdatePatchMerge(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fixtures())
	ctx := context.Background()

	out, err := svc.Create(ctx, createInput(at(14*60), at(15*60)), false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := out.Booking.ID

	memo := "bring photo reference"
	out, err = svc.Update(ctx, id, Patch{Memo: &memo}, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got := out.Booking
	if got.Memo != memo {
		t.Fatalf("memo not applied: %q", got.Memo)
	}
	if !got.StartTime.Equal(at(14*60)) || !got.EndTime.Equal(at(15*60)) {
		t.Fatal("untouched fields must keep stored values")
	}
	if store.events[len(store.events)-1].EventType != "salon.booking.updated.v1" {
		t.Fatal("expected updated event")
	}
}

func TestUpdateRevalidatesWhenScheduleMoves(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fixtures())
	ctx := context.Background()

	out, err := svc.Create(ctx, createInput(at(14*60), at(15*60)), false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := out.Booking.ID

	// Moving into lunch surfaces the soft conflict again.
	start, end := at(12*60), at(13*60)
	out, err = svc.Update(ctx, id, Patch{StartTime: &start, EndTime: &end}, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Conflict == nil || out.Conflict.Code != schedule.SoftInsideLunch {
		t.Fatalf("expected inside_lunch conflict, got %+v", out)
	}
	if !store.bookings[id].StartTime.Equal(at(14 * 60)) {
		t.Fatal("soft conflict must leave the stored booking unchanged")
	}

	// A memo-only patch does not re-run schedule validation.
	memo := "note"
	if _, err := svc.Update(ctx, id, Patch{Memo: &memo}, false); err != nil {
		t.Fatalf("memo patch: %v", err)
	}
}

func TestUpdateCompletedLocked(t *testing.T) {
	store := newFakeStore()
	store.bookings["done"] = model.Booking{
		ID: "done", ShopID: "shop-1", DesignerID: "dsg-1",
		StartTime: at(14 * 60), EndTime: at(15 * 60),
		Status: model.BookingCompleted,
	}
	svc := newTestService(store, fixtures())

	memo := "x"
	_, err := svc.Update(context.Background(), "done", Patch{Memo: &memo}, false)
	if err != ErrCompletedLocked {
		t.Fatalf("expected ErrCompletedLocked, got %v", err)
	}
}

func TestUpdateStatusCompletedRejected(t *testing.T) {
	svc := newTestService(newFakeStore(), fixtures())

	st := model.BookingCompleted
	_, err := svc.Update(context.Background(), "any", Patch{Status: &st}, false)
	if err != ErrStatusViaComplete {
		t.Fatalf("expected ErrStatusViaComplete, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fixtures())
	ctx := context.Background()

	out, err := svc.Create(ctx, createInput(at(14*60), at(15*60)), false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Remove(ctx, out.Booking.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.Get(ctx, out.Booking.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := svc.Remove(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing booking, got %v", err)
	}
}
