package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/internal/outbox"
	"github.com/jwseo/salonbook/internal/schedule"
	"github.com/jwseo/salonbook/internal/storage"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRange      = errors.New("end time must be after start time")
	ErrSlotTaken         = errors.New("time slot already booked")
	ErrCompletedLocked   = errors.New("completed bookings cannot be edited")
	ErrStatusViaComplete = errors.New("status COMPLETED is set only by completion")
)

// HardRuleError is a non-overridable validation failure. force=true
// never bypasses it.
type HardRuleError struct {
	Kind schedule.HardKind
}

func (e HardRuleError) Error() string {
	return fmt.Sprintf("booking violates rule %s", e.Kind)
}

// Store is the persistence surface the lifecycle needs. Implemented by
// storage.BookingRepository; narrowed so tests can substitute a fake.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error)
	InsertLineItem(ctx context.Context, tx pgx.Tx, bookingID, menuName string, price int64) error
	Get(ctx context.Context, bookingID string) (model.Booking, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error)
	Update(ctx context.Context, tx pgx.Tx, b model.Booking) error
	Delete(ctx context.Context, bookingID string) error
}

type Directory interface {
	GetShop(ctx context.Context, shopID string) (model.Shop, error)
	GetDesigner(ctx context.Context, designerID string) (model.Designer, error)
	GetMenu(ctx context.Context, shopID, menuID string) (model.Menu, error)
}

type OutboxWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Service struct {
	store     Store
	dir       Directory
	outbox    OutboxWriter
	validator schedule.Validator
	logger    *slog.Logger
}

func NewService(store Store, dir Directory, ob OutboxWriter, validator schedule.Validator, logger *slog.Logger) *Service {
	return &Service{store: store, dir: dir, outbox: ob, validator: validator, logger: logger}
}

type CreateInput struct {
	ShopID       string
	DesignerID   string
	CustomerID   string
	MenuID       string
	StartTime    time.Time
	EndTime      time.Time
	Status       model.BookingStatus
	Memo         string
	AlarmEnabled bool
}

// Outcome carries either the persisted booking or the soft conflict the
// caller may resubmit with force=true. Exactly one field is set.
type Outcome struct {
	Booking  *model.Booking
	Conflict *schedule.SoftConflict
}

func (s *Service) Create(ctx context.Context, in CreateInput, force bool) (Outcome, error) {
	if !in.EndTime.After(in.StartTime) {
		return Outcome{}, ErrInvalidRange
	}
	if in.Status == "" {
		in.Status = model.BookingPending
	}
	if in.Status != model.BookingPending && in.Status != model.BookingConfirmed {
		return Outcome{}, ErrStatusViaComplete
	}

	shop, designer, err := s.loadPair(ctx, in.ShopID, in.DesignerID)
	if err != nil {
		return Outcome{}, err
	}

	res := s.validator.Validate(shop, designer, in.StartTime, in.EndTime, force)
	switch res.Verdict {
	case schedule.VerdictHardError:
		return Outcome{}, HardRuleError{Kind: res.Hard}
	case schedule.VerdictSoftConflict:
		conflict := res.Soft
		return Outcome{Conflict: &conflict}, nil
	}

	// Freeze the menu snapshot before opening the write transaction.
	var menu *model.Menu
	if in.MenuID != "" {
		m, err := s.dir.GetMenu(ctx, in.ShopID, in.MenuID)
		if err != nil {
			if storage.IsNotFound(err) {
				return Outcome{}, fmt.Errorf("menu %s: %w", in.MenuID, ErrNotFound)
			}
			return Outcome{}, err
		}
		menu = &m
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := model.Booking{
		ShopID:       in.ShopID,
		DesignerID:   in.DesignerID,
		CustomerID:   in.CustomerID,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Status:       in.Status,
		Memo:         in.Memo,
		AlarmEnabled: in.AlarmEnabled,
	}
	id, err := s.store.Create(ctx, tx, &b)
	if err != nil {
		if storage.IsSlotConflict(err) {
			return Outcome{}, ErrSlotTaken
		}
		return Outcome{}, err
	}
	b.ID = id

	if menu != nil {
		if err := s.store.InsertLineItem(ctx, tx, id, menu.Name, menu.Price); err != nil {
			return Outcome{}, err
		}
	}

	if err := s.emit(ctx, tx, "salon.booking.created.v1", b); err != nil {
		return Outcome{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Booking: &b}, nil
}

// Patch is the typed partial update for a booking. Nil fields keep the
// stored value.
type Patch struct {
	DesignerID   *string
	CustomerID   *string
	StartTime    *time.Time
	EndTime      *time.Time
	Status       *model.BookingStatus
	Memo         *string
	AlarmEnabled *bool
}

func (p Patch) touchesSchedule() bool {
	return p.DesignerID != nil || p.StartTime != nil || p.EndTime != nil
}

func (s *Service) Update(ctx context.Context, bookingID string, patch Patch, force bool) (Outcome, error) {
	if patch.Status != nil {
		switch *patch.Status {
		case model.BookingCompleted:
			return Outcome{}, ErrStatusViaComplete
		case model.BookingPending, model.BookingConfirmed, model.BookingCanceled, model.BookingNoShow:
		default:
			return Outcome{}, fmt.Errorf("unknown status %q", *patch.Status)
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.store.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return Outcome{}, ErrNotFound
		}
		return Outcome{}, err
	}
	if b.Status == model.BookingCompleted {
		return Outcome{}, ErrCompletedLocked
	}

	merged := applyPatch(b, patch)
	if !merged.EndTime.After(merged.StartTime) {
		return Outcome{}, ErrInvalidRange
	}

	if patch.touchesSchedule() {
		shop, designer, err := s.loadPair(ctx, merged.ShopID, merged.DesignerID)
		if err != nil {
			return Outcome{}, err
		}
		res := s.validator.Validate(shop, designer, merged.StartTime, merged.EndTime, force)
		switch res.Verdict {
		case schedule.VerdictHardError:
			return Outcome{}, HardRuleError{Kind: res.Hard}
		case schedule.VerdictSoftConflict:
			conflict := res.Soft
			return Outcome{Conflict: &conflict}, nil
		}
	}

	if err := s.store.Update(ctx, tx, merged); err != nil {
		if storage.IsSlotConflict(err) {
			return Outcome{}, ErrSlotTaken
		}
		return Outcome{}, err
	}

	if err := s.emit(ctx, tx, "salon.booking.updated.v1", merged); err != nil {
		return Outcome{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Booking: &merged}, nil
}

// Remove hard-deletes the booking. No tombstone is kept; line items
// cascade in storage.
func (s *Service) Remove(ctx context.Context, bookingID string) error {
	if err := s.store.Delete(ctx, bookingID); err != nil {
		if storage.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, bookingID string) (model.Booking, error) {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

func (s *Service) loadPair(ctx context.Context, shopID, designerID string) (model.Shop, model.Designer, error) {
	shop, err := s.dir.GetShop(ctx, shopID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Shop{}, model.Designer{}, fmt.Errorf("shop %s: %w", shopID, ErrNotFound)
		}
		return model.Shop{}, model.Designer{}, err
	}
	designer, err := s.dir.GetDesigner(ctx, designerID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Shop{}, model.Designer{}, fmt.Errorf("designer %s: %w", designerID, ErrNotFound)
		}
		return model.Shop{}, model.Designer{}, err
	}
	if designer.ShopID != shop.ID || !designer.Active {
		return model.Shop{}, model.Designer{}, fmt.Errorf("designer %s: %w", designerID, ErrNotFound)
	}
	return shop, designer, nil
}

func applyPatch(b model.Booking, p Patch) model.Booking {
	if p.DesignerID != nil {
		b.DesignerID = *p.DesignerID
	}
	if p.CustomerID != nil {
		b.CustomerID = *p.CustomerID
	}
	if p.StartTime != nil {
		b.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		b.EndTime = *p.EndTime
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Memo != nil {
		b.Memo = *p.Memo
	}
	if p.AlarmEnabled != nil {
		b.AlarmEnabled = *p.AlarmEnabled
	}
	return b
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id":  b.ID,
		"shop_id":     b.ShopID,
		"designer_id": b.DesignerID,
		"customer_id": b.CustomerID,
		"start_time":  b.StartTime.UTC().Format(time.RFC3339),
		"end_time":    b.EndTime.UTC().Format(time.RFC3339),
		"status":      string(b.Status),
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
