package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/internal/outbox"
	"github.com/jwseo/salonbook/internal/storage"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("prepaid balance is insufficient")
	ErrAmountMismatch      = errors.New("payment legs do not sum to the declared total")
	ErrAlreadyCompleted    = errors.New("booking is already completed")
	ErrInvalidPayment      = errors.New("invalid payment leg")
	ErrInvalidCharge       = errors.New("invalid charge request")
)

// PrepaidStore is the balance + ledger persistence surface. Implemented
// by storage.PrepaidRepository.
type PrepaidStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	EnsureBalanceForUpdate(ctx context.Context, tx pgx.Tx, customerID, shopID string) (model.PrepaidBalance, error)
	GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, customerID, shopID string) (model.PrepaidBalance, error)
	GetBalance(ctx context.Context, customerID, shopID string) (model.PrepaidBalance, error)
	ApplyDelta(ctx context.Context, tx pgx.Tx, balanceID string, delta int64, touchLastUsed bool) (int64, error)
	AppendEntry(ctx context.Context, tx pgx.Tx, e model.PrepaidEntry) error
	InsertPaymentLeg(ctx context.Context, tx pgx.Tx, bookingID string, leg model.PaymentLeg) error
	ListEntries(ctx context.Context, balanceID string, limit int) ([]model.PrepaidEntry, error)
}

type BookingStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, bookingID, memo string) error
}

type Directory interface {
	GetTicket(ctx context.Context, shopID, ticketID string) (model.PrepaidTicket, error)
}

type OutboxWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Service owns completion and the prepaid ledger. Every balance
// mutation happens inside one transaction together with exactly one
// ledger row; any failure rolls the whole operation back.
type Service struct {
	prepaid  PrepaidStore
	bookings BookingStore
	dir      Directory
	outbox   OutboxWriter
	logger   *slog.Logger
}

func NewService(prepaid PrepaidStore, bookings BookingStore, dir Directory, ob OutboxWriter, logger *slog.Logger) *Service {
	return &Service{prepaid: prepaid, bookings: bookings, dir: dir, outbox: ob, logger: logger}
}

// Complete verifies the split payment, debits every PREPAID leg, and
// transitions the booking to COMPLETED, all in one transaction. The
// payment sum must equal totalPrice exactly; a mismatch rejects the
// call before anything is written.
func (s *Service) Complete(ctx context.Context, bookingID string, legs []model.PaymentLeg, totalPrice int64, memo string) error {
	if len(legs) == 0 || totalPrice <= 0 {
		return ErrInvalidPayment
	}
	var sum int64
	for _, leg := range legs {
		if !leg.Method.Valid() || leg.Amount <= 0 {
			return ErrInvalidPayment
		}
		sum += leg.Amount
	}
	if sum != totalPrice {
		return ErrAmountMismatch
	}

	tx, err := s.prepaid.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
		}
		return err
	}
	if b.Status == model.BookingCompleted {
		return ErrAlreadyCompleted
	}

	for _, leg := range legs {
		if err := s.prepaid.InsertPaymentLeg(ctx, tx, bookingID, leg); err != nil {
			return err
		}
		if leg.Method != model.PayPrepaid {
			continue
		}
		if err := s.debit(ctx, tx, b, leg.Amount); err != nil {
			return err
		}
	}

	if err := s.bookings.MarkCompleted(ctx, tx, bookingID, memo); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":  bookingID,
		"shop_id":     b.ShopID,
		"customer_id": b.CustomerID,
		"total_price": totalPrice,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   bookingID,
		EventType:     "salon.booking.completed.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// debit re-checks the balance under the row lock at debit time, not at
// preview time, so a concurrent use cannot slip between check and
// deduct.
func (s *Service) debit(ctx context.Context, tx pgx.Tx, b model.Booking, amount int64) error {
	bal, err := s.prepaid.GetBalanceForUpdate(ctx, tx, b.CustomerID, b.ShopID)
	if err != nil {
		if storage.IsNotFound(err) {
			return ErrInsufficientBalance
		}
		return err
	}
	if bal.Amount < amount {
		return ErrInsufficientBalance
	}
	after, err := s.prepaid.ApplyDelta(ctx, tx, bal.ID, -amount, true)
	if err != nil {
		if storage.IsBalanceFloor(err) {
			return ErrInsufficientBalance
		}
		return err
	}
	return s.prepaid.AppendEntry(ctx, tx, model.PrepaidEntry{
		BalanceID:    bal.ID,
		Type:         model.LedgerUse,
		Amount:       amount,
		BalanceAfter: after,
		Method:       model.PayPrepaid,
		BookingID:    &b.ID,
	})
}

type ChargeRequest struct {
	TicketID string
	Amount   int64
	Bonus    int64
	Method   model.PaymentMethod
}

// Charge credits the (customer, shop) balance and appends the CHARGE
// ledger row atomically. Credit comes either from a fixed ticket bundle
// (bonus = credit_amount - price) or from a free-form amount + bonus.
func (s *Service) Charge(ctx context.Context, customerID, shopID string, req ChargeRequest) (int64, error) {
	amount, bonus := req.Amount, req.Bonus
	if req.TicketID != "" {
		t, err := s.dir.GetTicket(ctx, shopID, req.TicketID)
		if err != nil {
			if storage.IsNotFound(err) {
				return 0, fmt.Errorf("ticket %s: %w", req.TicketID, ErrNotFound)
			}
			return 0, err
		}
		amount = t.Price
		bonus = t.CreditAmount - t.Price
	}
	if amount <= 0 || bonus < 0 {
		return 0, ErrInvalidCharge
	}
	if !req.Method.Valid() || req.Method == model.PayPrepaid {
		return 0, ErrInvalidCharge
	}

	tx, err := s.prepaid.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	bal, err := s.prepaid.EnsureBalanceForUpdate(ctx, tx, customerID, shopID)
	if err != nil {
		return 0, err
	}
	after, err := s.prepaid.ApplyDelta(ctx, tx, bal.ID, amount+bonus, false)
	if err != nil {
		return 0, err
	}
	if err := s.prepaid.AppendEntry(ctx, tx, model.PrepaidEntry{
		BalanceID:    bal.ID,
		Type:         model.LedgerCharge,
		Amount:       amount,
		Bonus:        bonus,
		BalanceAfter: after,
		Method:       req.Method,
	}); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(map[string]any{
		"customer_id": customerID,
		"shop_id":     shopID,
		"amount":      amount,
		"bonus":       bonus,
		"balance":     after,
	})
	if err != nil {
		return 0, err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "prepaid_balance",
		AggregateID:   bal.ID,
		EventType:     "salon.ledger.charged.v1",
		Payload:       payload,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return after, nil
}

// Balance returns the current amount for (customer, shop). A customer
// who never charged reads as zero.
func (s *Service) Balance(ctx context.Context, customerID, shopID string) (int64, error) {
	bal, err := s.prepaid.GetBalance(ctx, customerID, shopID)
	if err != nil {
		if storage.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return bal.Amount, nil
}

// History returns recent ledger rows, newest first.
func (s *Service) History(ctx context.Context, customerID, shopID string, limit int) ([]model.PrepaidEntry, error) {
	bal, err := s.prepaid.GetBalance(ctx, customerID, shopID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.prepaid.ListEntries(ctx, bal.ID, limit)
}
