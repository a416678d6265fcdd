package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/libs/db"
)

type PrepaidRepository struct {
	pool *db.Pool
}

func NewPrepaidRepository(pool *db.Pool) *PrepaidRepository {
	return &PrepaidRepository{pool: pool}
}

func (r *PrepaidRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// EnsureBalanceForUpdate returns the (customer, shop) balance row locked
// for the current transaction, creating a zero row lazily on first use.
func (r *PrepaidRepository) EnsureBalanceForUpdate(ctx context.Context, tx pgx.Tx, customerID, shopID string) (model.PrepaidBalance, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO prepaid_balances (id, customer_id, shop_id, amount)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (customer_id, shop_id) DO NOTHING
	`, uuid.NewString(), customerID, shopID)
	if err != nil {
		return model.PrepaidBalance{}, err
	}
	return r.getBalanceForUpdate(ctx, tx, customerID, shopID)
}

// GetBalanceForUpdate locks the balance row without creating it.
// Returns pgx.ErrNoRows for a customer who never charged at this shop.
func (r *PrepaidRepository) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, customerID, shopID string) (model.PrepaidBalance, error) {
	return r.getBalanceForUpdate(ctx, tx, customerID, shopID)
}

func (r *PrepaidRepository) getBalanceForUpdate(ctx context.Context, tx pgx.Tx, customerID, shopID string) (model.PrepaidBalance, error) {
	var b model.PrepaidBalance
	var lastUsed *time.Time
	err := tx.QueryRow(ctx, `
		SELECT id::text, customer_id::text, shop_id::text, amount, last_used_at, updated_at
		FROM prepaid_balances
		WHERE customer_id = $1 AND shop_id = $2
		FOR UPDATE
	`, customerID, shopID).Scan(&b.ID, &b.CustomerID, &b.ShopID, &b.Amount, &lastUsed, &b.UpdatedAt)
	if err != nil {
		return model.PrepaidBalance{}, err
	}
	b.LastUsedAt = lastUsed
	return b, nil
}

func (r *PrepaidRepository) GetBalance(ctx context.Context, customerID, shopID string) (model.PrepaidBalance, error) {
	var b model.PrepaidBalance
	var lastUsed *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, customer_id::text, shop_id::text, amount, last_used_at, updated_at
		FROM prepaid_balances
		WHERE customer_id = $1 AND shop_id = $2
	`, customerID, shopID).Scan(&b.ID, &b.CustomerID, &b.ShopID, &b.Amount, &lastUsed, &b.UpdatedAt)
	if err != nil {
		return model.PrepaidBalance{}, err
	}
	b.LastUsedAt = lastUsed
	return b, nil
}

// ApplyDelta moves the locked balance by delta (negative for a debit)
// and returns the new amount. The table CHECK (amount >= 0) is the last
// line of defense behind the service-level re-check.
func (r *PrepaidRepository) ApplyDelta(ctx context.Context, tx pgx.Tx, balanceID string, delta int64, touchLastUsed bool) (int64, error) {
	var newAmount int64
	err := tx.QueryRow(ctx, `
		UPDATE prepaid_balances
		SET amount = amount + $2,
			last_used_at = CASE WHEN $3 THEN now() ELSE last_used_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING amount
	`, balanceID, delta, touchLastUsed).Scan(&newAmount)
	return newAmount, err
}

// AppendEntry writes one ledger row. Every balance mutation pairs 1:1
// with exactly one of these, inside the same transaction.
func (r *PrepaidRepository) AppendEntry(ctx context.Context, tx pgx.Tx, e model.PrepaidEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO prepaid_transactions
			(id, balance_id, entry_type, amount, bonus, balance_after, method, booking_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), e.BalanceID, e.Type, e.Amount, e.Bonus, e.BalanceAfter, e.Method, e.BookingID)
	return err
}

func (r *PrepaidRepository) InsertPaymentLeg(ctx context.Context, tx pgx.Tx, bookingID string, leg model.PaymentLeg) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_payments (id, booking_id, method, amount)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), bookingID, leg.Method, leg.Amount)
	return err
}

func (r *PrepaidRepository) ListEntries(ctx context.Context, balanceID string, limit int) ([]model.PrepaidEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, balance_id::text, entry_type, amount, bonus, balance_after,
			method, booking_id::text, created_at
		FROM prepaid_transactions
		WHERE balance_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, balanceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PrepaidEntry
	for rows.Next() {
		var e model.PrepaidEntry
		var bookingID *string
		if err := rows.Scan(&e.ID, &e.BalanceID, &e.Type, &e.Amount, &e.Bonus, &e.BalanceAfter, &e.Method, &bookingID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BookingID = bookingID
		out = append(out, e)
	}
	return out, rows.Err()
}
