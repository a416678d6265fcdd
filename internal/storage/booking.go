package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jwseo/salonbook/internal/availability"
	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/libs/db"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings
			(id, shop_id, designer_id, customer_id, start_time, end_time, status, memo, alarm_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, b.ShopID, b.DesignerID, b.CustomerID, b.StartTime, b.EndTime, b.Status, b.Memo, b.AlarmEnabled)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) InsertLineItem(ctx context.Context, tx pgx.Tx, bookingID, menuName string, price int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_line_items (id, booking_id, menu_name, price)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), bookingID, menuName, price)
	return err
}

func (r *BookingRepository) Get(ctx context.Context, bookingID string) (model.Booking, error) {
	return r.scanOne(r.pool.QueryRow(ctx, bookingSelect+` WHERE id = $1`, bookingID))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error) {
	return r.scanOne(tx.QueryRow(ctx, bookingSelect+` WHERE id = $1 FOR UPDATE`, bookingID))
}

const bookingSelect = `
	SELECT id::text, shop_id::text, designer_id::text, customer_id::text,
		start_time, end_time, status, COALESCE(memo, ''), alarm_enabled, created_at
	FROM bookings`

func (r *BookingRepository) scanOne(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	if err := row.Scan(
		&b.ID,
		&b.ShopID,
		&b.DesignerID,
		&b.CustomerID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.Memo,
		&b.AlarmEnabled,
		&b.CreatedAt,
	); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Update persists a merged booking. The exclusion constraint re-checks
// the (designer, interval) claim on time or designer changes.
func (r *BookingRepository) Update(ctx context.Context, tx pgx.Tx, b model.Booking) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET designer_id = $2,
			customer_id = $3,
			start_time = $4,
			end_time = $5,
			status = $6,
			memo = $7,
			alarm_enabled = $8
		WHERE id = $1
	`, b.ID, b.DesignerID, b.CustomerID, b.StartTime, b.EndTime, b.Status, b.Memo, b.AlarmEnabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) MarkCompleted(ctx context.Context, tx pgx.Tx, bookingID, memo string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2,
			memo = CASE WHEN $3 <> '' THEN $3 ELSE memo END
		WHERE id = $1
	`, bookingID, model.BookingCompleted, memo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete hard-deletes a booking; line items cascade.
func (r *BookingRepository) Delete(ctx context.Context, bookingID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) ListLineItems(ctx context.Context, bookingID string) ([]model.BookingLineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, booking_id::text, menu_name, price
		FROM booking_line_items
		WHERE booking_id = $1
		ORDER BY id
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookingLineItem
	for rows.Next() {
		var li model.BookingLineItem
		if err := rows.Scan(&li.ID, &li.BookingID, &li.MenuName, &li.Price); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (r *BookingRepository) ListByShop(ctx context.Context, shopID, designerID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, bookingSelect+`
		WHERE shop_id = $1
			AND ($2 = '' OR designer_id::text = $2)
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, shopID, designerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID,
			&b.ShopID,
			&b.DesignerID,
			&b.CustomerID,
			&b.StartTime,
			&b.EndTime,
			&b.Status,
			&b.Memo,
			&b.AlarmEnabled,
			&b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBusyIntervals returns the occupied ranges for one designer inside
// [from, to): bookings that still hold their slot plus manual schedule
// blocks. CANCELED and NOSHOW bookings do not block.
func (r *BookingRepository) ListBusyIntervals(ctx context.Context, designerID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE designer_id = $1
			AND status NOT IN ('CANCELED', 'NOSHOW')
			AND start_time < $3
			AND end_time > $2
		UNION ALL
		SELECT start_time, end_time
		FROM schedule_blocks
		WHERE designer_id = $1
			AND start_time < $3
			AND end_time > $2
	`, designerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *BookingRepository) CreateScheduleBlock(ctx context.Context, blk *model.ScheduleBlock) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_blocks (id, designer_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, id, blk.DesignerID, blk.StartTime, blk.EndTime, blk.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) DeleteScheduleBlock(ctx context.Context, blockID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_blocks WHERE id = $1`, blockID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) ListScheduleBlocks(ctx context.Context, designerID string, from, to time.Time) ([]model.ScheduleBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, designer_id::text, start_time, end_time, COALESCE(reason, ''), created_at
		FROM schedule_blocks
		WHERE designer_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, designerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleBlock
	for rows.Next() {
		var blk model.ScheduleBlock
		if err := rows.Scan(&blk.ID, &blk.DesignerID, &blk.StartTime, &blk.EndTime, &blk.Reason, &blk.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, blk)
	}
	return out, rows.Err()
}
