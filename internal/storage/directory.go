package storage

import (
	"context"
	"time"

	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/libs/db"
)

// DirectoryRepository reads the shop/designer/menu/ticket records
// maintained by the directory side of the system. This engine only
// consumes them.
type DirectoryRepository struct {
	pool *db.Pool
}

func NewDirectoryRepository(pool *db.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) GetShop(ctx context.Context, shopID string) (model.Shop, error) {
	var s model.Shop
	var closed []int32
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, open_minute, close_minute, closed_weekdays
		FROM shops
		WHERE id = $1
	`, shopID).Scan(&s.ID, &s.Name, &s.OpenMinute, &s.CloseMinute, &closed)
	if err != nil {
		return model.Shop{}, err
	}
	s.ClosedWeekdays = weekdaysFromInts(closed)
	return s, nil
}

func (r *DirectoryRepository) GetDesigner(ctx context.Context, designerID string) (model.Designer, error) {
	var d model.Designer
	var daysOff []int32
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, shop_id::text, name, is_active,
			work_start_minute, work_end_minute, lunch_start_minute, lunch_end_minute, days_off
		FROM designers
		WHERE id = $1
	`, designerID).Scan(
		&d.ID,
		&d.ShopID,
		&d.Name,
		&d.Active,
		&d.WorkStartMinute,
		&d.WorkEndMinute,
		&d.LunchStartMinute,
		&d.LunchEndMinute,
		&daysOff,
	)
	if err != nil {
		return model.Designer{}, err
	}
	d.DaysOff = weekdaysFromInts(daysOff)
	return d, nil
}

func (r *DirectoryRepository) ListActiveDesigners(ctx context.Context, shopID string) ([]model.Designer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, shop_id::text, name, is_active,
			work_start_minute, work_end_minute, lunch_start_minute, lunch_end_minute, days_off
		FROM designers
		WHERE shop_id = $1 AND is_active
		ORDER BY name ASC
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Designer
	for rows.Next() {
		var d model.Designer
		var daysOff []int32
		if err := rows.Scan(
			&d.ID,
			&d.ShopID,
			&d.Name,
			&d.Active,
			&d.WorkStartMinute,
			&d.WorkEndMinute,
			&d.LunchStartMinute,
			&d.LunchEndMinute,
			&daysOff,
		); err != nil {
			return nil, err
		}
		d.DaysOff = weekdaysFromInts(daysOff)
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *DirectoryRepository) GetMenu(ctx context.Context, shopID, menuID string) (model.Menu, error) {
	var m model.Menu
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, shop_id::text, name, price
		FROM menus
		WHERE id = $1 AND shop_id = $2
	`, menuID, shopID).Scan(&m.ID, &m.ShopID, &m.Name, &m.Price)
	if err != nil {
		return model.Menu{}, err
	}
	return m, nil
}

func (r *DirectoryRepository) GetTicket(ctx context.Context, shopID, ticketID string) (model.PrepaidTicket, error) {
	var t model.PrepaidTicket
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, shop_id::text, name, price, credit_amount
		FROM prepaid_tickets
		WHERE id = $1 AND shop_id = $2
	`, ticketID, shopID).Scan(&t.ID, &t.ShopID, &t.Name, &t.Price, &t.CreditAmount)
	if err != nil {
		return model.PrepaidTicket{}, err
	}
	return t, nil
}

func weekdaysFromInts(raw []int32) model.Weekdays {
	if len(raw) == 0 {
		return nil
	}
	out := make(model.Weekdays, 0, len(raw))
	for _, v := range raw {
		out = append(out, time.Weekday(v))
	}
	return out
}
