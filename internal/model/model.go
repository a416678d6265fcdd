package model

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCanceled  BookingStatus = "CANCELED"
	BookingNoShow    BookingStatus = "NOSHOW"
)

// Active reports whether the booking still occupies its time range.
// CANCELED and NOSHOW bookings release the slot.
func (s BookingStatus) Active() bool {
	return s != BookingCanceled && s != BookingNoShow
}

type PaymentMethod string

const (
	PayCard       PaymentMethod = "CARD"
	PayCash       PaymentMethod = "CASH"
	PayAppDeposit PaymentMethod = "APP_DEPOSIT"
	PayPrepaid    PaymentMethod = "PREPAID"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCard, PayCash, PayAppDeposit, PayPrepaid:
		return true
	}
	return false
}

type LedgerEntryType string

const (
	LedgerCharge LedgerEntryType = "CHARGE"
	LedgerUse    LedgerEntryType = "USE"
)

// Weekdays is a set of weekdays, stored as smallint[] (0=Sunday).
type Weekdays []time.Weekday

func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

type Shop struct {
	ID             string
	Name           string
	OpenMinute     int
	CloseMinute    int
	ClosedWeekdays Weekdays
}

// Designer is a stylist attached to one shop. Work and lunch windows are
// minutes of day in the shop zone; nil means unconstrained.
type Designer struct {
	ID               string
	ShopID           string
	Name             string
	Active           bool
	WorkStartMinute  *int
	WorkEndMinute    *int
	LunchStartMinute *int
	LunchEndMinute   *int
	DaysOff          Weekdays
}

type Booking struct {
	ID           string
	ShopID       string
	DesignerID   string
	CustomerID   string
	StartTime    time.Time
	EndTime      time.Time
	Status       BookingStatus
	Memo         string
	AlarmEnabled bool
	CreatedAt    time.Time
}

// BookingLineItem is the frozen menu snapshot taken at booking time.
// Later menu price edits never touch existing bookings.
type BookingLineItem struct {
	ID        string
	BookingID string
	MenuName  string
	Price     int64
}

// ScheduleBlock is a manual blackout interval for a designer,
// independent of any booking.
type ScheduleBlock struct {
	ID         string
	DesignerID string
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
	CreatedAt  time.Time
}

type Menu struct {
	ID     string
	ShopID string
	Name   string
	Price  int64
}

type PrepaidTicket struct {
	ID           string
	ShopID       string
	Name         string
	Price        int64
	CreditAmount int64
}

// PrepaidBalance is unique per (customer, shop) and never negative.
type PrepaidBalance struct {
	ID         string
	CustomerID string
	ShopID     string
	Amount     int64
	LastUsedAt *time.Time
	UpdatedAt  time.Time
}

// PrepaidEntry is one append-only ledger row. BalanceAfter records the
// post-mutation balance so the ledger alone reconstructs the account.
type PrepaidEntry struct {
	ID           string
	BalanceID    string
	Type         LedgerEntryType
	Amount       int64
	Bonus        int64
	BalanceAfter int64
	Method       PaymentMethod
	BookingID    *string
	CreatedAt    time.Time
}

// PaymentLeg is one settlement leg of a completed booking.
type PaymentLeg struct {
	Method PaymentMethod
	Amount int64
}
