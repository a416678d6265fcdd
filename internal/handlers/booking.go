package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jwseo/salonbook/internal/availability"
	"github.com/jwseo/salonbook/internal/booking"
	"github.com/jwseo/salonbook/internal/localtime"
	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/internal/schedule"
	"github.com/jwseo/salonbook/internal/storage"
)

type BookingHandler struct {
	svc   *booking.Service
	calc  *availability.Calculator
	repo  *storage.BookingRepository
	clock localtime.Normalizer
}

func NewBookingHandler(svc *booking.Service, calc *availability.Calculator, repo *storage.BookingRepository, clock localtime.Normalizer) *BookingHandler {
	return &BookingHandler{svc: svc, calc: calc, repo: repo, clock: clock}
}

type createBookingRequest struct {
	ShopID       string `json:"shop_id"`
	DesignerID   string `json:"designer_id"`
	CustomerID   string `json:"customer_id"`
	MenuID       string `json:"menu_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	Memo         string `json:"memo"`
	AlarmEnabled bool   `json:"alarm_enabled"`
	Force        bool   `json:"force"`
}

type updateBookingRequest struct {
	BookingID    string  `json:"booking_id"`
	DesignerID   *string `json:"designer_id"`
	CustomerID   *string `json:"customer_id"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	Status       *string `json:"status"`
	Memo         *string `json:"memo"`
	AlarmEnabled *bool   `json:"alarm_enabled"`
	Force        bool    `json:"force"`
}

type deleteBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type bookingItem struct {
	BookingID    string `json:"booking_id"`
	ShopID       string `json:"shop_id"`
	DesignerID   string `json:"designer_id"`
	CustomerID   string `json:"customer_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	Memo         string `json:"memo,omitempty"`
	AlarmEnabled bool   `json:"alarm_enabled"`
}

type conflictResponse struct {
	Conflict *schedule.SoftConflict `json:"conflict"`
}

func toItem(b model.Booking) bookingItem {
	return bookingItem{
		BookingID:    b.ID,
		ShopID:       b.ShopID,
		DesignerID:   b.DesignerID,
		CustomerID:   b.CustomerID,
		StartTime:    b.StartTime.UTC().Format(time.RFC3339),
		EndTime:      b.EndTime.UTC().Format(time.RFC3339),
		Status:       string(b.Status),
		Memo:         b.Memo,
		AlarmEnabled: b.AlarmEnabled,
	}
}

// Slots serves the public availability grid for one shop and day.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	shopID := strings.TrimSpace(q.Get("shop_id"))
	date := strings.TrimSpace(q.Get("date"))
	designerID := strings.TrimSpace(q.Get("designer_id"))
	if shopID == "" || date == "" {
		http.Error(w, "shop_id and date are required", http.StatusBadRequest)
		return
	}
	duration := parseIntDefault(q.Get("duration_minutes"), 30)
	if duration <= 0 {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}

	if _, err := h.clock.ParseDate(date); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	slots, err := h.calc.ComputeSlots(r.Context(), shopID, date, duration, designerID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "shop not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (h *BookingHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.DesignerID = strings.TrimSpace(req.DesignerID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.ShopID == "" || req.DesignerID == "" || req.CustomerID == "" {
		http.Error(w, "shop_id, designer_id and customer_id are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}

	out, err := h.svc.Create(r.Context(), booking.CreateInput{
		ShopID:       req.ShopID,
		DesignerID:   req.DesignerID,
		CustomerID:   req.CustomerID,
		MenuID:       strings.TrimSpace(req.MenuID),
		StartTime:    start,
		EndTime:      end,
		Status:       model.BookingStatus(req.Status),
		Memo:         req.Memo,
		AlarmEnabled: req.AlarmEnabled,
	}, req.Force)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if out.Conflict != nil {
		writeJSON(w, http.StatusOK, conflictResponse{Conflict: out.Conflict})
		return
	}
	writeJSON(w, http.StatusCreated, toItem(*out.Booking))
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	var patch booking.Patch
	patch.DesignerID = req.DesignerID
	patch.CustomerID = req.CustomerID
	patch.Memo = req.Memo
	patch.AlarmEnabled = req.AlarmEnabled
	if req.Status != nil {
		st := model.BookingStatus(*req.Status)
		patch.Status = &st
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		patch.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		patch.EndTime = &t
	}

	out, err := h.svc.Update(r.Context(), req.BookingID, patch, req.Force)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if out.Conflict != nil {
		writeJSON(w, http.StatusOK, conflictResponse{Conflict: out.Conflict})
		return
	}
	writeJSON(w, http.StatusOK, toItem(*out.Booking))
}

func (h *BookingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	if err := h.svc.Remove(r.Context(), req.BookingID); err != nil {
		writeBookingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// list is the shop day view: every booking for the shop (optionally one
// designer) in a time window. With booking_id it returns that single
// booking instead.
func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("booking_id")); id != "" {
		b, err := h.svc.Get(r.Context(), id)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toItem(b))
		return
	}
	shopID := strings.TrimSpace(q.Get("shop_id"))
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	designerID := strings.TrimSpace(q.Get("designer_id"))

	var from, to time.Time
	if date := strings.TrimSpace(q.Get("date")); date != "" {
		day, err := h.clock.ParseDate(date)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		from, to = day, day.AddDate(0, 0, 1)
	} else {
		var err error
		if from, err = time.Parse(time.RFC3339, q.Get("from")); err != nil {
			http.Error(w, "date or from/to required", http.StatusBadRequest)
			return
		}
		if to, err = time.Parse(time.RFC3339, q.Get("to")); err != nil {
			http.Error(w, "date or from/to required", http.StatusBadRequest)
			return
		}
	}

	bookings, err := h.repo.ListByShop(r.Context(), shopID, designerID, from, to)
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func writeBookingError(w http.ResponseWriter, err error) {
	var hard booking.HardRuleError
	switch {
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "time slot already booked", http.StatusConflict)
	case errors.Is(err, booking.ErrCompletedLocked):
		http.Error(w, "completed bookings cannot be edited", http.StatusConflict)
	case errors.Is(err, booking.ErrStatusViaComplete):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &hard):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "booking violates shop rules",
			"rule":  string(hard.Kind),
		})
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
