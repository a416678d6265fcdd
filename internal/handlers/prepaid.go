package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jwseo/salonbook/internal/ledger"
	"github.com/jwseo/salonbook/internal/model"
)

type PrepaidHandler struct {
	svc *ledger.Service
}

func NewPrepaidHandler(svc *ledger.Service) *PrepaidHandler {
	return &PrepaidHandler{svc: svc}
}

type paymentLegRequest struct {
	Method string `json:"method"`
	Amount int64  `json:"amount"`
}

type completeBookingRequest struct {
	BookingID  string              `json:"booking_id"`
	TotalPrice int64               `json:"total_price"`
	Payments   []paymentLegRequest `json:"payments"`
	Memo       string              `json:"memo"`
}

type chargeRequest struct {
	CustomerID string `json:"customer_id"`
	ShopID     string `json:"shop_id"`
	TicketID   string `json:"ticket_id"`
	Amount     int64  `json:"amount"`
	Bonus      int64  `json:"bonus"`
	Method     string `json:"method"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type historyItem struct {
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	Bonus        int64  `json:"bonus,omitempty"`
	BalanceAfter int64  `json:"balance_after"`
	Method       string `json:"method"`
	BookingID    string `json:"booking_id,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// Complete settles a booking with split payments and debits the prepaid
// balance for every PREPAID leg, atomically.
func (h *PrepaidHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completeBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	legs := make([]model.PaymentLeg, 0, len(req.Payments))
	for _, p := range req.Payments {
		legs = append(legs, model.PaymentLeg{Method: model.PaymentMethod(p.Method), Amount: p.Amount})
	}

	err := h.svc.Complete(r.Context(), req.BookingID, legs, req.TotalPrice, req.Memo)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			http.Error(w, "booking not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrInsufficientBalance):
			http.Error(w, "prepaid balance is insufficient", http.StatusPaymentRequired)
		case errors.Is(err, ledger.ErrAmountMismatch):
			http.Error(w, "payments do not sum to total_price", http.StatusConflict)
		case errors.Is(err, ledger.ErrAlreadyCompleted):
			http.Error(w, "booking already completed", http.StatusConflict)
		case errors.Is(err, ledger.ErrInvalidPayment):
			http.Error(w, "invalid payment legs", http.StatusBadRequest)
		default:
			http.Error(w, "failed to complete booking", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Charge credits a (customer, shop) prepaid balance, either from a
// ticket bundle or a free-form amount + bonus.
func (h *PrepaidHandler) Charge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.ShopID = strings.TrimSpace(req.ShopID)
	if req.CustomerID == "" || req.ShopID == "" {
		http.Error(w, "customer_id and shop_id are required", http.StatusBadRequest)
		return
	}

	balance, err := h.svc.Charge(r.Context(), req.CustomerID, req.ShopID, ledger.ChargeRequest{
		TicketID: strings.TrimSpace(req.TicketID),
		Amount:   req.Amount,
		Bonus:    req.Bonus,
		Method:   model.PaymentMethod(req.Method),
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			http.Error(w, "ticket not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrInvalidCharge):
			http.Error(w, "invalid charge request", http.StatusBadRequest)
		default:
			http.Error(w, "failed to charge", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

func (h *PrepaidHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	customerID := strings.TrimSpace(q.Get("customer_id"))
	shopID := strings.TrimSpace(q.Get("shop_id"))
	if customerID == "" || shopID == "" {
		http.Error(w, "customer_id and shop_id are required", http.StatusBadRequest)
		return
	}

	balance, err := h.svc.Balance(r.Context(), customerID, shopID)
	if err != nil {
		http.Error(w, "failed to read balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

func (h *PrepaidHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	customerID := strings.TrimSpace(q.Get("customer_id"))
	shopID := strings.TrimSpace(q.Get("shop_id"))
	if customerID == "" || shopID == "" {
		http.Error(w, "customer_id and shop_id are required", http.StatusBadRequest)
		return
	}
	limit := parseIntDefault(q.Get("limit"), 100)

	entries, err := h.svc.History(r.Context(), customerID, shopID, limit)
	if err != nil {
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		item := historyItem{
			Type:         string(e.Type),
			Amount:       e.Amount,
			Bonus:        e.Bonus,
			BalanceAfter: e.BalanceAfter,
			Method:       string(e.Method),
			CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if e.BookingID != nil {
			item.BookingID = *e.BookingID
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}
