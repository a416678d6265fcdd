package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jwseo/salonbook/internal/model"
	"github.com/jwseo/salonbook/internal/storage"
)

// ScheduleHandler manages manual blackout blocks on a designer's
// calendar. Blocks hide slots from availability without a booking.
type ScheduleHandler struct {
	repo *storage.BookingRepository
}

func NewScheduleHandler(repo *storage.BookingRepository) *ScheduleHandler {
	return &ScheduleHandler{repo: repo}
}

type createBlockRequest struct {
	DesignerID string `json:"designer_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason"`
}

type deleteBlockRequest struct {
	BlockID string `json:"block_id"`
}

type blockItem struct {
	BlockID    string `json:"block_id"`
	DesignerID string `json:"designer_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason,omitempty"`
}

func (h *ScheduleHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DesignerID = strings.TrimSpace(req.DesignerID)
	if req.DesignerID == "" {
		http.Error(w, "designer_id required", http.StatusBadRequest)
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
	if !end.After(start) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	blk := model.ScheduleBlock{
		DesignerID: req.DesignerID,
		StartTime:  start,
		EndTime:    end,
		Reason:     strings.TrimSpace(req.Reason),
	}
	id, err := h.repo.CreateScheduleBlock(r.Context(), &blk)
	if err != nil {
		http.Error(w, "failed to create block", http.StatusInternalServerError)
		return
	}
	blk.ID = id
	writeJSON(w, http.StatusCreated, toBlockItem(blk))
}

func (h *ScheduleHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.BlockID) == "" {
		http.Error(w, "block_id required", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteScheduleBlock(r.Context(), req.BlockID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "block not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete block", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	designerID := strings.TrimSpace(q.Get("designer_id"))
	if designerID == "" {
		http.Error(w, "designer_id required", http.StatusBadRequest)
		return
	}
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	blocks, err := h.repo.ListScheduleBlocks(r.Context(), designerID, from, to)
	if err != nil {
		http.Error(w, "failed to list blocks", http.StatusInternalServerError)
		return
	}
	items := make([]blockItem, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, toBlockItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func toBlockItem(b model.ScheduleBlock) blockItem {
	return blockItem{
		BlockID:    b.ID,
		DesignerID: b.DesignerID,
		StartTime:  b.StartTime.UTC().Format(time.RFC3339),
		EndTime:    b.EndTime.UTC().Format(time.RFC3339),
		Reason:     b.Reason,
	}
}
