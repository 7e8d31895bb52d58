// Package inspect is the read-only operational surface: entry status, a
// user's payment history and active holds. It exposes no mutations; the
// pipeline is driven solely by the queue processor.
package inspect

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/robertarktes/payment-fulfillment/internal/queue"
)

type Handlers struct {
	processor *queue.Processor
}

func NewHandlers(processor *queue.Processor) *Handlers {
	return &Handlers{processor: processor}
}

func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	entry, err := h.processor.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, entryView(entry))
}

func (h *Handlers) ListUserEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	entries, err := h.processor.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]map[string]interface{}, 0, len(entries))
	for i := range entries {
		views = append(views, entryView(&entries[i]))
	}
	writeJSON(w, map[string]interface{}{"entries": views})
}

func (h *Handlers) ListUserHolds(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	holds, err := h.processor.ListActiveHolds(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]map[string]interface{}, 0, len(holds))
	for _, hold := range holds {
		views = append(views, map[string]interface{}{
			"hold_id":        hold.ID,
			"correlation_id": hold.CorrelationID,
			"amount":         hold.Amount.String(),
			"created_at":     hold.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, map[string]interface{}{"holds": views})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func entryView(e *domain.QueueEntry) map[string]interface{} {
	view := map[string]interface{}{
		"entry_id":   e.ID,
		"user_id":    e.UserID,
		"status":     e.Status,
		"total":      e.TotalAmount.String(),
		"created_at": e.CreatedAt.Format(time.RFC3339),
	}
	if e.ErrorMessage != "" {
		view["error"] = e.ErrorMessage
	}
	if e.ProcessedAt != nil {
		view["processed_at"] = e.ProcessedAt.Format(time.RFC3339)
	}
	return view
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
