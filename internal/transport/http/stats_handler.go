package http

import (
	"net/http"
	"strconv"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/domain"
)

// StatsHandler serves the read-only statistics and history views plus the
// explicit reset operation.
type StatsHandler struct {
	service *app.ProgressService
}

func NewStatsHandler(service *app.ProgressService) *StatsHandler {
	return &StatsHandler{service: service}
}

func (h *StatsHandler) ServeStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.service.Statistics(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *StatsHandler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	records, err := h.service.History(r.Context(), r.URL.Query().Get("userId"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.SessionHistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *StatsHandler) ServeReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if err := h.service.ResetStatistics(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.service.Statistics(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
