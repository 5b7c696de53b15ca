package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/catalog-api/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 200
)

// EventHandler handles HTTP requests related to activity events.
type EventHandler struct {
	service services.EventServiceProvider
	rs      Responder
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider, rs Responder) *EventHandler {
	return &EventHandler{service: service, rs: rs}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	events, err := h.service.GetRecentEvents(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve events")
		h.rs.Internal(w, err)
		return
	}

	respondData(w, http.StatusOK, events)
}

func parseLimit(s string) int {
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return defaultEventLimit
	}
	if limit > maxEventLimit {
		return maxEventLimit
	}
	return limit
}
