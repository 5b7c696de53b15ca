package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/catalog-api/internal/auth"
	"github.com/isdelr/catalog-api/internal/services"
	ws "github.com/isdelr/catalog-api/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades authenticated requests to the live event feed.
type WebSocketHandler struct {
	hub      *ws.Hub
	events   services.EventServiceProvider
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler.
// allowedOrigins lists browser origins allowed to connect; "*" allows any.
func NewWebSocketHandler(hub *ws.Hub, events services.EventServiceProvider, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	var userID string
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		userID = identity.UserID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, ws.EventsTopic, userID)
	if !h.hub.Join(client) {
		log.Warn().Msg("Websocket hub stopped, refusing connection")
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.handleIncomingWSMessage)
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().Err(err).Str("user_id", client.UserID).Msg("Error decoding websocket message")
		client.Reply(ws.NewErrorMessage("Invalid message"))
		return
	}

	switch msg.Action {
	case ws.ActionPing:
		client.Reply(ws.NewMessage(ws.ActionPong, nil))

	case ws.ActionRecent:
		limit := defaultEventLimit
		if payload, ok := msg.Payload.(map[string]interface{}); ok {
			if n, ok := payload["limit"].(float64); ok && n > 0 {
				limit = int(n)
			}
		}
		if limit > maxEventLimit {
			limit = maxEventLimit
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		events, err := h.events.GetRecentEvents(ctx, limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to retrieve events for websocket client")
			client.Reply(ws.NewErrorMessage("Failed to retrieve events"))
			return
		}
		client.Reply(ws.NewMessage(ws.ActionRecent, events))

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		client.Reply(ws.NewErrorMessage("Unknown action: " + msg.Action))
	}
}
