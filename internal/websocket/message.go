package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Actions sent to and received from clients.
const (
	ActionEvent  = "event"
	ActionError  = "error"
	ActionPing   = "ping"
	ActionPong   = "pong"
	ActionRecent = "recent_events"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewMessage encodes a message with the given action and payload.
func NewMessage(action string, payload interface{}) []byte {
	b, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket message")
		return NewErrorMessage("failed to encode message")
	}
	return b
}

// NewErrorMessage encodes an error message for a client.
func NewErrorMessage(msg string) []byte {
	b, _ := json.Marshal(Message{Action: ActionError, Payload: map[string]string{"error": msg}})
	return b
}
