package websocket

import (
	"github.com/isdelr/catalog-api/internal/models"
	"github.com/rs/zerolog/log"
)

// EventsTopic is the topic every activity event is published on.
const EventsTopic = "events"

type topicMessage struct {
	topic   string
	message []byte
}

type directMessage struct {
	client  *Client
	message []byte
}

// Hub maintains the set of active clients and delivers messages to them.
// All client bookkeeping happens on the Run goroutine, and only Run sends on
// or closes a client's Send channel.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages for the subscribers of a single topic.
	publish chan topicMessage

	// Replies addressed to one client.
	direct chan directMessage

	// A map of topics to the set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		publish:       make(chan topicMessage, 64),
		direct:        make(chan directMessage, 64),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			log.Info().Msg("Websocket hub stopped")
			return
		case client := <-h.Register:
			h.clients[client] = true
			if client.Topic != "" {
				h.addSubscription(client, client.Topic)
			}
			log.Info().Int("total_clients", len(h.clients)).Str("user_id", client.UserID).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case m := <-h.publish:
			for client := range h.subscriptions[m.topic] {
				h.deliver(client, m.message)
			}
		case m := <-h.direct:
			if _, ok := h.clients[m.client]; ok {
				h.deliver(m.client, m.message)
			}
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
}

// Join registers client. It reports false when the hub has already stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// BroadcastTo queues a message for all clients subscribed to topic.
// It never blocks; when the queue is full the message is dropped.
func (h *Hub) BroadcastTo(topic string, message []byte) {
	select {
	case h.publish <- topicMessage{topic: topic, message: message}:
	default:
		log.Warn().Str("topic", topic).Msg("Websocket publish queue full, dropping message")
	}
}

// PublishEvent sends an activity event to the events topic.
func (h *Hub) PublishEvent(event models.Event) {
	h.BroadcastTo(EventsTopic, NewMessage(ActionEvent, event))
}

// sendTo queues a message for a single client. Messages for clients that
// have left, or sent after Stop, are discarded.
func (h *Hub) sendTo(client *Client, message []byte) {
	select {
	case h.direct <- directMessage{client: client, message: message}:
	case <-h.done:
	}
}

// unregister removes a client unless the hub has already stopped.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// deliver hands message to client, dropping clients that cannot keep up.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		log.Warn().Str("user_id", client.UserID).Msg("Client send buffer full, disconnecting")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.removeSubscription(client)
	close(client.Send)
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for topic, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
}
