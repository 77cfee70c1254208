package models

import (
	"encoding/json"
	"time"
)

// Message types for WebSocket communication
const (
	MessageTypeInningsUpdate   = "innings_update"
	MessageTypeLiveEvent       = "live_event"
	MessageTypeSubscribe       = "subscribe"
	MessageTypeUnsubscribe     = "unsubscribe"
	MessageTypeHeartbeat       = "heartbeat"
	MessageTypeError           = "error"
	MessageTypeConnectionStats = "connection_stats"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubscriptionRequest names the innings a client wants to follow
type SubscriptionRequest struct {
	MatchID string `json:"matchId"`
	Inning  int    `json:"inning"`
}

// Key returns the requested innings key
func (r SubscriptionRequest) Key() InningsKey {
	return InningsKey{MatchID: r.MatchID, Inning: r.Inning}
}

// LiveEvent is the transient marker the UI animates for the latest ball
type LiveEvent struct {
	MatchID        string   `json:"matchId"`
	Inning         int      `json:"inning"`
	SequenceNumber int      `json:"sequenceNumber"`
	Text           string   `json:"text"`
	BallType       BallType `json:"ballType"`
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	ClientID          string    `json:"client_id"`
	ConnectedAt       time.Time `json:"connected_at"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesReceived  int64     `json:"messages_received"`
	LastMessageAt     time.Time `json:"last_message_at"`
	Subscriptions     []string  `json:"subscriptions"`
	BufferSize        int       `json:"buffer_size"`
	BufferUtilization float64   `json:"buffer_utilization"` // Percentage
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON body of a failed HTTP request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
