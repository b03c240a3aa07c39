package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType identifies the kind of dashboard event.
type EventType string

const (
	EventTypeDetection   EventType = "pii_detection"
	EventTypeRunProgress EventType = "run_progress"
	EventTypeSystem      EventType = "system_status"
	EventTypeConnection  EventType = "connection"
)

// Event is the envelope broadcast to dashboard clients.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// DetectionEvent reports the outcome of an analyze call. It carries column
// names and categories only, never cell values.
type DetectionEvent struct {
	Filename        string            `json:"filename"`
	DetectedColumns []string          `json:"detected_columns"`
	Suggestions     map[string]string `json:"suggestions"`
	Columns         int               `json:"columns"`
}

// RunProgressEvent reports anonymization run progress.
type RunProgressEvent struct {
	RunID     string  `json:"run_id"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Done      bool    `json:"done"`
}

// SystemEvent reports service lifecycle changes.
type SystemEvent struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ConnectionEvent reports dashboard client churn.
type ConnectionEvent struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// Client is one connected dashboard client.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string
	// Subscribed event types; empty means all.
	Subscribed []EventType
}

// ClientMessage is a message received from a dashboard client.
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
