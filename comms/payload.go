package comms

import (
	"encoding/json"
	"time"
)

// Message kinds pushed to clients outside the request/response flow.
const (
	PushStatus   = "status_update"
	PushPosition = "position_update"
)

// Cmd is one client request. ID is carried opaquely so numeric and string
// correlation ids both survive the round trip.
type Cmd struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response correlates to a Cmd by ID.
type Response struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Push is an uncorrelated server-initiated message.
type Push struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp float64     `json:"timestamp"`
}

func NewPush(kind string, data interface{}) Push {
	return Push{
		Type:      kind,
		Data:      data,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// MoveData carries the target coordinates of a move command.
type MoveData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
