package realtime

import (
	"encoding/json"

	"github.com/nhle/workpresence/internal/model"
)

// FrameType is the kind of a wire frame.
type FrameType string

const (
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameEvent       FrameType = "event"
)

// Frame is the JSON envelope exchanged with the realtime server.
type Frame struct {
	Type    FrameType       `json:"type"`
	Channel model.Channel   `json:"channel"`
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
