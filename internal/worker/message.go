package worker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion is the only message version this worker accepts.
const SchemaVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported worker message version")
	ErrUnknownMessage     = errors.New("unknown worker message type")
)

// MessageType names a platform lifecycle hook.
type MessageType string

const (
	MessageInstall           MessageType = "install"
	MessageActivate          MessageType = "activate"
	MessagePush              MessageType = "push"
	MessageNotificationClick MessageType = "notificationclick"
	MessageFetch             MessageType = "fetch"
)

// Message is the only thing that crosses into the worker.
type Message struct {
	Version int             `json:"v"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClickPayload is the payload of a notificationclick message.
type ClickPayload struct {
	Tag    string `json:"tag"`
	Action string `json:"action,omitempty"`
	URL    string `json:"url,omitempty"`
}

// FetchPayload is the payload of a fetch message.
type FetchPayload struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// NewMessage builds a current-version message. payload may be nil, raw
// bytes (used verbatim, as a push body is), or any JSON-encodable value.
func NewMessage(t MessageType, payload interface{}) (Message, error) {
	msg := Message{Version: SchemaVersion, Type: t}
	switch p := payload.(type) {
	case nil:
	case []byte:
		msg.Payload = p
	case json.RawMessage:
		msg.Payload = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return Message{}, fmt.Errorf("encoding %s payload: %w", t, err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// Encode serializes msg for the boundary.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses and validates one message.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decoding worker message: %w", err)
	}
	if err := msg.validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (m Message) validate() error {
	if m.Version != SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	switch m.Type {
	case MessageInstall, MessageActivate, MessagePush, MessageNotificationClick, MessageFetch:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
}
