package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/workpresence/internal/model"
)

// ErrUnrecognizedPayload is returned by Parse for channels or payload shapes
// this client does not understand. Such events are dropped.
var ErrUnrecognizedPayload = errors.New("unrecognized realtime payload")

// Event is one decoded realtime payload. The concrete type is one of
// PresenceEvent, LogoutEvent, NotificationEvent, CommentEvent or ReportEvent.
type Event interface {
	Channel() model.Channel
	event()
}

// PresenceKind is which presence transition a PresenceEvent announces.
type PresenceKind string

const (
	PresencePunchIn  PresenceKind = "punch-in"
	PresencePunchOut PresenceKind = "punch-out"
	PresenceBreak    PresenceKind = "newBreak"
)

// PresenceEvent announces that some employee's presence changed. It is only
// a hint: consumers refetch the authoritative status.
type PresenceEvent struct {
	Kind       PresenceKind
	EmployeeID string
	Timestamp  time.Time
}

// LogoutEvent asks every session of an employee to sign out.
type LogoutEvent struct {
	EmployeeID string
}

// NotificationEvent is one entry for the in-app notification feed.
type NotificationEvent struct {
	Kind    model.NotificationKind
	UserID  string
	ID      string
	Message string
	URL     string
}

// CommentEvent is a new comment on a ticket.
type CommentEvent struct {
	TicketID  string
	ID        string
	Author    string
	Body      string
	CreatedAt time.Time
}

// ReportKind is which report mutation a ReportEvent announces.
type ReportKind string

const (
	ReportCreated ReportKind = "created"
	ReportUpdated ReportKind = "updated"
	ReportDeleted ReportKind = "deleted"
)

// ReportEvent announces a change to a daily report.
type ReportEvent struct {
	Kind       ReportKind
	ReportID   string
	EmployeeID string
}

func (e PresenceEvent) Channel() model.Channel { return model.Channel(e.Kind) }
func (e LogoutEvent) Channel() model.Channel   { return model.ChannelLogout }
func (e NotificationEvent) Channel() model.Channel {
	return model.NotificationChannel(e.Kind, e.UserID)
}
func (e CommentEvent) Channel() model.Channel { return model.CommentChannel(e.TicketID) }
func (e ReportEvent) Channel() model.Channel {
	switch e.Kind {
	case ReportUpdated:
		return model.ChannelReportUpdated
	case ReportDeleted:
		return model.ChannelReportDeleted
	default:
		return model.ChannelReportCreated
	}
}

func (PresenceEvent) event()     {}
func (LogoutEvent) event()       {}
func (NotificationEvent) event() {}
func (CommentEvent) event()      {}
func (ReportEvent) event()       {}

type employeePayload struct {
	EmployeeID string    `json:"employeeId"`
	Timestamp  time.Time `json:"timestamp"`
}

type notificationPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

type commentPayload struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type reportPayload struct {
	ReportID   string `json:"reportId"`
	EmployeeID string `json:"employeeId"`
}

// Parse decodes the payload delivered on channel. Unknown channels and
// payloads missing their identifying field yield ErrUnrecognizedPayload.
func Parse(channel model.Channel, data json.RawMessage) (Event, error) {
	switch channel {
	case model.ChannelPunchIn, model.ChannelPunchOut, model.ChannelNewBreak:
		var p employeePayload
		if err := decode(data, &p); err != nil || p.EmployeeID == "" {
			return nil, unrecognized(channel, err)
		}
		return PresenceEvent{Kind: PresenceKind(channel), EmployeeID: p.EmployeeID, Timestamp: p.Timestamp}, nil

	case model.ChannelLogout:
		var p employeePayload
		if err := decode(data, &p); err != nil || p.EmployeeID == "" {
			return nil, unrecognized(channel, err)
		}
		return LogoutEvent{EmployeeID: p.EmployeeID}, nil

	case model.ChannelReportCreated, model.ChannelReportUpdated, model.ChannelReportDeleted:
		var p reportPayload
		if err := decode(data, &p); err != nil || p.ReportID == "" {
			return nil, unrecognized(channel, err)
		}
		kind := ReportKind(strings.ToLower(strings.TrimPrefix(string(channel), "report")))
		return ReportEvent{Kind: kind, ReportID: p.ReportID, EmployeeID: p.EmployeeID}, nil
	}

	if kind, userID, ok := model.ParseNotificationChannel(channel); ok {
		var p notificationPayload
		if err := decode(data, &p); err != nil || strings.TrimSpace(p.Message) == "" {
			return nil, unrecognized(channel, err)
		}
		return NotificationEvent{Kind: kind, UserID: userID, ID: p.ID, Message: p.Message, URL: p.URL}, nil
	}

	if ticketID, ok := model.ParseCommentChannel(channel); ok {
		var p commentPayload
		if err := decode(data, &p); err != nil || p.Body == "" {
			return nil, unrecognized(channel, err)
		}
		return CommentEvent{TicketID: ticketID, ID: p.ID, Author: p.Author, Body: p.Body, CreatedAt: p.CreatedAt}, nil
	}

	return nil, unrecognized(channel, nil)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, v)
}

func unrecognized(channel model.Channel, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w on %s: %v", ErrUnrecognizedPayload, channel, cause)
	}
	return fmt.Errorf("%w on %s", ErrUnrecognizedPayload, channel)
}
