package model

import (
	"fmt"
	"time"
)

// NotificationKind identifies the entity family a notification refers to.
type NotificationKind string

const (
	NotificationTodo        NotificationKind = "todo"
	NotificationTicket      NotificationKind = "ticket"
	NotificationEvent       NotificationKind = "event"
	NotificationHoliday     NotificationKind = "holiday"
	NotificationLeave       NotificationKind = "leave"
	NotificationLeaveStatus NotificationKind = "leave-status"
)

// NotificationKinds lists every kind that has a per-user channel.
var NotificationKinds = []NotificationKind{
	NotificationTodo,
	NotificationTicket,
	NotificationEvent,
	NotificationHoliday,
	NotificationLeave,
	NotificationLeaveStatus,
}

// NotificationItem is a single entry of the in-app notification feed.
type NotificationItem struct {
	// ID is the channel-assigned identifier, empty when the event had none.
	ID string `json:"id,omitempty"`

	// Kind identifies which channel family delivered this notification.
	Kind NotificationKind `json:"kind,omitempty"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// URL is the in-app deep link for the notification.
	URL string `json:"url,omitempty"`

	// Read only ever moves from false to true.
	Read bool `json:"read"`

	ReceivedAt time.Time `json:"receivedAt"`
}

// NotificationsKey returns the durable storage key of a user's feed.
func NotificationsKey(userID string) string {
	return fmt.Sprintf("notifications-%s", userID)
}
