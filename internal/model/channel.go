package model

import (
	"fmt"
	"strings"
)

// Channel is a realtime routing key. It is never stored.
type Channel string

// Global operational channels. Handlers filter by the embedded employee id.
const (
	ChannelNewBreak      Channel = "newBreak"
	ChannelPunchIn       Channel = "punch-in"
	ChannelPunchOut      Channel = "punch-out"
	ChannelLogout        Channel = "logout"
	ChannelReportCreated Channel = "reportCreated"
	ChannelReportUpdated Channel = "reportUpdated"
	ChannelReportDeleted Channel = "reportDeleted"
)

const (
	notificationInfix = "-notification-"
	commentPrefix     = "comment-"
)

// NotificationChannel returns the user-scoped channel for a notification kind.
func NotificationChannel(kind NotificationKind, userID string) Channel {
	return Channel(fmt.Sprintf("%s%s%s", kind, notificationInfix, userID))
}

// CommentChannel returns the channel carrying comments of one ticket.
func CommentChannel(ticketID string) Channel {
	return Channel(commentPrefix + ticketID)
}

// ParseNotificationChannel splits a notification channel into its kind and
// user id. ok is false for any other channel.
func ParseNotificationChannel(c Channel) (kind NotificationKind, userID string, ok bool) {
	s := string(c)
	// leave-status contains a hyphen, so match the known kinds explicitly.
	for _, k := range NotificationKinds {
		prefix := string(k) + notificationInfix
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return k, s[len(prefix):], true
		}
	}
	return "", "", false
}

// ParseCommentChannel returns the ticket id of a comment channel.
func ParseCommentChannel(c Channel) (ticketID string, ok bool) {
	s := string(c)
	if !strings.HasPrefix(s, commentPrefix) || len(s) == len(commentPrefix) {
		return "", false
	}
	return s[len(commentPrefix):], true
}

func (c Channel) String() string { return string(c) }
