package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workpresence/internal/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		channel model.Channel
		data    string
		want    Event
	}{
		{
			name:    "punch in",
			channel: model.ChannelPunchIn,
			data:    `{"employeeId":"e1"}`,
			want:    PresenceEvent{Kind: PresencePunchIn, EmployeeID: "e1"},
		},
		{
			name:    "break",
			channel: model.ChannelNewBreak,
			data:    `{"employeeId":"e2"}`,
			want:    PresenceEvent{Kind: PresenceBreak, EmployeeID: "e2"},
		},
		{
			name:    "logout",
			channel: model.ChannelLogout,
			data:    `{"employeeId":"e1"}`,
			want:    LogoutEvent{EmployeeID: "e1"},
		},
		{
			name:    "leave status notification",
			channel: model.NotificationChannel(model.NotificationLeaveStatus, "u9"),
			data:    `{"id":"n1","message":"Leave approved","url":"/leaves/4"}`,
			want: NotificationEvent{
				Kind: model.NotificationLeaveStatus, UserID: "u9",
				ID: "n1", Message: "Leave approved", URL: "/leaves/4",
			},
		},
		{
			name:    "comment",
			channel: model.CommentChannel("T-7"),
			data:    `{"id":"c1","author":"ana","body":"done"}`,
			want:    CommentEvent{TicketID: "T-7", ID: "c1", Author: "ana", Body: "done"},
		},
		{
			name:    "report updated",
			channel: model.ChannelReportUpdated,
			data:    `{"reportId":"r1","employeeId":"e1"}`,
			want:    ReportEvent{Kind: ReportUpdated, ReportID: "r1", EmployeeID: "e1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.channel, json.RawMessage(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.channel, got.Channel())
		})
	}
}

func TestParseUnrecognized(t *testing.T) {
	tests := []struct {
		name    string
		channel model.Channel
		data    string
	}{
		{"unknown channel", "weather", `{"employeeId":"e1"}`},
		{"missing employee", model.ChannelPunchOut, `{}`},
		{"not an object", model.ChannelLogout, `[1,2]`},
		{"empty message", model.NotificationChannel(model.NotificationTodo, "u1"), `{"message":"  "}`},
		{"empty payload", model.ChannelReportDeleted, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.channel, json.RawMessage(tt.data))
			assert.ErrorIs(t, err, ErrUnrecognizedPayload)
		})
	}
}
