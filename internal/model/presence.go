package model

import "time"

// PresenceRecord is the client-side view of the employee's current shift.
// It is rehydrated from the server on startup and never persisted locally.
type PresenceRecord struct {
	// PunchInTime is when the open punch started; nil while punched out.
	PunchInTime *time.Time `json:"punchInTime,omitempty"`

	IsPunchedIn bool `json:"isPunchedIn"`
	IsOnBreak   bool `json:"isOnBreak"`

	// BreakDurationMinutes is the total break time recorded for the open punch.
	BreakDurationMinutes int `json:"breakDurationMinutes"`
}

// BreakAction is the direction of a break transition.
type BreakAction string

const (
	BreakIn  BreakAction = "In"
	BreakOut BreakAction = "Out"
)

// BreakEvent is a single break boundary. The server owns the timeline;
// the client only mirrors the latest IsOnBreak flag.
type BreakEvent struct {
	Action BreakAction `json:"action"`

	// Reason is required for BreakIn and omitted for BreakOut.
	Reason string `json:"reason,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ReportDraft is the end-of-shift report opened by a punch-out request.
// StartTime and EndTime are wall-clock "HH:MM" values so they can be edited.
type ReportDraft struct {
	Description          string `json:"description"`
	Date                 string `json:"date"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
	BreakDurationMinutes int    `json:"breakDuration"`

	// WorkingHours and TotalHours are derived "HH:MM" strings.
	WorkingHours string `json:"workingHours"`
	TotalHours   string `json:"totalHours"`
}
