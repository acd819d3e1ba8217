package api

import "time"

// PunchStatus is the response of GET /punches/status and POST /punches/in.
type PunchStatus struct {
	IsPunchedIn bool       `json:"isPunchedIn"`
	PunchInTime *time.Time `json:"punchInTime,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// BreakStatus is the response of GET /breaks/status.
type BreakStatus struct {
	IsOnBreak  bool       `json:"isOnBreak"`
	LastAction string     `json:"lastAction,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// BreakDuration is the response of GET /breaks/duration.
type BreakDuration struct {
	TotalMinutes int `json:"totalMinutes"`
}

// VAPIDKey is the response of GET /users/vapid-public-key.
type VAPIDKey struct {
	PublicKey string `json:"publicKey"`
}

// messageResponse is the generic acknowledgement body.
type messageResponse struct {
	Message string `json:"message"`
}

// errorResponse covers both failure body shapes the backend emits.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
