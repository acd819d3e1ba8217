package presence

// State is the presence state of the current session.
type State int

const (
	StateLoggedOut State = iota
	StatePunchedOut
	StatePunchedIn
	StatePunchedInOnBreak

	// StateSubmittingReport is entered from StatePunchedIn by a punch-out
	// request and left by a successful submission or a cancel.
	StateSubmittingReport
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged out"
	case StatePunchedOut:
		return "punched out"
	case StatePunchedIn:
		return "punched in"
	case StatePunchedInOnBreak:
		return "on break"
	case StateSubmittingReport:
		return "submitting report"
	default:
		return "unknown"
	}
}

// PunchOpen reports whether the state has an open punch session.
func (s State) PunchOpen() bool {
	return s == StatePunchedIn || s == StatePunchedInOnBreak || s == StateSubmittingReport
}
