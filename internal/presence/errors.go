package presence

import (
	"errors"
	"fmt"

	"github.com/nhle/workpresence/internal/api"
)

// Causes of a PreconditionViolation. Compare with errors.Is.
var (
	ErrLoggedOut        = errors.New("not signed in")
	ErrNotPunchedIn     = errors.New("punch in first")
	ErrAlreadyPunchedIn = errors.New("already punched in")
	ErrBreakOutFirst    = errors.New("break out first before punching out")
	ErrAlreadyOnBreak   = errors.New("already on a break")
	ErrNotOnBreak       = errors.New("not on a break")
	ErrReasonRequired   = errors.New("a break reason is required")
	ErrNoDraft          = errors.New("no report is being submitted")
	ErrReportOpen       = errors.New("finish or cancel the open report first")
)

// PreconditionViolation is a transition refused locally, before any network
// call. The machine state is unchanged.
type PreconditionViolation struct {
	Op    string
	State State
	Err   error
}

func (e *PreconditionViolation) Error() string {
	return fmt.Sprintf("%s not allowed while %s: %v", e.Op, e.State, e.Err)
}

func (e *PreconditionViolation) Unwrap() error { return e.Err }

// IsPrecondition reports whether err is a PreconditionViolation.
func IsPrecondition(err error) bool {
	var pv *PreconditionViolation
	return errors.As(err, &pv)
}

// Step names one half of the report submission.
type Step string

const (
	StepReport   Step = "report"
	StepPunchOut Step = "punch-out"
)

// PartialFailure is returned by SubmitReport when one half failed. The
// machine stays in StateSubmittingReport with the draft preserved.
type PartialFailure struct {
	Step Step

	// ReportSaved is true when the report half already succeeded.
	ReportSaved bool

	Err error
}

func (e *PartialFailure) Error() string {
	if e.ReportSaved {
		return fmt.Sprintf("report saved, but %s failed: %s", e.Step, api.Message(e.Err))
	}
	return fmt.Sprintf("%s failed: %s", e.Step, api.Message(e.Err))
}

func (e *PartialFailure) Unwrap() error { return e.Err }

// IsPartialFailure reports whether err is a PartialFailure.
func IsPartialFailure(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}
