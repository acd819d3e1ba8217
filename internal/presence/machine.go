// Package presence holds the punch/break state machine of the signed-in
// employee. The server is authoritative: the machine only moves after the
// server accepted a transition, and Refresh rebuilds it from a snapshot.
package presence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/api"
	"github.com/nhle/workpresence/internal/logging"
	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/timecalc"
)

// Backend is the REST collaborator the machine drives.
type Backend interface {
	PunchStatus(ctx context.Context) (*api.PunchStatus, error)
	PunchIn(ctx context.Context) (*api.PunchStatus, error)
	PunchOut(ctx context.Context) error
	BreakStatus(ctx context.Context) (*api.BreakStatus, error)
	BreakDuration(ctx context.Context) (int, error)
	RecordBreak(ctx context.Context, ev model.BreakEvent) error
	SubmitReport(ctx context.Context, draft model.ReportDraft) error
}

// Snapshot is a copy of the machine for renderers.
type Snapshot struct {
	State  State
	Record model.PresenceRecord

	// Draft is non-nil only in StateSubmittingReport.
	Draft *model.ReportDraft

	// ReportSaved is true when the report half of a submission succeeded
	// and only the punch-out is outstanding.
	ReportSaved bool
}

// Machine is the presence state machine. All transitions are serialized;
// reads (Snapshot, Elapsed) never wait on a network call.
type Machine struct {
	backend Backend
	now     func() time.Time
	logger  *zap.Logger

	// opMu serializes transitions, including their network calls.
	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	record      model.PresenceRecord
	draft       *model.ReportDraft
	hours       timecalc.Hours
	reportSaved bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// New creates a machine in StateLoggedOut. Call Load to rehydrate it.
func New(backend Backend, opts ...Option) *Machine {
	m := &Machine{
		backend: backend,
		now:     time.Now,
		state:   StateLoggedOut,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrNop(m.logger).Named("presence")
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns a copy of the current state, record and draft.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		State:       m.state,
		Record:      m.record,
		ReportSaved: m.reportSaved,
	}
	if m.record.PunchInTime != nil {
		t := *m.record.PunchInTime
		s.Record.PunchInTime = &t
	}
	if m.draft != nil {
		d := *m.draft
		s.Draft = &d
	}
	return s
}

// Elapsed returns the time since punch-in, recomputed from the clock on
// every call so it stays correct across suspends. Zero when punched out.
func (m *Machine) Elapsed() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.record.PunchInTime == nil || !m.state.PunchOpen() {
		return 0
	}
	return timecalc.Elapsed(*m.record.PunchInTime, m.now())
}

// ElapsedString renders Elapsed as "HH:MM:SS".
func (m *Machine) ElapsedString() string {
	return timecalc.FormatElapsed(m.Elapsed())
}

// Load rehydrates the machine from the server. It is used on startup and
// as the target of every realtime presence hint.
func (m *Machine) Load(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.loadLocked(ctx)
}

// Refresh is Load under the name used by refetch triggers.
func (m *Machine) Refresh(ctx context.Context) error {
	return m.Load(ctx)
}

func (m *Machine) loadLocked(ctx context.Context) error {
	punch, err := m.backend.PunchStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetching punch status: %w", err)
	}

	if !punch.IsPunchedIn {
		m.mu.Lock()
		if m.state == StateSubmittingReport {
			m.logger.Info("punch closed elsewhere, dropping open report draft")
		}
		m.resetLocked(StatePunchedOut)
		m.mu.Unlock()
		return nil
	}

	brk, err := m.backend.BreakStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetching break status: %w", err)
	}
	minutes, err := m.backend.BreakDuration(ctx)
	if err != nil {
		return fmt.Errorf("fetching break duration: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.record.IsPunchedIn = true
	m.record.IsOnBreak = brk.IsOnBreak
	m.record.BreakDurationMinutes = minutes
	if punch.PunchInTime != nil {
		t := *punch.PunchInTime
		m.record.PunchInTime = &t
	} else if m.record.PunchInTime == nil {
		t := m.now()
		m.record.PunchInTime = &t
	}

	switch {
	case m.state == StateSubmittingReport && !brk.IsOnBreak:
		// Keep the draft the user is typing; the punch is still open.
	case brk.IsOnBreak:
		m.clearDraftLocked()
		m.state = StatePunchedInOnBreak
	default:
		m.state = StatePunchedIn
	}

	m.logger.Debug("presence loaded", zap.Stringer("state", m.state))
	return nil
}

// RequestPunchIn opens a punch session. It is only allowed while punched
// out. A server refusal leaves the state unchanged and is returned as an
// *api.ServerRejection carrying the server's message.
func (m *Machine) RequestPunchIn(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.require("punch in", StatePunchedOut); err != nil {
		return err
	}

	st, err := m.backend.PunchIn(ctx)
	if err != nil {
		return err
	}

	punchedAt := m.now()
	if st != nil && st.PunchInTime != nil {
		punchedAt = *st.PunchInTime
	}

	m.mu.Lock()
	m.state = StatePunchedIn
	m.record = model.PresenceRecord{
		PunchInTime: &punchedAt,
		IsPunchedIn: true,
	}
	m.mu.Unlock()

	m.logger.Info("punched in", zap.Time("at", punchedAt))
	return nil
}

// RequestBreakIn starts a break with a mandatory reason. It is only allowed
// while punched in; otherwise it fails locally without a network call.
func (m *Machine) RequestBreakIn(ctx context.Context, reason string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.require("break in", StatePunchedIn); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return &PreconditionViolation{Op: "break in", State: m.State(), Err: ErrReasonRequired}
	}

	ev := model.BreakEvent{Action: model.BreakIn, Reason: reason, Timestamp: m.now()}
	if err := m.backend.RecordBreak(ctx, ev); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = StatePunchedInOnBreak
	m.record.IsOnBreak = true
	m.mu.Unlock()

	m.logger.Info("break started", zap.String("reason", reason))
	return nil
}

// RequestBreakOut ends the current break.
func (m *Machine) RequestBreakOut(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.require("break out", StatePunchedInOnBreak); err != nil {
		return err
	}

	ev := model.BreakEvent{Action: model.BreakOut, Timestamp: m.now()}
	if err := m.backend.RecordBreak(ctx, ev); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = StatePunchedIn
	m.record.IsOnBreak = false
	m.mu.Unlock()

	// The duration is refetched at punch-out; this only keeps the display current.
	if minutes, err := m.backend.BreakDuration(ctx); err == nil {
		m.mu.Lock()
		m.record.BreakDurationMinutes = minutes
		m.mu.Unlock()
	} else {
		m.logger.Warn("refreshing break duration", zap.Error(err))
	}

	m.logger.Info("break ended")
	return nil
}

// RequestPunchOut opens the end-of-shift report. It is refused while on a
// break. The draft is pre-filled from the punch-in time, the current time,
// and the server's break total, and the machine enters
// StateSubmittingReport.
func (m *Machine) RequestPunchOut(ctx context.Context) (model.ReportDraft, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.require("punch out", StatePunchedIn); err != nil {
		return model.ReportDraft{}, err
	}

	minutes, err := m.backend.BreakDuration(ctx)
	if err != nil {
		return model.ReportDraft{}, fmt.Errorf("fetching break duration: %w", err)
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	start := now
	if m.record.PunchInTime != nil {
		start = m.record.PunchInTime.In(now.Location())
	}

	m.record.BreakDurationMinutes = minutes
	draft := model.ReportDraft{
		Date:                 start.Format("2006-01-02"),
		StartTime:            timecalc.Clock(start),
		EndTime:              timecalc.Clock(now),
		BreakDurationMinutes: minutes,
	}
	m.hours = timecalc.Hours{}.Recompute(draft.StartTime, draft.EndTime, minutes)
	draft.TotalHours = m.hours.Total
	draft.WorkingHours = m.hours.Working

	m.draft = &draft
	m.reportSaved = false
	m.state = StateSubmittingReport

	return draft, nil
}

// UpdateDraft replaces the editable fields of the open draft and recomputes
// the derived hours. When the edited times cannot be parsed yet, the
// previous hours are kept.
func (m *Machine) UpdateDraft(edit model.ReportDraft) (model.ReportDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSubmittingReport || m.draft == nil {
		return model.ReportDraft{}, &PreconditionViolation{Op: "edit report", State: m.state, Err: ErrNoDraft}
	}

	d := m.draft
	d.Description = edit.Description
	d.StartTime = edit.StartTime
	d.EndTime = edit.EndTime
	if edit.BreakDurationMinutes >= 0 {
		d.BreakDurationMinutes = edit.BreakDurationMinutes
	}

	m.hours = m.hours.Recompute(d.StartTime, d.EndTime, d.BreakDurationMinutes)
	d.TotalHours = m.hours.Total
	d.WorkingHours = m.hours.Working

	return *d, nil
}

// SubmitReport saves the report and then closes the punch. The machine
// returns to StatePunchedOut only when both calls succeed; otherwise it
// stays in StateSubmittingReport and a *PartialFailure names the failed
// step. A retry after the report succeeded only repeats the punch-out.
func (m *Machine) SubmitReport(ctx context.Context, draft model.ReportDraft) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.require("submit report", StateSubmittingReport); err != nil {
		return err
	}

	// Keep what the user typed even if a step below fails.
	if _, err := m.UpdateDraft(draft); err != nil {
		return err
	}
	final := m.Snapshot()

	if !final.ReportSaved {
		if err := m.backend.SubmitReport(ctx, *final.Draft); err != nil {
			return &PartialFailure{Step: StepReport, Err: err}
		}
		m.mu.Lock()
		m.reportSaved = true
		m.mu.Unlock()
	}

	if err := m.backend.PunchOut(ctx); err != nil {
		return &PartialFailure{Step: StepPunchOut, ReportSaved: true, Err: err}
	}

	m.mu.Lock()
	m.resetLocked(StatePunchedOut)
	m.mu.Unlock()

	m.logger.Info("punched out", zap.String("working", final.Draft.WorkingHours))
	return nil
}

// CancelReport discards the open draft and returns to StatePunchedIn.
func (m *Machine) CancelReport() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.require("cancel report", StateSubmittingReport); err != nil {
		return err
	}

	m.mu.Lock()
	m.clearDraftLocked()
	m.state = StatePunchedIn
	m.mu.Unlock()
	return nil
}

// Logout drops all session state.
func (m *Machine) Logout() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	m.resetLocked(StateLoggedOut)
	m.mu.Unlock()
}

// require refuses the operation unless the machine is in want. The cause
// names the most useful next step for the current state.
func (m *Machine) require(op string, want State) error {
	cur := m.State()
	if cur == want {
		return nil
	}

	var cause error
	switch cur {
	case StateLoggedOut:
		cause = ErrLoggedOut
	case StatePunchedOut:
		cause = ErrNotPunchedIn
	case StatePunchedIn:
		switch want {
		case StatePunchedOut:
			cause = ErrAlreadyPunchedIn
		case StatePunchedInOnBreak:
			cause = ErrNotOnBreak
		default:
			cause = ErrNoDraft
		}
	case StatePunchedInOnBreak:
		switch want {
		case StatePunchedIn:
			if op == "punch out" {
				cause = ErrBreakOutFirst
			} else {
				cause = ErrAlreadyOnBreak
			}
		case StatePunchedOut:
			cause = ErrAlreadyPunchedIn
		default:
			cause = ErrNoDraft
		}
	case StateSubmittingReport:
		if want == StatePunchedOut {
			cause = ErrAlreadyPunchedIn
		} else {
			cause = ErrReportOpen
		}
	}

	return &PreconditionViolation{Op: op, State: cur, Err: cause}
}

func (m *Machine) resetLocked(state State) {
	m.state = state
	m.record = model.PresenceRecord{}
	m.clearDraftLocked()
}

func (m *Machine) clearDraftLocked() {
	m.draft = nil
	m.hours = timecalc.Hours{}
	m.reportSaved = false
}
