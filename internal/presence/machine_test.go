package presence

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workpresence/internal/api"
	"github.com/nhle/workpresence/internal/model"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(hh, mm int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Date(2026, 3, 2, hh, mm, 0, 0, time.UTC)
}

// fakeBackend simulates the attendance server, deriving break minutes from
// the recorded break events.
type fakeBackend struct {
	mu    sync.Mutex
	clock *fakeClock
	calls []string

	punchedIn bool
	punchAt   *time.Time
	onBreak   bool
	breakAt   time.Time
	breakMins int

	reports []model.ReportDraft

	punchInErr  error
	punchOutErr error
	reportErr   error
	durationErr error
}

func newFakeBackend(clock *fakeClock) *fakeBackend {
	return &fakeBackend{clock: clock}
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) PunchStatus(context.Context) (*api.PunchStatus, error) {
	b.record("PunchStatus")
	return &api.PunchStatus{IsPunchedIn: b.punchedIn, PunchInTime: b.punchAt}, nil
}

func (b *fakeBackend) PunchIn(context.Context) (*api.PunchStatus, error) {
	b.record("PunchIn")
	if b.punchInErr != nil {
		return nil, b.punchInErr
	}
	at := b.clock.Now()
	b.punchedIn, b.punchAt = true, &at
	return &api.PunchStatus{IsPunchedIn: true, PunchInTime: &at}, nil
}

func (b *fakeBackend) PunchOut(context.Context) error {
	b.record("PunchOut")
	if b.punchOutErr != nil {
		return b.punchOutErr
	}
	b.punchedIn, b.punchAt, b.breakMins = false, nil, 0
	return nil
}

func (b *fakeBackend) BreakStatus(context.Context) (*api.BreakStatus, error) {
	b.record("BreakStatus")
	return &api.BreakStatus{IsOnBreak: b.onBreak}, nil
}

func (b *fakeBackend) BreakDuration(context.Context) (int, error) {
	b.record("BreakDuration")
	if b.durationErr != nil {
		return 0, b.durationErr
	}
	return b.breakMins, nil
}

func (b *fakeBackend) RecordBreak(_ context.Context, ev model.BreakEvent) error {
	b.record("RecordBreak:" + string(ev.Action))
	switch ev.Action {
	case model.BreakIn:
		b.onBreak, b.breakAt = true, ev.Timestamp
	case model.BreakOut:
		b.onBreak = false
		b.breakMins += int(ev.Timestamp.Sub(b.breakAt) / time.Minute)
	}
	return nil
}

func (b *fakeBackend) SubmitReport(_ context.Context, d model.ReportDraft) error {
	b.record("SubmitReport")
	if b.reportErr != nil {
		return b.reportErr
	}
	b.reports = append(b.reports, d)
	return nil
}

func newTestMachine(t *testing.T) (*Machine, *fakeBackend, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	clock.Set(9, 0)
	b := newFakeBackend(clock)
	m := New(b, WithClock(clock.Now))
	require.NoError(t, m.Load(context.Background()))
	require.Equal(t, StatePunchedOut, m.State())
	return m, b, clock
}

func TestFullShift(t *testing.T) {
	ctx := context.Background()
	m, b, clock := newTestMachine(t)

	require.NoError(t, m.RequestPunchIn(ctx))
	assert.Equal(t, StatePunchedIn, m.State())

	clock.Set(12, 0)
	require.NoError(t, m.RequestBreakIn(ctx, "Lunch"))
	assert.Equal(t, StatePunchedInOnBreak, m.State())

	clock.Set(12, 30)
	require.NoError(t, m.RequestBreakOut(ctx))
	assert.Equal(t, StatePunchedIn, m.State())

	clock.Set(18, 0)
	draft, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSubmittingReport, m.State())
	assert.Equal(t, "09:00", draft.StartTime)
	assert.Equal(t, "18:00", draft.EndTime)
	assert.Equal(t, 30, draft.BreakDurationMinutes)
	assert.Equal(t, "09:00", draft.TotalHours)
	assert.Equal(t, "08:30", draft.WorkingHours)

	draft.Description = "Closed three tickets"
	require.NoError(t, m.SubmitReport(ctx, draft))
	assert.Equal(t, StatePunchedOut, m.State())

	snap := m.Snapshot()
	assert.Nil(t, snap.Record.PunchInTime)
	assert.Nil(t, snap.Draft)
	require.Len(t, b.reports, 1)
	assert.Equal(t, "Closed three tickets", b.reports[0].Description)
}

func TestBreakInFromPunchedOut_NoNetworkCall(t *testing.T) {
	m, b, _ := newTestMachine(t)
	before := len(b.Calls())

	err := m.RequestBreakIn(context.Background(), "Coffee")
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.ErrorIs(t, err, ErrNotPunchedIn)
	assert.False(t, api.IsServerRejection(err))
	assert.Equal(t, StatePunchedOut, m.State())
	assert.Len(t, b.Calls(), before)
}

func TestBreakInRequiresReason(t *testing.T) {
	ctx := context.Background()
	m, b, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))
	before := len(b.Calls())

	err := m.RequestBreakIn(ctx, "   ")
	assert.ErrorIs(t, err, ErrReasonRequired)
	assert.Equal(t, StatePunchedIn, m.State())
	assert.Len(t, b.Calls(), before)
}

func TestPunchOutWhileOnBreak(t *testing.T) {
	ctx := context.Background()
	m, b, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))
	require.NoError(t, m.RequestBreakIn(ctx, "Lunch"))
	before := len(b.Calls())

	_, err := m.RequestPunchOut(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBreakOutFirst)
	assert.Contains(t, err.Error(), "break out first")
	assert.Equal(t, StatePunchedInOnBreak, m.State())
	assert.Len(t, b.Calls(), before)
}

func TestBreakOutWhenNotOnBreak(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))

	err := m.RequestBreakOut(ctx)
	assert.ErrorIs(t, err, ErrNotOnBreak)
	assert.Equal(t, StatePunchedIn, m.State())
}

func TestPunchInRejectedByServer(t *testing.T) {
	m, b, _ := newTestMachine(t)
	b.punchInErr = &api.ServerRejection{
		StatusCode: http.StatusConflict,
		Message:    "You have already punched in today",
	}

	err := m.RequestPunchIn(context.Background())
	require.Error(t, err)
	assert.False(t, IsPrecondition(err))

	var rej *api.ServerRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "You have already punched in today", err.Error())
	assert.Equal(t, StatePunchedOut, m.State())
}

func TestPunchInTwice(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))

	err := m.RequestPunchIn(ctx)
	assert.ErrorIs(t, err, ErrAlreadyPunchedIn)
}

func TestSubmitReport_PunchOutFails(t *testing.T) {
	ctx := context.Background()
	m, b, clock := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))
	clock.Set(17, 0)

	draft, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)
	draft.Description = "Long text I do not want to retype"

	b.punchOutErr = errors.New("gateway timeout")
	err = m.SubmitReport(ctx, draft)
	require.Error(t, err)

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, StepPunchOut, pf.Step)
	assert.True(t, pf.ReportSaved)
	assert.Equal(t, StateSubmittingReport, m.State())

	snap := m.Snapshot()
	require.NotNil(t, snap.Draft)
	assert.Equal(t, "Long text I do not want to retype", snap.Draft.Description)
	assert.True(t, snap.ReportSaved)

	// The retry must not save the report a second time.
	b.punchOutErr = nil
	require.NoError(t, m.SubmitReport(ctx, *snap.Draft))
	assert.Equal(t, StatePunchedOut, m.State())
	assert.Len(t, b.reports, 1)
}

func TestSubmitReport_ReportFails(t *testing.T) {
	ctx := context.Background()
	m, b, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))

	draft, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)

	b.reportErr = &api.ServerRejection{StatusCode: http.StatusBadRequest, Message: "description is required"}
	err = m.SubmitReport(ctx, draft)

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, StepReport, pf.Step)
	assert.False(t, pf.ReportSaved)
	assert.NotContains(t, b.Calls(), "PunchOut")
	assert.Equal(t, StateSubmittingReport, m.State())
}

func TestPunchOut_DurationFetchFails(t *testing.T) {
	ctx := context.Background()
	m, b, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))

	b.durationErr = errors.New("unavailable")
	_, err := m.RequestPunchOut(ctx)
	require.Error(t, err)
	assert.Equal(t, StatePunchedIn, m.State())
}

func TestCancelReport(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))
	_, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)

	require.NoError(t, m.CancelReport())
	assert.Equal(t, StatePunchedIn, m.State())
	assert.Nil(t, m.Snapshot().Draft)

	assert.ErrorIs(t, m.CancelReport(), ErrNoDraft)
}

func TestUpdateDraft_RetainsHoursWhileEditing(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))
	clock.Set(17, 0)
	draft, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)
	require.Equal(t, "08:00", draft.TotalHours)

	draft.EndTime = "1"
	edited, err := m.UpdateDraft(draft)
	require.NoError(t, err)
	assert.Equal(t, "08:00", edited.TotalHours)

	draft.EndTime = "19:15"
	edited, err = m.UpdateDraft(draft)
	require.NoError(t, err)
	assert.Equal(t, "10:15", edited.TotalHours)
}

func TestOvernightDraft(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestMachine(t)
	clock.Set(23, 50)
	require.NoError(t, m.RequestPunchIn(ctx))

	clock.now = time.Date(2026, 3, 3, 0, 10, 0, 0, time.UTC)
	draft, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00:20", draft.TotalHours)
	assert.Equal(t, "2026-03-02", draft.Date)
}

func TestLoadInfersOnBreak(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(13, 0)
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	b := newFakeBackend(clock)
	b.punchedIn, b.punchAt, b.onBreak, b.breakMins = true, &at, true, 15

	m := New(b, WithClock(clock.Now))
	assert.Equal(t, StateLoggedOut, m.State())
	require.NoError(t, m.Load(context.Background()))

	snap := m.Snapshot()
	assert.Equal(t, StatePunchedInOnBreak, snap.State)
	assert.Equal(t, 15, snap.Record.BreakDurationMinutes)
	assert.Equal(t, "05:00:00", m.ElapsedString())
}

func TestRefreshKeepsDraftWhilePunchOpen(t *testing.T) {
	ctx := context.Background()
	m, b, _ := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))
	_, err := m.RequestPunchOut(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, StateSubmittingReport, m.State())

	// Another tab finished the punch-out.
	b.punchedIn, b.punchAt = false, nil
	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, StatePunchedOut, m.State())
	assert.Nil(t, m.Snapshot().Draft)
}

func TestElapsedIsRecomputedFromClock(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestMachine(t)
	require.NoError(t, m.RequestPunchIn(ctx))

	// A suspended process sees the right value as soon as it reads again.
	clock.Set(11, 45)
	assert.Equal(t, 2*time.Hour+45*time.Minute, m.Elapsed())

	m.Logout()
	assert.Equal(t, StateLoggedOut, m.State())
	assert.Equal(t, time.Duration(0), m.Elapsed())
	assert.ErrorIs(t, m.RequestPunchIn(ctx), ErrLoggedOut)
}
