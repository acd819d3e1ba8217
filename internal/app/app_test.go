package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/workpresence/internal/api"
	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/notify"
	"github.com/nhle/workpresence/internal/presence"
	"github.com/nhle/workpresence/internal/realtime"
	appsync "github.com/nhle/workpresence/internal/sync"
	"github.com/nhle/workpresence/internal/ui/notifications"
	"github.com/nhle/workpresence/internal/ui/reportform"
	"github.com/nhle/workpresence/internal/worker"
	"github.com/nhle/workpresence/tests/testutil"
)

type stubBackend struct {
	punchedIn bool
	at        time.Time
}

func (b *stubBackend) PunchStatus(context.Context) (*api.PunchStatus, error) {
	st := &api.PunchStatus{IsPunchedIn: b.punchedIn}
	if b.punchedIn {
		st.PunchInTime = &b.at
	}
	return st, nil
}

func (b *stubBackend) PunchIn(context.Context) (*api.PunchStatus, error) {
	b.punchedIn = true
	return &api.PunchStatus{IsPunchedIn: true, PunchInTime: &b.at}, nil
}

func (b *stubBackend) PunchOut(context.Context) error {
	b.punchedIn = false
	return nil
}

func (b *stubBackend) BreakStatus(context.Context) (*api.BreakStatus, error) {
	return &api.BreakStatus{}, nil
}

func (b *stubBackend) BreakDuration(context.Context) (int, error) { return 15, nil }

func (b *stubBackend) RecordBreak(context.Context, model.BreakEvent) error { return nil }

func (b *stubBackend) SubmitReport(context.Context, model.ReportDraft) error { return nil }

type fixture struct {
	model   Model
	machine *presence.Machine
	feed    *notify.Store
	inbox   chan worker.Message
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	backend := &stubBackend{at: time.Now().Add(-90 * time.Minute)}
	machine := presence.New(backend)
	require.NoError(t, machine.Load(ctx))

	feed := notify.New(testutil.NewTestStore(t))
	require.NoError(t, feed.Init(ctx, "u1"))

	inbox := make(chan worker.Message, 4)
	m := New(Deps{
		Machine: machine,
		Feed:    feed,
		Poller:  appsync.New(machine, time.Hour, nil),
		Inbox:   inbox,
		UserID:  "u1",
		Role:    model.RoleEmployee,
	})
	f := &fixture{model: m, machine: machine, feed: feed, inbox: inbox}
	f.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return f
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

func (f *fixture) press(s string) tea.Cmd {
	return f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestViewBeforeSizeIsLoading(t *testing.T) {
	f := newFixture(t)
	m := New(Deps{Machine: f.machine, Feed: f.feed, Poller: appsync.New(f.machine, time.Hour, nil)})
	assert.Equal(t, "Loading...", m.View())
}

func TestPunchInKey(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.model.View(), "Work Presence")

	cmd := f.press("i")
	require.NotNil(t, cmd)
	f.send(cmd())

	assert.Equal(t, presence.StatePunchedIn, f.machine.State())
	assert.Empty(t, f.model.errMessage)
	assert.Contains(t, f.model.View(), "PUNCHED IN")
}

func TestRefusedTransitionShowsMessage(t *testing.T) {
	f := newFixture(t)

	// Breaking while punched out is refused locally, without opening the form.
	cmd := f.press("b")
	assert.Equal(t, ViewDashboard, f.model.currentView)
	require.NotNil(t, cmd)
	f.send(cmd())

	assert.NotEmpty(t, f.model.errMessage)
	assert.Equal(t, presence.StatePunchedOut, f.machine.State())
}

func TestPunchOutOpensReport(t *testing.T) {
	f := newFixture(t)
	f.send(f.press("i")())

	cmd := f.press("o")
	require.NotNil(t, cmd)
	f.send(cmd())

	assert.Equal(t, ViewReportForm, f.model.currentView)
	assert.Equal(t, presence.StateSubmittingReport, f.machine.State())
	assert.Equal(t, 15, f.model.reportForm.Draft().BreakDurationMinutes)
}

func TestCancelReportReturnsToPunchedIn(t *testing.T) {
	f := newFixture(t)
	f.send(f.press("i")())
	f.send(f.press("o")())

	f.send(reportform.ReportCancelMsg{})

	assert.Equal(t, ViewDashboard, f.model.currentView)
	assert.Equal(t, presence.StatePunchedIn, f.machine.State())
}

func TestUnreadSignal(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.feed.Ingest(context.Background(), realtime.NotificationEvent{
		Kind:    model.NotificationTicket,
		Message: "Ticket T-1 assigned",
		URL:     "/tickets/T-1",
	}))

	msg := waitSignal(f.model.unreadCh, unreadChangedMsg{})()
	assert.Equal(t, unreadChangedMsg{}, msg)
	f.send(msg)

	assert.Contains(t, f.model.dashboard.View(), "1 unread")
}

func TestMarkReadSendsClickToWorker(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.feed.Ingest(context.Background(), realtime.NotificationEvent{
		Kind:    model.NotificationTicket,
		Message: "Ticket T-1 assigned",
		URL:     "/tickets/T-1",
	}))

	cmd := f.send(notifications.MarkReadMsg{Index: 0})
	require.NotNil(t, cmd)
	f.send(cmd())

	require.Len(t, f.inbox, 1)
	msg := <-f.inbox
	assert.Equal(t, worker.MessageNotificationClick, msg.Type)
	assert.Contains(t, string(msg.Payload), "/tickets/T-1")
	assert.Equal(t, 0, f.feed.UnreadCount())
}

func TestServerRejectionShownVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "GET /punches/status":
			_, _ = w.Write([]byte(`{"isPunchedIn":false}`))
		case "POST /punches/in":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"You have already punched in today"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, api.StaticToken("tok"), api.WithMaxRetries(0))
	machine := presence.New(client)
	require.NoError(t, machine.Load(context.Background()))
	feed := notify.New(testutil.NewTestStore(t))
	require.NoError(t, feed.Init(context.Background(), "u1"))

	f := &fixture{
		model:   New(Deps{Machine: machine, Feed: feed, Poller: appsync.New(machine, time.Hour, nil)}),
		machine: machine,
		feed:    feed,
	}
	f.send(tea.WindowSizeMsg{Width: 100, Height: 30})

	f.send(f.press("i")())

	assert.Equal(t, "You have already punched in today", f.model.errMessage)
	assert.Equal(t, presence.StatePunchedOut, machine.State())
}

func TestDescribePartialFailureKeepsStep(t *testing.T) {
	err := &presence.PartialFailure{
		Step:        presence.StepPunchOut,
		ReportSaved: true,
		Err:         fmt.Errorf("api.PunchOut: %w", &api.ServerRejection{Message: "Punch-out window closed"}),
	}
	assert.Equal(t, "report saved, but punch-out failed: Punch-out window closed", describe(err))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	next, _ := f.model.executeCommand("dance")
	assert.Equal(t, "unknown command: dance", next.(Model).errMessage)
}
