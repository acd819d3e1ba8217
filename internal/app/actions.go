package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/worker"
)

// actionTimeout bounds a single presence transition, network calls included.
const actionTimeout = 30 * time.Second

// tickMsg drives the elapsed display.
type tickMsg time.Time

// unreadChangedMsg is sent by the notification store listener.
type unreadChangedMsg struct{}

// loggedOutMsg is sent when a remote logout ended the session.
type loggedOutMsg struct{}

// toastMsg carries a notification shown by the background worker.
type toastMsg struct {
	note worker.Notification
}

// actionResultMsg reports the outcome of a presence transition.
type actionResultMsg struct {
	op  string
	err error
}

// punchOutReadyMsg carries the pre-filled report draft.
type punchOutReadyMsg struct {
	draft model.ReportDraft
	err   error
}

// submitResultMsg reports the outcome of a report submission.
type submitResultMsg struct {
	draft model.ReportDraft
	err   error
}

// feedUpdatedMsg is sent after a mark-read completed.
type feedUpdatedMsg struct {
	err error
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) punchIn() tea.Cmd {
	return m.run("punch in", m.machine.RequestPunchIn)
}

func (m Model) breakIn(reason string) tea.Cmd {
	return m.run("break in", func(ctx context.Context) error {
		return m.machine.RequestBreakIn(ctx, reason)
	})
}

func (m Model) breakOut() tea.Cmd {
	return m.run("break out", m.machine.RequestBreakOut)
}

func (m Model) refresh() tea.Cmd {
	return m.run("refresh", m.machine.Refresh)
}

func (m Model) punchOut() tea.Cmd {
	mc := m.machine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		draft, err := mc.RequestPunchOut(ctx)
		return punchOutReadyMsg{draft: draft, err: err}
	}
}

func (m Model) submitReport(draft model.ReportDraft) tea.Cmd {
	mc := m.machine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return submitResultMsg{draft: draft, err: mc.SubmitReport(ctx, draft)}
	}
}

func (m Model) markRead(index int) tea.Cmd {
	feed := m.feed
	return func() tea.Msg {
		return feedUpdatedMsg{err: feed.MarkRead(context.Background(), index)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	feed := m.feed
	return func() tea.Msg {
		return feedUpdatedMsg{err: feed.MarkAllRead(context.Background())}
	}
}

func (m Model) unsubscribePush() tea.Cmd {
	p := m.push
	return m.run("unsubscribe push", func(ctx context.Context) error {
		if p == nil {
			return nil
		}
		return p.Unsubscribe(ctx)
	})
}

// openItem hands the item's link to the worker as a notification click so
// it is focused or opened the same way a desktop notification would be.
func (m *Model) openItem(index int) {
	items := m.feed.Items()
	if m.inbox == nil || index < 0 || index >= len(items) || items[index].URL == "" {
		return
	}
	msg, err := worker.NewMessage(worker.MessageNotificationClick, worker.ClickPayload{
		Action: worker.ViewAction,
		URL:    items[index].URL,
	})
	if err != nil {
		m.errMessage = err.Error()
		return
	}
	select {
	case m.inbox <- msg:
	default:
		m.logger.Debug("worker inbox full, dropping click")
	}
}

func waitSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

func waitToast(ch <-chan worker.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return toastMsg{note: n}
	}
}
