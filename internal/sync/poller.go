// Package sync refetches the authoritative presence snapshot, both on a
// fixed resync interval and whenever a realtime hint arrives.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/api"
	"github.com/nhle/workpresence/internal/presence"
)

// SyncState represents the current state of the refetch loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the outcome of the latest refetch.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// PresenceSyncedMsg is a tea.Msg sent when a refetch completes.
type PresenceSyncedMsg struct {
	Snapshot  presence.Snapshot
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the server no longer accepts the token.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single refetch.
const fetchTimeout = 30 * time.Second

// Refresher is the presence machine as seen by the poller.
type Refresher interface {
	Refresh(ctx context.Context) error
	Snapshot() presence.Snapshot
}

// Poller runs the refetch loop in the background.
type Poller struct {
	target    Refresher
	interval  time.Duration
	logger    *zap.Logger
	status    SyncStatus
	resultCh  chan PresenceSyncedMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a poller that refreshes target every interval.
func New(target Refresher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		target:    target,
		interval:  interval,
		logger:    logger.Named("sync"),
		resultCh:  make(chan PresenceSyncedMsg, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the loop and returns a command that waits for the first
// result. Starting a running poller returns nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go p.loop(stop)

	return p.waitForResult()
}

// Stop halts the loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Trigger requests an immediate refetch. Triggers that arrive while one is
// already pending are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Results exposes the result channel for callers outside Bubble Tea.
func (p *Poller) Results() <-chan PresenceSyncedMsg {
	return p.resultCh
}

// Status returns the outcome of the latest refetch.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.refresh()
		case <-p.triggerCh:
			p.refresh()
		}
	}
}

// refresh performs one refetch and publishes the result.
func (p *Poller) refresh() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	err := p.target.Refresh(ctx)
	msg := PresenceSyncedMsg{Snapshot: p.target.Snapshot(), Error: err}

	if err != nil {
		p.setStatus(SyncError, err)
		p.logger.Warn("presence refetch failed", zap.Error(err))

		if api.IsAuthError(err) {
			msg.AuthError = &AuthErrorMsg{Message: "session expired: sign in again"}
		}
		p.sendResult(msg)
		return
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(msg)
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a result without blocking.
func (p *Poller) sendResult(msg PresenceSyncedMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refetch
// result. Call it after handling a PresenceSyncedMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
