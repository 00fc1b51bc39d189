// Package worker serializes turns per conversation. Each conversation gets
// its own lane goroutine with a small buffered queue, so two requests for
// the same conversation never interleave while independent conversations
// proceed concurrently. Idle lanes shut themselves down.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"legaldocgo/internal/models"
)

const (
	defaultQueueLen    = 16
	defaultIdleTimeout = 30 * time.Second
)

// ErrBusy reports a conversation whose turn queue is full.
var ErrBusy = errors.New("conversation busy")

// ErrStopped reports a lane that was purged while a turn was still queued.
var ErrStopped = errors.New("conversation worker stopped")

// TurnFunc runs one complete user turn, emitting events as it goes.
type TurnFunc func(ctx context.Context, conversationID, userText string, emit func(models.Event) error) error

// TurnRequest carries one queued turn.
type TurnRequest struct {
	Context        context.Context
	ConversationID string
	UserText       string
	Emit           func(models.Event) error
}

type turnTask struct {
	req      TurnRequest
	resultCh chan error
}

type lane struct {
	taskCh chan turnTask
	stopCh chan struct{}
}

// Manager owns the lanes. The zero value is not usable; construct with
// NewManager.
type Manager struct {
	run         TurnFunc
	queueLen    int
	idleTimeout time.Duration

	mu    sync.Mutex
	lanes map[string]*lane
}

func NewManager(run TurnFunc, queueLen int, idleTimeout time.Duration) *Manager {
	if queueLen <= 0 {
		queueLen = defaultQueueLen
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Manager{
		run:         run,
		queueLen:    queueLen,
		idleTimeout: idleTimeout,
		lanes:       make(map[string]*lane),
	}
}

// Submit queues one turn and blocks until it has run to completion. The
// per-conversation queue keeps turns for the same id strictly ordered.
func (m *Manager) Submit(req TurnRequest) error {
	resultCh, err := m.enqueue(req)
	if err != nil {
		return err
	}
	return <-resultCh
}

func (m *Manager) enqueue(req TurnRequest) (chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ln, ok := m.lanes[req.ConversationID]
	if !ok {
		ln = &lane{
			taskCh: make(chan turnTask, m.queueLen),
			stopCh: make(chan struct{}),
		}
		m.lanes[req.ConversationID] = ln
		go m.runLane(req.ConversationID, ln)
	}

	resultCh := make(chan error, 1)
	select {
	case ln.taskCh <- turnTask{req: req, resultCh: resultCh}:
		return resultCh, nil
	default:
		return nil, ErrBusy
	}
}

// Purge stops the lane for a deleted conversation. Queued turns fail with
// ErrStopped; the turn currently running finishes on its own.
func (m *Manager) Purge(conversationID string) {
	m.mu.Lock()
	ln, ok := m.lanes[conversationID]
	if ok {
		delete(m.lanes, conversationID)
		close(ln.stopCh)
	}
	m.mu.Unlock()
}

// Lanes reports how many conversations currently have a live lane.
func (m *Manager) Lanes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}

func (m *Manager) runLane(conversationID string, ln *lane) {
	idle := time.NewTimer(m.idleTimeout)
	defer idle.Stop()

	for {
		// Stop wins over queued work so a purged conversation never runs
		// another turn.
		select {
		case <-ln.stopCh:
			debugLog("lane %s stopped", conversationID)
			drainLane(ln)
			return
		default:
		}

		select {
		case <-ln.stopCh:
			debugLog("lane %s stopped", conversationID)
			drainLane(ln)
			return
		case task := <-ln.taskCh:
			ctx := task.req.Context
			if ctx == nil {
				ctx = context.Background()
			}
			task.resultCh <- m.run(ctx, task.req.ConversationID, task.req.UserText, task.req.Emit)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(m.idleTimeout)
		case <-idle.C:
			// enqueue holds m.mu, so once the lane is removed under the
			// same lock no new task can land on taskCh.
			m.mu.Lock()
			if len(ln.taskCh) > 0 {
				m.mu.Unlock()
				idle.Reset(m.idleTimeout)
				continue
			}
			if m.lanes[conversationID] == ln {
				delete(m.lanes, conversationID)
			}
			m.mu.Unlock()
			debugLog("lane %s idle, shut down", conversationID)
			return
		}
	}
}

func drainLane(ln *lane) {
	for {
		select {
		case task := <-ln.taskCh:
			task.resultCh <- ErrStopped
		default:
			return
		}
	}
}
