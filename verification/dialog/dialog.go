// Package dialog implements the bounded yes/no consent prompt used by the
// submission flow and other interactive commands. Each prompt is a posted
// message with affirm/decline controls and a single registered waiter; only
// the original requester can resolve it, and the waiter is removed under lock
// exactly once so a race between a click and the timeout has one winner.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"throttle_platform/utils/logging"
	"throttle_platform/verification/chat"
)

type Outcome int

const (
	Affirmed Outcome = iota
	Declined
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Affirmed:
		return "affirmed"
	case Declined:
		return "declined"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("unknown outcome %d", int(o))
	}
}

const (
	AffirmControl  = "consent:affirm"
	DeclineControl = "consent:decline"

	DefaultTimeout = 60 * time.Second
)

type waiter struct {
	userId string
	result chan bool
}

type Manager struct {
	messenger chat.Messenger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]*waiter
}

func NewManager(messenger chat.Messenger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		messenger: messenger,
		timeout:   timeout,
		pending:   make(map[string]*waiter),
	}
}

// Ask posts the prompt to the given channel and blocks until the requesting
// user presses a control, the timeout elapses, or ctx is cancelled. The
// Outcome is meaningful only when the returned error is nil.
func (m *Manager) Ask(ctx context.Context, channelId, userId string, prompt chat.Message) (Outcome, error) {
	prompt.Buttons = []chat.Button{
		{CustomId: AffirmControl, Label: "Yes", Style: chat.ButtonStyleSuccess},
		{CustomId: DeclineControl, Label: "No", Style: chat.ButtonStyleDanger},
	}

	messageId, err := m.messenger.PostMessage(ctx, channelId, prompt)
	if err != nil {
		return TimedOut, fmt.Errorf("error posting consent prompt: %w", err)
	}

	w := &waiter{userId: userId, result: make(chan bool, 1)}

	m.mu.Lock()
	m.pending[messageId] = w
	m.mu.Unlock()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case affirm := <-w.result:
		if affirm {
			return Affirmed, nil
		}
		return Declined, nil
	case <-timer.C:
		if m.remove(messageId) {
			return TimedOut, nil
		}
		// A click won the race against the timer; its answer is already
		// buffered on the result channel.
		if affirm := <-w.result; affirm {
			return Affirmed, nil
		}
		return Declined, nil
	case <-ctx.Done():
		m.remove(messageId)
		return TimedOut, ctx.Err()
	}
}

// Resolve delivers a control press to the waiter for the given prompt
// message. Interactions from anyone but the original requester, or on a
// prompt that is no longer pending, are ignored and return false.
func (m *Manager) Resolve(messageId, userId string, affirm bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.pending[messageId]
	if !ok || w.userId != userId {
		return false
	}

	delete(m.pending, messageId)
	w.result <- affirm
	return true
}

// remove unregisters the waiter and reports whether it was still pending.
func (m *Manager) remove(messageId string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[messageId]; !ok {
		slog.Info("consent prompt resolved concurrently with timeout", "message_id", messageId, "code", logging.APP_CONSENT)
		return false
	}
	delete(m.pending, messageId)
	return true
}

// Pending reports the number of unresolved prompts, for observability.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
