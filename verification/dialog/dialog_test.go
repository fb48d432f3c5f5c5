package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"throttle_platform/verification/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type promptRecorder struct {
	mu     sync.Mutex
	nextId int
	posted []chat.Message
	fail   bool
}

func (r *promptRecorder) PostMessage(ctx context.Context, channelId string, msg chat.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return "", chat.ErrMessageDeliveryFailed
	}
	r.nextId++
	r.posted = append(r.posted, msg)
	return fmt.Sprintf("prompt-%d", r.nextId), nil
}

func (r *promptRecorder) lastId() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("prompt-%d", r.nextId)
}

func (r *promptRecorder) EditMessage(ctx context.Context, channelId, messageId string, msg chat.Message) error {
	return nil
}

func (r *promptRecorder) SendDirect(ctx context.Context, userId string, msg chat.Message) error {
	return nil
}

func (r *promptRecorder) AddRole(ctx context.Context, guildId, userId, roleId string) error {
	return nil
}

func (r *promptRecorder) RemoveRole(ctx context.Context, guildId, userId, roleId string) error {
	return nil
}

func ask(t *testing.T, m *Manager) (chan Outcome, string) {
	t.Helper()

	recorder := m.messenger.(*promptRecorder)
	before := recorder.nextId

	results := make(chan Outcome, 1)
	go func() {
		outcome, err := m.Ask(context.Background(), "channel-1", "user-1", chat.Message{Title: "Confirm?"})
		require.NoError(t, err)
		results <- outcome
	}()

	// Wait for the prompt to be posted so the caller has its message id.
	deadline := time.Now().Add(2 * time.Second)
	for {
		recorder.mu.Lock()
		posted := recorder.nextId > before
		recorder.mu.Unlock()
		if posted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("prompt never posted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return results, recorder.lastId()
}

func TestAskAffirmed(t *testing.T) {
	recorder := &promptRecorder{}
	m := NewManager(recorder, time.Second)

	results, messageId := ask(t, m)

	assert.True(t, m.Resolve(messageId, "user-1", true))
	assert.Equal(t, Affirmed, <-results)
	assert.Equal(t, 0, m.Pending())
}

func TestAskDeclined(t *testing.T) {
	recorder := &promptRecorder{}
	m := NewManager(recorder, time.Second)

	results, messageId := ask(t, m)

	assert.True(t, m.Resolve(messageId, "user-1", false))
	assert.Equal(t, Declined, <-results)
}

func TestAskTimesOut(t *testing.T) {
	recorder := &promptRecorder{}
	m := NewManager(recorder, 50*time.Millisecond)

	results, _ := ask(t, m)

	assert.Equal(t, TimedOut, <-results)
	assert.Equal(t, 0, m.Pending())
}

func TestAskIgnoresOtherUsers(t *testing.T) {
	recorder := &promptRecorder{}
	m := NewManager(recorder, 100*time.Millisecond)

	results, messageId := ask(t, m)

	assert.False(t, m.Resolve(messageId, "user-2", true))
	assert.Equal(t, TimedOut, <-results)
}

func TestResolveIsExactlyOnce(t *testing.T) {
	recorder := &promptRecorder{}
	m := NewManager(recorder, time.Second)

	results, messageId := ask(t, m)

	assert.True(t, m.Resolve(messageId, "user-1", true))
	assert.False(t, m.Resolve(messageId, "user-1", false))
	assert.Equal(t, Affirmed, <-results)
}

func TestResolveUnknownPrompt(t *testing.T) {
	m := NewManager(&promptRecorder{}, time.Second)

	assert.False(t, m.Resolve("prompt-404", "user-1", true))
}

func TestAskReturnsPostError(t *testing.T) {
	recorder := &promptRecorder{fail: true}
	m := NewManager(recorder, time.Second)

	_, err := m.Ask(context.Background(), "channel-1", "user-1", chat.Message{})
	assert.True(t, errors.Is(err, chat.ErrMessageDeliveryFailed))
	assert.Equal(t, 0, m.Pending())
}

func TestAskRespectsContextCancellation(t *testing.T) {
	recorder := &promptRecorder{}
	m := NewManager(recorder, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan error, 1)
	go func() {
		_, err := m.Ask(ctx, "channel-1", "user-1", chat.Message{})
		results <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-results, context.Canceled)
	assert.Equal(t, 0, m.Pending())
}

func TestPromptCarriesBothControls(t *testing.T) {
	recorder := &promptRecorder{}
	m := NewManager(recorder, 50*time.Millisecond)

	results, _ := ask(t, m)
	<-results

	require.Len(t, recorder.posted, 1)
	buttons := recorder.posted[0].Buttons
	require.Len(t, buttons, 2)
	assert.Equal(t, AffirmControl, buttons[0].CustomId)
	assert.Equal(t, DeclineControl, buttons[1].CustomId)
}
