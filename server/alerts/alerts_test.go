package alerts

import (
	"errors"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	attempts  int
	failFirst int // fail this many attempts before succeeding
	err       error
	lastTo    string
	lastBody  string
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.attempts++
	f.lastTo = to
	f.lastBody = body
	if f.attempts <= f.failFirst {
		return f.err
	}
	return nil
}

func newTestNotifier(t *testing.T, sender Sender) *Notifier {
	n := NewNotifier(logs.NewTestingLog(t), sender)
	n.retryDelay = 0
	return n
}

func TestNotifySuccess(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(t, sender)
	n.NotifyEmptyDetection("alice@example.com", "static")
	require.Equal(t, 1, sender.attempts)
	require.Equal(t, "alice@example.com", sender.lastTo)
	require.Contains(t, sender.lastBody, "static")
}

func TestNotifySkipsBlankEmail(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(t, sender)
	n.NotifyEmptyDetection("", "static")
	require.Equal(t, 0, sender.attempts)
}

func TestNotifyRetriesTransportErrors(t *testing.T) {
	// Fails twice, succeeds on the third
	sender := &fakeSender{failFirst: 2, err: errors.New("421 service not available")}
	n := newTestNotifier(t, sender)
	n.NotifyEmptyDetection("alice@example.com", "video")
	require.Equal(t, 3, sender.attempts)

	// Gives up after the retry budget
	sender = &fakeSender{failFirst: 10, err: errors.New("connection reset")}
	n = newTestNotifier(t, sender)
	n.NotifyEmptyDetection("alice@example.com", "video")
	require.Equal(t, 3, sender.attempts)
}

func TestNotifyNoRetryOnAuthError(t *testing.T) {
	sender := &fakeSender{failFirst: 10, err: errors.New("535 5.7.8 Authentication credentials invalid")}
	n := newTestNotifier(t, sender)
	n.NotifyEmptyDetection("alice@example.com", "live")
	require.Equal(t, 1, sender.attempts)
}

func TestNotifyNoSenderConfigured(t *testing.T) {
	n := newTestNotifier(t, nil)
	// Must not panic
	n.NotifyEmptyDetection("alice@example.com", "static")
}
