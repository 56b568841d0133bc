package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/CUknot/realty_crm/config"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []*gomail.Message
	fail    bool
	started chan struct{}
	release chan struct{}
}

func (r *recordingSender) DialAndSend(msgs ...*gomail.Message) error {
	if r.started != nil {
		r.started <- struct{}{}
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("smtp unavailable")
	}
	r.sent = append(r.sent, msgs...)
	return nil
}

func TestMailerDeliversQueuedMail(t *testing.T) {
	sender := &recordingSender{}
	m := NewMailer(sender, "noreply@realty.test", 10)

	require.NoError(t, m.Send("alice@example.com", "New claim", "Someone claimed your referral."))
	require.NoError(t, m.Send("bob@example.com", "Claim accepted", "Your claim was accepted."))
	m.Close()

	require.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"alice@example.com"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@realty.test"}, sender.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"Claim accepted"}, sender.sent[1].GetHeader("Subject"))
}

func TestMailerFailuresDoNotStopWorker(t *testing.T) {
	sender := &recordingSender{fail: true}
	m := NewMailer(sender, "noreply@realty.test", 10)

	require.NoError(t, m.Send("alice@example.com", "a", "b"))
	require.NoError(t, m.Send("bob@example.com", "c", "d"))
	m.Close()

	assert.Empty(t, sender.sent)
}

func TestMailerQueueFull(t *testing.T) {
	sender := &recordingSender{started: make(chan struct{}), release: make(chan struct{})}
	m := NewMailer(sender, "noreply@realty.test", 1)

	require.NoError(t, m.Send("a@example.com", "1", "x"))
	<-sender.started // worker holds the first message
	require.NoError(t, m.Send("b@example.com", "2", "x"))
	assert.ErrorIs(t, m.Send("c@example.com", "3", "x"), ErrQueueFull)

	go func() {
		for range sender.started {
		}
	}()
	close(sender.release)
	m.Close()
	close(sender.started)

	assert.Len(t, sender.sent, 2)
}

func TestMailerDisabledWithoutHost(t *testing.T) {
	m := New(config.Config{})
	assert.NoError(t, m.Send("alice@example.com", "subject", "body"))
	m.Close()
}
