package utils

import (
	"context"
	"errors"
	"mime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	errs     []error
	attempts int
	last     *gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.attempts++
	f.last = m[0]
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func newTestDispatcher(sender *fakeSender) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:     SMTPConfig{MaxRetries: 3, MessageIDDomain: "mail.offertpilot.se"},
		dialer:  sender,
		backoff: func(int) time.Duration { return 0 },
	}
}

var testEmail = OutboundEmail{
	To:       "anna@kund.se",
	From:     "hej@stadbolaget.se",
	FromName: "Städbolaget",
	Subject:  "Om flyttstädning",
	Body:     "Hej Anna,\n\nMvh",
}

func TestSMTPDispatcherSend(t *testing.T) {
	sender := &fakeSender{}
	id, err := newTestDispatcher(sender).Send(context.Background(), testEmail)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@mail.offertpilot.se>"))
	assert.Equal(t, 1, sender.attempts)
	assert.Equal(t, []string{id}, sender.last.GetHeader("Message-ID"))
	assert.Equal(t, []string{"anna@kund.se"}, sender.last.GetHeader("To"))

	subject := sender.last.GetHeader("Subject")
	require.Len(t, subject, 1)
	assert.NotEqual(t, "Om flyttstädning", subject[0], "non-ASCII subject is header encoded")
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject[0])
	require.NoError(t, err)
	assert.Equal(t, "Om flyttstädning", decoded)
}

func TestSMTPDispatcherRetriesTemporaryErrors(t *testing.T) {
	sender := &fakeSender{errs: []error{
		errors.New("421 service not available, try again"),
		errors.New("451 temporary local problem"),
	}}
	_, err := newTestDispatcher(sender).Send(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, 3, sender.attempts)
}

func TestSMTPDispatcherGivesUp(t *testing.T) {
	tests := []struct {
		name     string
		errs     []error
		attempts int
	}{
		{
			name:     "permanent error is not retried",
			errs:     []error{errors.New("550 mailbox unavailable")},
			attempts: 1,
		},
		{
			name: "temporary errors exhaust retries",
			errs: []error{
				errors.New("421 try again"),
				errors.New("421 try again"),
				errors.New("421 try again"),
			},
			attempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{errs: tt.errs}
			id, err := newTestDispatcher(sender).Send(context.Background(), testEmail)
			require.Error(t, err)
			assert.Empty(t, id)
			assert.ErrorIs(t, err, tt.errs[len(tt.errs)-1])
			assert.Equal(t, tt.attempts, sender.attempts)
		})
	}
}

func TestSMTPDispatcherRejectsInvalidRecipient(t *testing.T) {
	sender := &fakeSender{}
	email := testEmail
	email.To = "not-an-address"

	_, err := newTestDispatcher(sender).Send(context.Background(), email)
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Zero(t, sender.attempts)
}

func TestSMTPDispatcherStopsOnCancel(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("421 try again")}}
	d := newTestDispatcher(sender)
	d.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Send(ctx, testEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send cancelled after 1 attempts")
	assert.Equal(t, 1, sender.attempts)
}

func TestTextToHTML(t *testing.T) {
	assert.Equal(t, "Hej &lt;Anna&gt;<br><br>Mvh", textToHTML("Hej <Anna>\n\nMvh"))
}
