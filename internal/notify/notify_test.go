package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/alertbell/internal/config"
	"github.com/rewired-gh/alertbell/internal/templates"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := &Console{Out: &buf}
	require.NoError(t, c.Notify(context.Background(), "Title", "A\nB"))
	assert.Equal(t, "Title\nA\nB\n", buf.String())
	assert.Equal(t, templates.FormatText, c.Format())
}

func TestNew(t *testing.T) {
	n, closeFn, err := New(config.NotifyConfig{Channel: "console"})
	require.NoError(t, err)
	assert.IsType(t, &Console{}, n)
	closeFn()

	n, _, err = New(config.NotifyConfig{Channel: "email", Email: config.EmailConfig{SMTPHost: "localhost"}})
	require.NoError(t, err)
	assert.Equal(t, templates.FormatHTML, n.Format())

	_, _, err = New(config.NotifyConfig{Channel: "telegram", Telegram: config.TelegramConfig{ChatID: "abc"}})
	assert.Error(t, err)

	_, _, err = New(config.NotifyConfig{Channel: "pigeon"})
	assert.Error(t, err)
}

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func TestEmail_Notify(t *testing.T) {
	var sent sentMail
	e := NewEmail(config.EmailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		Username: "bell",
		Password: "secret",
		From:     "bell@example.com",
		To:       "a@example.com, b@example.com",
	})
	e.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		return nil
	}

	require.NoError(t, e.Notify(context.Background(), "📈🚨📉 Crypto Price Fluctulert", "<pre>\nBTC\n</pre>"))
	assert.Equal(t, "smtp.example.com:587", sent.addr)
	assert.NotNil(t, sent.auth)
	assert.Equal(t, "bell@example.com", sent.from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sent.to)
	assert.Contains(t, sent.msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, sent.msg, "Subject: =?UTF-8?q?")
	assert.Contains(t, sent.msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	assert.True(t, strings.HasSuffix(sent.msg, "<pre>\r\nBTC\r\n</pre>"))
}

func TestEmail_DefaultsAndErrors(t *testing.T) {
	var to []string
	var auth smtp.Auth
	e := NewEmail(config.EmailConfig{SMTPHost: "localhost", SMTPPort: 25, From: "me@example.com"})
	e.sendMail = func(_ string, a smtp.Auth, _ string, rcpt []string, _ []byte) error {
		to, auth = rcpt, a
		return nil
	}
	require.NoError(t, e.Notify(context.Background(), "s", "b"))
	assert.Equal(t, []string{"me@example.com"}, to)
	assert.Nil(t, auth)

	boom := errors.New("relay denied")
	e.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	assert.ErrorIs(t, e.Notify(context.Background(), "s", "b"), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Notify(ctx, "s", "b"), context.Canceled)
}

type fakePublisher struct {
	subject  string
	data     []byte
	err      error
	deadline bool
}

func (p *fakePublisher) Publish(subj string, data []byte) error {
	p.subject, p.data = subj, data
	return p.err
}

func (p *fakePublisher) FlushWithContext(ctx context.Context) error {
	_, p.deadline = ctx.Deadline()
	return nil
}

func TestNATS_Notify(t *testing.T) {
	pub := &fakePublisher{}
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	n := &NATS{pub: pub, subject: "alertbell.alerts", now: func() time.Time { return at }}

	require.NoError(t, n.Notify(context.Background(), "Title", "Body"))
	assert.Equal(t, "alertbell.alerts", pub.subject)
	assert.True(t, pub.deadline)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.data, &msg))
	assert.Equal(t, "Title", msg.Subject)
	assert.Equal(t, "Body", msg.Body)
	assert.True(t, msg.SentAt.Equal(at))
	_, err := uuid.Parse(msg.ID)
	assert.NoError(t, err)

	pub.err = errors.New("no responders")
	assert.Error(t, n.Notify(context.Background(), "Title", "Body"))
	n.Close()
}
