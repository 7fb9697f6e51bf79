package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/rewired-gh/alertbell/internal/config"
	"github.com/rewired-gh/alertbell/internal/logger"
	"github.com/rewired-gh/alertbell/internal/templates"
)

// Message is the JSON payload published for every batch.
type Message struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATS publishes batches to a subject.
type NATS struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	now     func() time.Time
}

// NewNATS connects to cfg.URL.
func NewNATS(cfg config.NATSConfig) (*NATS, error) {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1 // Infinite retries
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	opts := []nats.Option{
		nats.Name("alertbell"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Connected to NATS at %s", nc.ConnectedUrl())

	return &NATS{conn: nc, pub: nc, subject: cfg.Subject, now: time.Now}, nil
}

func (n *NATS) Format() string {
	return templates.FormatText
}

func (n *NATS) Notify(ctx context.Context, subject, body string) error {
	payload, err := json.Marshal(Message{
		ID:      uuid.NewString(),
		Subject: subject,
		Body:    body,
		SentAt:  n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := n.pub.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.subject, err)
	}
	// FlushWithContext rejects contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	if err := n.pub.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (n *NATS) Close() {
	if n.conn != nil && !n.conn.IsClosed() {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
		}
	}
}
