// Package notify delivers rendered alert batches.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rewired-gh/alertbell/internal/config"
	"github.com/rewired-gh/alertbell/internal/telegram"
	"github.com/rewired-gh/alertbell/internal/templates"
)

// Notifier sends one batch of alerts.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
	// Format is the template format the notifier expects bodies in.
	Format() string
}

// Console writes batches to an io.Writer, stdout by default.
type Console struct {
	Out io.Writer
}

func (c *Console) Notify(_ context.Context, subject, body string) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintf(out, "%s\n%s\n", subject, body)
	return err
}

func (c *Console) Format() string {
	return templates.FormatText
}

// New builds the notifier selected by cfg.Channel. The returned close
// function releases any connection the notifier holds.
func New(cfg config.NotifyConfig) (Notifier, func(), error) {
	switch cfg.Channel {
	case "console", "":
		return &Console{}, func() {}, nil
	case "email":
		return NewEmail(cfg.Email), func() {}, nil
	case "telegram":
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case "nats":
		n, err := NewNATS(cfg.NATS)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify channel %q", cfg.Channel)
	}
}
