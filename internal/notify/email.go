package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/rewired-gh/alertbell/internal/config"
	"github.com/rewired-gh/alertbell/internal/templates"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends HTML mail through an SMTP relay.
type Email struct {
	cfg      config.EmailConfig
	sendMail sendMailFunc
}

func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{cfg: cfg, sendMail: smtp.SendMail}
}

func (e *Email) Format() string {
	return templates.FormatHTML
}

func (e *Email) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}

	to := e.recipients()
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	if err := e.sendMail(addr, auth, e.cfg.From, to, e.message(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// recipients splits the comma separated To field; it falls back to From.
func (e *Email) recipients() []string {
	var to []string
	for _, addr := range strings.Split(e.cfg.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		to = []string{e.cfg.From}
	}
	return to
}

func (e *Email) message(to []string, subject, body string) []byte {
	msg := fmt.Sprintf("From: %s\r\n", e.cfg.From)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(to, ", "))
	msg += fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	msg += "MIME-Version: 1.0\r\n"
	msg += "Content-Type: text/html; charset=UTF-8\r\n\r\n"
	msg += strings.ReplaceAll(body, "\n", "\r\n")
	return []byte(msg)
}
