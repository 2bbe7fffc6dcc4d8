package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/snaptranslate/auth-service/internal/autherr"
)

// Notifier delivers one-time codes to users. Failures surface as
// autherr.ErrNotifier; the caller decides whether that is fatal for
// the request.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, username, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", autherr.ErrNotifier, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: %w", autherr.ErrNotifier, err)
	}
	return nil
}
