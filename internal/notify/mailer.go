package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer is the subset of gomail.Dialer the mailer needs.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers messages over SMTP.
type Mailer struct {
	from     string
	dialer   dialer
	renderer *Renderer
	logger   *logrus.Logger
}

func NewMailer(cfg SMTPConfig, renderer *Renderer, logger *logrus.Logger) *Mailer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Mailer{
		from:     cfg.From,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		renderer: renderer,
		logger:   logger,
	}
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	subject, body, err := m.renderer.Render(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", subject)
	gm.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(gm); err != nil {
		m.logger.WithField("kind", msg.Kind).Warnf("smtp delivery failed: %v", err)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	m.logger.WithField("kind", msg.Kind).Debug("notification sent")
	return nil
}

// LogNotifier writes the link to the log instead of sending mail. It is
// used when no SMTP host is configured.
type LogNotifier struct {
	renderer *Renderer
	logger   *logrus.Logger
}

func NewLogNotifier(renderer *Renderer, logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{renderer: renderer, logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	link, err := n.renderer.Link(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	n.logger.WithFields(logrus.Fields{
		"kind": msg.Kind,
		"to":   msg.To,
	}).Infof("notification link: %s", link)
	return nil
}
