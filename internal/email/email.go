package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Message is one outbound email. CC never repeats an address from To.
type Message struct {
	To      []string
	CC      []string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipients = errors.New("email: no recipients")

// Options selects and configures a provider.
type Options struct {
	Provider string // sendgrid | ses | log

	FromEmail string
	FromName  string

	SendGridAPIKey string
}

func NewSender(ctx context.Context, o Options, log logrus.FieldLogger) (Sender, error) {
	switch o.Provider {
	case "sendgrid":
		return NewSendGridSender(o.SendGridAPIKey, o.FromEmail, o.FromName)
	case "ses":
		return NewSESSender(ctx, o.FromEmail)
	case "log", "":
		return &LogSender{Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", o.Provider)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	s.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"cc":      msg.CC,
		"subject": msg.Subject,
	}).Info("email: not delivered (log provider)")
	return nil
}
