package identity

import (
	"context"

	"github.com/askline-dev/askline/shared/logger"
)

// LogSMSSender writes codes to the log instead of a carrier gateway.
// Used in development and tests.
type LogSMSSender struct{}

var _ SMSSender = LogSMSSender{}

func (LogSMSSender) Send(ctx context.Context, phoneNumber, body string) error {
	logger.Log.Info("sms (log sender)", "to", phoneNumber, "body", body)
	return nil
}

// LogEmailSender writes mail to the log; the default when no SMTP relay
// is configured.
type LogEmailSender struct{}

var _ EmailSender = LogEmailSender{}

func (LogEmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	logger.Log.Info("email (log sender)", "to", recipient, "subject", subject)
	return nil
}
