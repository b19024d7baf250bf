package identity

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"mime"
	"net"
	"net/smtp"
	"time"

	"github.com/askline-dev/askline/shared/config"
	"github.com/askline-dev/askline/shared/logger"
)

// SMTPEmailSender delivers mail through a real relay. Port 465 means
// implicit TLS; any other port upgrades a plain connection with STARTTLS.
type SMTPEmailSender struct {
	cfg  *config.Email
	auth smtp.Auth
}

var _ EmailSender = (*SMTPEmailSender)(nil)

func NewSMTPEmailSender(cfg *config.Email) *SMTPEmailSender {
	return &SMTPEmailSender{
		cfg:  cfg,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPServer),
	}
}

func (s *SMTPEmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	msg := s.buildMessage(recipient, subject, body)
	address := fmt.Sprintf("%s:%d", s.cfg.SMTPServer, s.cfg.SMTPPort)

	if s.cfg.SMTPPort == 465 {
		return s.sendImplicitTLS(ctx, address, recipient, msg)
	}
	return s.sendSTARTTLS(ctx, address, recipient, msg)
}

func (s *SMTPEmailSender) timeout() time.Duration {
	timeout := time.Duration(s.cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

// sendImplicitTLS talks to a relay whose connection is TLS from the start.
func (s *SMTPEmailSender) sendImplicitTLS(ctx context.Context, address, recipient string, msg []byte) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.timeout()},
		Config:    &tls.Config{ServerName: s.cfg.SMTPServer},
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		logger.Log.Error("failed to connect to SMTP relay (implicit TLS)", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	return s.sendViaClient(client, recipient, msg)
}

// sendSTARTTLS dials plain and upgrades the connection before sending.
func (s *SMTPEmailSender) sendSTARTTLS(ctx context.Context, address, recipient string, msg []byte) error {
	dialer := &net.Dialer{Timeout: s.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		logger.Log.Error("failed to connect to SMTP relay", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: s.cfg.SMTPServer}); err != nil {
		logger.Log.Error("failed to start TLS", "error", err)
		return err
	}

	return s.sendViaClient(client, recipient, msg)
}

func (s *SMTPEmailSender) sendViaClient(client *smtp.Client, recipient string, msg []byte) error {
	if err := client.Auth(s.auth); err != nil {
		logger.Log.Error("SMTP authentication failed", "error", err)
		return err
	}
	if err := client.Mail(s.cfg.Username); err != nil {
		logger.Log.Error("failed to set sender", "error", err)
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		logger.Log.Error("failed to set recipient", "recipient", recipient, "error", err)
		return err
	}

	w, err := client.Data()
	if err != nil {
		logger.Log.Error("failed to get data writer", "error", err)
		return err
	}
	if _, err = w.Write(msg); err != nil {
		logger.Log.Error("failed to write message", "error", err)
		return err
	}
	if err = w.Close(); err != nil {
		logger.Log.Error("failed to close data writer", "error", err)
		return err
	}
	return client.Quit()
}

func generateMessageID(domain string) string {
	t := time.Now().UnixNano()
	pid := rand.Int63()
	return fmt.Sprintf("<%d.%d@%s>", t, pid, domain)
}

func (s *SMTPEmailSender) buildMessage(recipient, subject, body string) []byte {
	encodedSubject := mime.QEncoding.Encode("utf-8", subject)
	encodedSenderName := mime.QEncoding.Encode("utf-8", s.cfg.SenderName)

	msgID := generateMessageID(s.cfg.SMTPServer)
	date := time.Now().Format(time.RFC1123Z)

	return fmt.Appendf(nil,
		"Message-ID: %s\r\n"+
			"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: %s <%s>\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s",
		msgID, date, recipient, encodedSenderName, s.cfg.Username, encodedSubject, body,
	)
}
