package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// OutboundEmail is one email handed to a Dispatcher.
type OutboundEmail struct {
	To       string
	From     string
	FromName string
	Subject  string
	Body     string
}

// Dispatcher sends an email and returns the provider delivery id, which may
// be empty. Errors must reach the caller.
type Dispatcher interface {
	Send(ctx context.Context, email OutboundEmail) (string, error)
}

// SMTPConfig configures SMTPDispatcher.
type SMTPConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	MaxRetries      int
	MessageIDDomain string
}

type messageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher relays mail through one SMTP server with gomail. It sets its
// own Message-ID header and returns it as the delivery id.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	dialer messageSender
	// backoff returns the wait before the given attempt (2-based).
	backoff func(attempt int) time.Duration
}

func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MessageIDDomain == "" {
		cfg.MessageIDDomain = cfg.Host
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}

	return &SMTPDispatcher{
		cfg:    cfg,
		dialer: dialer,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

func (d *SMTPDispatcher) Send(ctx context.Context, email OutboundEmail) (string, error) {
	if err := ValidateEmailFormat(email.To); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), d.cfg.MessageIDDomain)
	m := buildMessage(email, messageID)

	var lastError error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("send cancelled after %d attempts: %w", attempt-1, lastError)
			case <-time.After(d.backoff(attempt)):
			}
		}

		err := d.dialer.DialAndSend(m)
		if err == nil {
			return messageID, nil
		}

		lastError = err
		if !isTemporarySMTPError(err) {
			break
		}
	}

	return "", fmt.Errorf("send failed: %w", lastError)
}

func buildMessage(email OutboundEmail, messageID string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("Message-ID", messageID)
	m.SetAddressHeader("From", email.From, email.FromName)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetHeader("X-Mailer", "OffertPilot/1.0")
	m.SetBody("text/plain", email.Body)
	m.AddAlternative("text/html", textToHTML(email.Body))
	return m
}

func textToHTML(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

func isTemporarySMTPError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	tempErrors := []string{
		"try again",
		"temporary",
		"421",
		"450",
		"451",
		"452",
	}
	for _, tempErr := range tempErrors {
		if strings.Contains(errStr, tempErr) {
			return true
		}
	}
	return false
}
