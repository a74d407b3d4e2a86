package common

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender delivers a rendered email.
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// Email is a single outbound message.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail records messages instead of sending them.
type InMemoryEmail struct {
	mu     sync.Mutex
	outbox []Email
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, msg)
	return nil
}

// Outbox returns a copy of the recorded messages.
func (m *InMemoryEmail) Outbox() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.outbox...)
}

// LogEmailSender writes messages to the log. Used outside production.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// Send logs the message envelope.
func (s LogEmailSender) Send(_ context.Context, msg Email) error {
	s.Logger.Info().
		Str("from", msg.From).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("email_sent")
	return nil
}
