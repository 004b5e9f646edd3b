// Package mail implements the outbound email pipeline: an unbounded queue,
// a single batching consumer with retry and back-off, and an SMTP sender.
package mail

import (
	"context"

	"github.com/google/uuid"
)

// Message is one outbound email. Once enqueued it is owned exclusively by
// the worker; callers must not mutate it afterwards.
type Message struct {
	ID      string
	From    string
	To      string
	Subject string

	// Body is the plain-text content. When empty and Template is set, the
	// sender renders the template with TemplateVars instead.
	Body         string
	Template     string
	TemplateVars map[string]any

	// Attachments are file paths, attached in order.
	Attachments []string
}

func NewMessage(from, to, subject, body string) *Message {
	return &Message{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Subject: subject,
		Body:    body,
	}
}

// Sender performs one delivery attempt. Retries are the worker's job.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}
