// Package mailer sends exported reports by email.
package mailer

import (
	"context"
	"log"
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To          string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Mailer delivers a message and returns the provider's message id when
// one is available.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Noop logs instead of sending. Used when no mail provider is configured
// so report emailing degrades to a visible no-op.
type Noop struct{}

func (Noop) Send(_ context.Context, msg Message) (string, error) {
	log.Printf("[mailer] noop: dropping mail to=%s subject=%s attachments=%d", msg.To, msg.Subject, len(msg.Attachments))
	return "", nil
}
