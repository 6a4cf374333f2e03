// Package mail sends transactional email. Production uses SMTP; the console
// sender serves development and the capturing sender serves tests.
package mail

import (
	"context"
	"log"
	"sync"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Console logs messages instead of delivering them.
type Console struct{}

func (Console) Send(_ context.Context, msg Message) error {
	log.Printf("mail to=%s subject=%q\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

// Capture records messages for assertions in tests.
type Capture struct {
	mu   sync.Mutex
	sent []Message
}

func (c *Capture) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *Capture) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}
