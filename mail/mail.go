// Package mail sends the account emails: verification links and password
// recovery links.
package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Kind names the purpose of a message.
type Kind string

const (
	KindVerification Kind = "verification"
	KindRecovery     Kind = "recovery"
)

// Message is one outgoing email.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	HTML    string
	Link    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them. Meant for
// local development.
type LogMailer struct {
	Logger *zap.Logger
}

func (l LogMailer) Send(_ context.Context, m Message) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("outgoing email",
		zap.String("kind", string(m.Kind)),
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("link", m.Link),
	)
	return nil
}

// Outbox keeps messages in memory. Used by tests and the dev server.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
}

func (o *Outbox) Send(_ context.Context, m Message) error {
	o.mu.Lock()
	o.msgs = append(o.msgs, m)
	o.mu.Unlock()
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.msgs...)
}

// Last returns the most recent message to addr.
func (o *Outbox) Last(addr string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To == addr {
			return o.msgs[i], true
		}
	}
	return Message{}, false
}

// Multi sends every message to each mailer in turn and stops at the first
// error.
type Multi []Mailer

func (mm Multi) Send(ctx context.Context, m Message) error {
	for _, mailer := range mm {
		if err := mailer.Send(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
