package mail

import (
	"context"
	"testing"
)

func TestOutboxLast(t *testing.T) {
	var o Outbox
	ctx := context.Background()
	_ = o.Send(ctx, Message{To: "a@b.com", Link: "1"})
	_ = o.Send(ctx, Message{To: "c@d.com", Link: "2"})
	_ = o.Send(ctx, Message{To: "a@b.com", Link: "3"})

	m, ok := o.Last("a@b.com")
	if !ok || m.Link != "3" {
		t.Fatalf("Last = %+v, %v", m, ok)
	}
	if _, ok := o.Last("x@y.com"); ok {
		t.Fatal("unexpected message for unknown address")
	}
	if len(o.Messages()) != 3 {
		t.Fatalf("messages = %d", len(o.Messages()))
	}
}

func TestMultiSendsToAll(t *testing.T) {
	var a, b Outbox
	if err := (Multi{&a, &b, LogMailer{}}).Send(context.Background(), Message{To: "a@b.com"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(a.Messages()) != 1 || len(b.Messages()) != 1 {
		t.Fatal("every mailer should receive the message")
	}
}

func TestSMTPRejectsHeaderInjection(t *testing.T) {
	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: "465"})
	if err != nil {
		t.Fatalf("NewSMTPMailer failed: %v", err)
	}
	if err := m.Send(context.Background(), Message{To: "a@b.com\r\nBcc: x@y.com"}); err == nil {
		t.Fatal("expected header injection to be rejected")
	}
}
