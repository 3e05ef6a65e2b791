// Package notify hands outbound messages to a delivery system. Rendering and
// transport to the end user happen downstream of the Sender.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	TemplateBrandRestock             = "brand_restock"
	TemplateSubscriptionConfirmation = "subscription_confirmation"
)

type Message struct {
	ID        string         `json:"id"`
	Channel   Channel        `json:"channel"`
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Sender enqueues one message. A nil error means the message was accepted,
// not that it reached the recipient.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Pick chooses the contact channel for a subscriber: email when known,
// otherwise sms. ok is false when neither is set.
func Pick(email, phone *string) (ch Channel, recipient string, ok bool) {
	if email != nil && *email != "" {
		return ChannelEmail, *email, true
	}
	if phone != nil && *phone != "" {
		return ChannelSMS, *phone, true
	}
	return "", "", false
}

// LogSender writes messages to the log. It stands in for a queue in local
// runs.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(l *zap.Logger) *LogSender {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogSender{log: l}
}

func (s *LogSender) Send(_ context.Context, m Message) error {
	s.log.Info("notification",
		zap.String("id", m.ID),
		zap.String("channel", string(m.Channel)),
		zap.String("recipient", m.Recipient),
		zap.String("template", m.Template),
		zap.Any("data", m.Data),
	)
	return nil
}

// Memory keeps every accepted message. Fail, when set, rejects matching
// recipients.
type Memory struct {
	mu   sync.Mutex
	msgs []Message
	Fail func(m Message) error
}

func (s *Memory) Send(_ context.Context, m Message) error {
	if s.Fail != nil {
		if err := s.Fail(m); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
	return nil
}

func (s *Memory) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}
