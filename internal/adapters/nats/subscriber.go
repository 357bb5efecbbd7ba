package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber whose durable consumers are named
// after consumer, so restarts resume where they left off.
func NewSubscriber(url, consumer string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js, durable: consumer}, nil
}

// SubscribeIssueEvents delivers events of one type to handler. A handler
// error or an undecodable message is negatively acknowledged and retried
// up to three times.
func (s *Subscriber) SubscribeIssueEvents(ctx context.Context, eventType domain.IssueEventType, handler func(ctx context.Context, event *domain.IssueEvent) error) error {
	durable := s.durable + "-" + strings.ReplaceAll(strings.TrimPrefix(string(eventType), "issue."), ".", "-")
	sub, err := s.js.Subscribe(Subject(eventType), func(msg *nats.Msg) {
		event, err := DecodeEvent(msg.Data)
		if err != nil {
			slog.Warn("drop undecodable issue event", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			slog.Warn("issue event handler failed", "type", event.Type, "issue_id", event.IssueID, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
