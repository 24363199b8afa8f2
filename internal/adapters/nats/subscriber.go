package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber on core NATS.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeEvents delivers every canvas event to handler. Undecodable
// messages are dropped.
func (s *Subscriber) SubscribeEvents(ctx context.Context, handler func(ctx context.Context, origin string, ev domain.Event)) error {
	sub, err := s.conn.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		origin, ev, err := decodeEnvelope(msg.Data)
		if err != nil {
			slog.Debug("dropping canvas message", "subject", msg.Subject, "error", err)
			return
		}
		handler(ctx, origin, ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectPrefix+">", err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes. The connection belongs to its creator.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}

func decodeEnvelope(data []byte) (string, domain.Event, error) {
	var env struct {
		Origin string          `json:"origin"`
		Event  json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", domain.Event{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	ev, err := domain.DecodeEvent(env.Event)
	if err != nil {
		return "", domain.Event{}, err
	}
	return env.Origin, ev, nil
}
