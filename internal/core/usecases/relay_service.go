package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/core/ports"
	"github.com/samirrijal/lplace/internal/pkg/metrics"
)

// RelayService forwards sync events between clients. It is the single trust
// boundary of the Sync Channel: a client may only speak for itself.
type RelayService struct {
	instance  string
	local     ports.LocalFanout
	publisher ports.EventPublisher
}

// NewRelayService creates a relay for one server instance. publisher may be
// nil when the instance runs alone.
func NewRelayService(instance string, local ports.LocalFanout, publisher ports.EventPublisher) *RelayService {
	return &RelayService{instance: instance, local: local, publisher: publisher}
}

// Instance returns the id this relay publishes under.
func (s *RelayService) Instance() string {
	return s.instance
}

// Accept handles a frame received on connection connID from sender. The
// event is relayed to every other local connection and to the other
// instances. Frames from anonymous connections or naming another owner are
// rejected.
func (s *RelayService) Accept(ctx context.Context, connID, sender string, frame []byte) (domain.Event, error) {
	if sender == "" {
		metrics.SyncEventsDropped.WithLabelValues("anonymous").Inc()
		return domain.Event{}, domain.ErrUnauthorized
	}
	ev, err := domain.DecodeEvent(frame)
	if err != nil {
		metrics.SyncEventsDropped.WithLabelValues("malformed").Inc()
		return domain.Event{}, err
	}
	if ev.Owner != sender {
		metrics.SyncEventsDropped.WithLabelValues("owner_mismatch").Inc()
		return domain.Event{}, fmt.Errorf("event for %q from %q: %w", ev.Owner, sender, domain.ErrOwnerMismatch)
	}
	if ev.Stroke != nil && ev.Stroke.Owner != "" && ev.Stroke.Owner != sender {
		metrics.SyncEventsDropped.WithLabelValues("owner_mismatch").Inc()
		return domain.Event{}, fmt.Errorf("stroke for %q from %q: %w", ev.Stroke.Owner, sender, domain.ErrOwnerMismatch)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return domain.Event{}, fmt.Errorf("encode event: %w", err)
	}
	s.local.Broadcast(connID, data)
	metrics.SyncEventsRelayed.WithLabelValues(string(ev.Type), "local").Inc()

	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, s.instance, ev); err != nil {
			slog.Warn("sync fan-out publish failed", "owner", ev.Owner, "type", ev.Type, "error", err)
		}
	}
	return ev, nil
}

// Inbound delivers an event published by another instance to the local
// connections. Events this instance published itself are ignored.
func (s *RelayService) Inbound(ctx context.Context, origin string, ev domain.Event) {
	if origin == s.instance {
		return
	}
	if err := ev.Validate(); err != nil {
		metrics.SyncEventsDropped.WithLabelValues("malformed").Inc()
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.local.Broadcast("", data)
	metrics.SyncEventsRelayed.WithLabelValues(string(ev.Type), "remote").Inc()
}

// Listen subscribes Inbound to the events of other instances.
func (s *RelayService) Listen(ctx context.Context, sub ports.EventSubscriber) error {
	if err := sub.SubscribeEvents(ctx, s.Inbound); err != nil {
		return fmt.Errorf("subscribe sync events: %w", err)
	}
	return nil
}
