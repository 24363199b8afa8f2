package ports

import (
	"context"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// EventPublisher fans sync events out to other relay instances.
type EventPublisher interface {
	PublishEvent(ctx context.Context, origin string, event domain.Event) error
}

// EventSubscriber receives sync events published by any relay instance.
// origin identifies the publishing instance.
type EventSubscriber interface {
	SubscribeEvents(ctx context.Context, handler func(ctx context.Context, origin string, event domain.Event)) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// SessionStore resolves an externally issued session token to a user id.
// An unknown token yields domain.ErrUnauthorized.
type SessionStore interface {
	Lookup(ctx context.Context, token string) (string, error)
}

// LocalFanout delivers an encoded sync frame to the connections attached to
// this relay instance, skipping the connection whose id is except.
type LocalFanout interface {
	Broadcast(except string, frame []byte) int
}
