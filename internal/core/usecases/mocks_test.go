package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// --- Mock DrawingRepository ---

type mockDrawingRepo struct {
	saveFn    func(ctx context.Context, owner string, rec domain.DrawingRecord) error
	loadFn    func(ctx context.Context, owner string) (domain.DrawingRecord, error)
	loadAllFn func(ctx context.Context) (domain.Snapshot, error)
	loads     int
	loadAlls  int
}

func (m *mockDrawingRepo) Save(ctx context.Context, owner string, rec domain.DrawingRecord) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, owner, rec)
	}
	return nil
}

func (m *mockDrawingRepo) Load(ctx context.Context, owner string) (domain.DrawingRecord, error) {
	m.loads++
	if m.loadFn != nil {
		return m.loadFn(ctx, owner)
	}
	return domain.DrawingRecord{}, domain.ErrNotFound
}

func (m *mockDrawingRepo) LoadAll(ctx context.Context) (domain.Snapshot, error) {
	m.loadAlls++
	if m.loadAllFn != nil {
		return m.loadAllFn(ctx)
	}
	return domain.Snapshot{}, nil
}

// --- Mock CacheService: in-memory map ---

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// --- Mock LocalFanout ---

type sentFrame struct {
	except string
	frame  []byte
}

type mockFanout struct {
	frames []sentFrame
}

func (m *mockFanout) Broadcast(except string, frame []byte) int {
	m.frames = append(m.frames, sentFrame{except: except, frame: frame})
	return 1
}

// --- Mock EventPublisher / EventSubscriber ---

type published struct {
	origin string
	event  domain.Event
}

type mockBus struct {
	publishFn func(ctx context.Context, origin string, ev domain.Event) error
	sent      []published
	handler   func(ctx context.Context, origin string, ev domain.Event)
}

func (m *mockBus) PublishEvent(ctx context.Context, origin string, ev domain.Event) error {
	m.sent = append(m.sent, published{origin: origin, event: ev})
	if m.publishFn != nil {
		return m.publishFn(ctx, origin, ev)
	}
	return nil
}

func (m *mockBus) SubscribeEvents(ctx context.Context, handler func(ctx context.Context, origin string, ev domain.Event)) error {
	m.handler = handler
	return nil
}
