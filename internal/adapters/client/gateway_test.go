package client_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/samirrijal/lplace/internal/adapters/client"
	handler "github.com/samirrijal/lplace/internal/adapters/http"
	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/core/usecases"
	"github.com/samirrijal/lplace/internal/pkg/config"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]domain.DrawingRecord
	saveErr error
}

func (m *memRepo) Save(ctx context.Context, owner string, rec domain.DrawingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[owner] = rec
	return nil
}

func (m *memRepo) Load(ctx context.Context, owner string) (domain.DrawingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[owner]
	if !ok {
		return domain.DrawingRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *memRepo) LoadAll(ctx context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(domain.Snapshot, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

// startServer serves the canvas routes on an in-memory listener and
// returns gateways bound to it.
func startServer(t *testing.T, repo *memRepo) func(user string) *client.Gateway {
	t.Helper()
	hub := handler.NewHub(8)
	deps := &handler.Dependencies{
		Drawings: usecases.NewDrawingService(repo, nil, 0),
		Relay:    usecases.NewRelayService("test", hub, nil),
		Hub:      hub,
		Identity: handler.HeaderResolver{Header: "X-Auth-User"},
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	auth := config.AuthConfig{Mode: "header", Header: "X-Auth-User"}
	return func(user string) *client.Gateway {
		gw := client.NewGateway("http://canvas.test/", client.CredentialsFrom(auth, user), 2*time.Second)
		gw.HTTP.Dial = func(addr string) (net.Conn, error) { return ln.Dial() }
		return gw
	}
}

func TestGateway_RoundTrip(t *testing.T) {
	repo := &memRepo{records: map[string]domain.DrawingRecord{}}
	gateway := startServer(t, repo)
	alice := gateway("alice")
	ctx := context.Background()

	user, err := alice.Me(ctx)
	if err != nil || user != "alice" {
		t.Fatalf("Me() = %q, %v", user, err)
	}

	rec, err := alice.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rec.Strokes) != 0 {
		t.Fatalf("expected empty record, got %+v", rec)
	}

	stroke := domain.Stroke{
		Points: []domain.Point{{Lat: 43.26, Lon: -2.93}, {Lat: 43.27, Lon: -2.92}},
		Color:  "#00ff00",
		Size:   4,
		Mode:   domain.ModeFreehand,
	}
	if err := alice.Save(ctx, domain.DrawingRecord{Strokes: []domain.Stroke{stroke}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err := gateway("").All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	got := snap["alice"]
	if len(got.Strokes) != 1 || got.Strokes[0].Owner != "alice" || got.Strokes[0].Color != "#00ff00" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestGateway_Anonymous(t *testing.T) {
	gateway := startServer(t, &memRepo{records: map[string]domain.DrawingRecord{}})
	anon := gateway("")
	ctx := context.Background()

	user, err := anon.Me(ctx)
	if err != nil || user != "" {
		t.Errorf("Me() = %q, %v; expected no identity", user, err)
	}
	if _, err := anon.Load(ctx); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Load: expected ErrUnauthorized, got %v", err)
	}
	if err := anon.Save(ctx, domain.EmptyRecord()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Save: expected ErrUnauthorized, got %v", err)
	}
}

func TestGateway_SaveErrors(t *testing.T) {
	repo := &memRepo{records: map[string]domain.DrawingRecord{}}
	gateway := startServer(t, repo)
	alice := gateway("alice")
	ctx := context.Background()

	foreign := domain.DrawingRecord{Strokes: []domain.Stroke{{Owner: "bob", Size: 1, Mode: domain.ModePixel}}}
	if err := alice.Save(ctx, foreign); !errors.Is(err, domain.ErrOwnerMismatch) {
		t.Errorf("expected ErrOwnerMismatch, got %v", err)
	}

	invalid := domain.DrawingRecord{Strokes: []domain.Stroke{{Size: 0, Mode: domain.ModePixel}}}
	if err := alice.Save(ctx, invalid); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}

	repo.mu.Lock()
	repo.saveErr = errors.New("disk full")
	repo.mu.Unlock()
	err := alice.Save(ctx, domain.EmptyRecord())
	if err == nil || errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected a storage error, got %v", err)
	}
}

func TestGateway_CanceledContext(t *testing.T) {
	gateway := startServer(t, &memRepo{records: map[string]domain.DrawingRecord{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gateway("alice").All(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCredentials(t *testing.T) {
	session := client.CredentialsFrom(config.AuthConfig{Mode: "session", CookieName: "connect.sid"}, "s%3Aabc.sig")
	if got := session.HTTPHeader().Get("Cookie"); got != "connect.sid=s%3Aabc.sig" {
		t.Errorf("unexpected cookie header %q", got)
	}

	header := client.CredentialsFrom(config.AuthConfig{Mode: "header", Header: "X-Auth-User"}, "alice")
	if got := header.HTTPHeader().Get("X-Auth-User"); got != "alice" {
		t.Errorf("unexpected identity header %q", got)
	}

	if h := client.CredentialsFrom(config.AuthConfig{Mode: "session"}, "").HTTPHeader(); len(h) != 0 {
		t.Errorf("expected no headers without credentials, got %v", h)
	}
}

func TestSyncURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000":   "ws://localhost:3000/ws",
		"https://canvas.example/": "wss://canvas.example/ws",
	}
	for in, want := range cases {
		if got := client.SyncURL(in); got != want {
			t.Errorf("SyncURL(%q) = %q, want %q", in, got, want)
		}
	}
}
