package engine_test

import (
	"context"
	"image/color"
	"sync"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/engine"
)

var bilbao = domain.ViewState{
	Center: domain.Point{Lat: 43.263, Lon: -2.935},
	Zoom:   12,
	Width:  800,
	Height: 600,
}

// --- Mock Projector: 1 px == 0.001 degrees, independent of zoom ---

type flatProjector struct{}

func (flatProjector) ToScreen(p domain.Point, v domain.ViewState) domain.Pixel {
	return domain.Pixel{
		X: (p.Lon-v.Center.Lon)*1000 + float64(v.Width)/2,
		Y: (v.Center.Lat-p.Lat)*1000 + float64(v.Height)/2,
	}
}

func (flatProjector) ToGeo(px domain.Pixel, v domain.ViewState) domain.Point {
	return domain.Point{
		Lat: v.Center.Lat - (px.Y-float64(v.Height)/2)/1000,
		Lon: v.Center.Lon + (px.X-float64(v.Width)/2)/1000,
	}
}

// --- Mock Surface: records calls ---

type call struct {
	kind   string
	points []domain.Pixel
	color  color.NRGBA
	size   float64
}

type recordingSurface struct {
	clears int
	calls  []call
}

func (s *recordingSurface) Clear(width, height int) {
	s.clears++
	s.calls = nil
}

func (s *recordingSurface) Path(points []domain.Pixel, c color.NRGBA, width float64) {
	s.calls = append(s.calls, call{kind: "path", points: append([]domain.Pixel(nil), points...), color: c, size: width})
}

func (s *recordingSurface) Marks(points []domain.Pixel, c color.NRGBA, footprint float64) {
	s.calls = append(s.calls, call{kind: "marks", points: append([]domain.Pixel(nil), points...), color: c, size: footprint})
}

// --- Mock Gateway: in-memory persistence keyed by the session user ---

type memGateway struct {
	mu      sync.Mutex
	user    string
	meErr   error
	saveErr error
	records map[string]domain.DrawingRecord
	saves   int
}

func newMemGateway(user string) *memGateway {
	return &memGateway{user: user, records: make(map[string]domain.DrawingRecord)}
}

func (g *memGateway) Me(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.user, g.meErr
}

func (g *memGateway) Load(ctx context.Context) (domain.DrawingRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.user == "" {
		return domain.DrawingRecord{}, domain.ErrUnauthorized
	}
	rec, ok := g.records[g.user]
	if !ok {
		return domain.EmptyRecord(), nil
	}
	return rec.Clone(), nil
}

func (g *memGateway) Save(ctx context.Context, rec domain.DrawingRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.user == "" {
		return domain.ErrUnauthorized
	}
	if g.saveErr != nil {
		return g.saveErr
	}
	g.records[g.user] = rec.Clone()
	return nil
}

func (g *memGateway) All(ctx context.Context) (domain.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(domain.Snapshot, len(g.records))
	for k, v := range g.records {
		out[k] = v.Clone()
	}
	return out, nil
}

// sharedGateway gives several users a view of one backing map.
type sharedGateway struct {
	*memGateway
	user string
}

func (g sharedGateway) Me(ctx context.Context) (string, error) { return g.user, nil }

func (g sharedGateway) Load(ctx context.Context) (domain.DrawingRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[g.user]
	if !ok {
		return domain.EmptyRecord(), nil
	}
	return rec.Clone(), nil
}

func (g sharedGateway) Save(ctx context.Context, rec domain.DrawingRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	g.records[g.user] = rec.Clone()
	return nil
}

// --- Mock Broadcaster: a relay that can drop, duplicate and hold events ---

type relay struct {
	sent    []domain.Event
	targets []*client
	drop    bool
	dup     bool
}

func (r *relay) Send(ev domain.Event) error {
	r.sent = append(r.sent, ev)
	if r.drop {
		return nil
	}
	n := 1
	if r.dup {
		n = 2
	}
	for _, t := range r.targets {
		for i := 0; i < n; i++ {
			t := t
			ev := ev
			t.loop.Post(func() { t.session.Apply(ev) })
		}
	}
	return nil
}

type client struct {
	loop    *engine.Loop
	session *engine.Session
	surface *recordingSurface
	relay   *relay
	spawner *spawner
}

func syncSpawn(fn func()) { fn() }

// spawner runs network work inline unless held, in which case it queues it
// until flush.
type spawner struct {
	held  bool
	queue []func()
}

func (s *spawner) spawn(fn func()) {
	if s.held {
		s.queue = append(s.queue, fn)
		return
	}
	fn()
}

func (s *spawner) flush() {
	s.held = false
	for len(s.queue) > 0 {
		fn := s.queue[0]
		s.queue = s.queue[1:]
		fn()
	}
}

func newClient(gw engine.Gateway, proj engine.Projector) *client {
	c := &client{loop: engine.NewLoop(64), surface: &recordingSurface{}, relay: &relay{}, spawner: &spawner{}}
	c.session = engine.NewSession(engine.Options{
		Loop:      c.loop,
		Projector: proj,
		Surface:   c.surface,
		Gateway:   gw,
		Sync:      c.relay,
		Policy:    engine.Policy{MinDrawZoom: 10, MinSampleDelta: 1},
		View:      bilbao,
		Spawn:     c.spawner.spawn,
	})
	return c
}

// start runs Start and the callbacks it posts.
func (c *client) start() {
	c.session.Start()
	c.loop.RunPending()
}

func (c *client) drag(pixels ...domain.Pixel) {
	if !c.session.PointerDown(pixels[0]) {
		return
	}
	for _, p := range pixels[1:] {
		c.session.PointerMove(p)
	}
	c.session.PointerUp()
	c.loop.RunPending()
}

func brush() engine.Tool {
	return engine.Tool{DrawMode: true, Kind: engine.ToolBrush, Size: 5, Color: "#ff0000"}
}

func stroke(owner string, pts ...domain.Point) domain.Stroke {
	return domain.Stroke{Owner: owner, Color: "#00ff00", Size: 3, Mode: domain.ModeFreehand, Points: pts}
}
