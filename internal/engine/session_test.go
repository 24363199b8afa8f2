package engine_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/engine"
	"github.com/samirrijal/lplace/internal/pkg/geospatial"
)

var line = []domain.Pixel{{X: 100, Y: 100}, {X: 110, Y: 100}, {X: 120, Y: 100}}

func newUser(backend *memGateway, user string) *client {
	c := newClient(sharedGateway{memGateway: backend, user: user}, geospatial.Mercator{})
	c.start()
	c.session.SetTool(brush())
	return c
}

func link(from *client, to ...*client) {
	from.relay.targets = append(from.relay.targets, to...)
}

func TestSession_CommitAtZoom12(t *testing.T) {
	c := newUser(newMemGateway(""), "alice")
	c.drag(line...)

	rec, ok := c.session.Store().Record("alice")
	if !ok || len(rec.Strokes) != 1 {
		t.Fatalf("expected 1 stroke, got %+v", rec.Strokes)
	}
	if got := len(rec.Strokes[0].Points); got != 3 {
		t.Fatalf("expected 3 points, got %d", got)
	}
	if rec.Strokes[0].Owner != "alice" {
		t.Errorf("expected owner alice, got %q", rec.Strokes[0].Owner)
	}
	if len(c.relay.sent) != 1 || c.relay.sent[0].Type != domain.EventStrokeAdded {
		t.Errorf("expected one stroke-added broadcast, got %+v", c.relay.sent)
	}
}

func TestSession_NoStrokeAtZoom8(t *testing.T) {
	c := newUser(newMemGateway(""), "alice")
	c.session.ZoomTo(8)
	c.drag(line...)

	if n := c.session.Store().StrokeCount(); n != 0 {
		t.Fatalf("expected no strokes below minDrawZoom, got %d", n)
	}
	if len(c.relay.sent) != 0 {
		t.Error("nothing should be broadcast")
	}
}

func TestSession_RemoteStrokeRenderedWithinOneTick(t *testing.T) {
	backend := newMemGateway("")
	c1 := newUser(backend, "alice")
	c2 := newUser(backend, "bob")
	link(c1, c2)

	before := c2.session.Repaints()
	c1.drag(line...)

	if ran := c2.loop.RunPending(); ran != 1 {
		t.Fatalf("expected exactly one task delivered to client 2, got %d", ran)
	}
	rec, ok := c2.session.Store().Record("alice")
	if !ok || len(rec.Strokes) != 1 {
		t.Fatalf("client 2 did not merge alice's stroke: %+v", rec)
	}
	if c2.session.Repaints() != before+1 {
		t.Fatal("client 2 did not repaint")
	}
	if len(c2.surface.calls) != 1 || c2.surface.calls[0].kind != "path" {
		t.Fatalf("client 2 surface should show the new stroke, got %+v", c2.surface.calls)
	}
}

func TestSession_EraseRespectsOwnershipAcrossClients(t *testing.T) {
	backend := newMemGateway("")
	alice := newUser(backend, "alice")
	bob := newUser(backend, "bob")
	link(alice, bob)
	link(bob, alice)

	alice.drag(domain.Pixel{X: 400, Y: 300}, domain.Pixel{X: 420, Y: 300}, domain.Pixel{X: 440, Y: 300})
	bob.loop.RunPending()
	bob.drag(domain.Pixel{X: 400, Y: 300}, domain.Pixel{X: 440, Y: 300})
	alice.loop.RunPending()

	eraser := brush()
	eraser.Kind = engine.ToolEraser
	eraser.Size = 5
	alice.session.SetTool(eraser)
	alice.drag(domain.Pixel{X: 400, Y: 300})
	bob.loop.RunPending()

	for name, c := range map[string]*client{"alice": alice, "bob": bob} {
		a, _ := c.session.Store().Record("alice")
		b, _ := c.session.Store().Record("bob")
		if len(a.Strokes) != 1 || len(a.Strokes[0].Points) != 2 {
			t.Errorf("%s's copy: alice should have 2 points left, got %+v", name, a.Strokes)
		}
		if len(b.Strokes) != 1 || len(b.Strokes[0].Points) != 2 {
			t.Errorf("%s's copy: bob's stroke must be untouched, got %+v", name, b.Strokes)
		}
	}

	saved := backend.records["alice"]
	if saved.PointCount() != 2 {
		t.Errorf("expected erase end to save alice's record, saved %d points", saved.PointCount())
	}
}

func TestSession_CraftedEraseCannotTouchOthers(t *testing.T) {
	backend := newMemGateway("")
	bob := newUser(backend, "bob")
	bob.drag(domain.Pixel{X: 400, Y: 300}, domain.Pixel{X: 440, Y: 300})

	// An erase naming mallory at bob's location is applied to mallory's record only.
	bob.session.Apply(domain.Erase("mallory", at(400, 300), 500, 12))

	rec, _ := bob.session.Store().Record("bob")
	if rec.PointCount() != 2 {
		t.Fatalf("bob's points were removed by someone else's erase: %+v", rec)
	}
}

func TestSession_DuplicateDeliveryIsIdempotent(t *testing.T) {
	backend := newMemGateway("")
	c1 := newUser(backend, "alice")
	c2 := newUser(backend, "bob")
	link(c1, c2)
	c1.relay.dup = true

	c1.drag(line...)
	c2.loop.RunPending()

	if n := c2.session.Store().StrokeCount(); n != 1 {
		t.Fatalf("expected duplicate delivery to merge once, got %d strokes", n)
	}
}

func TestSession_DroppedEventRecoveredByReconcile(t *testing.T) {
	backend := newMemGateway("")
	c1 := newUser(backend, "alice")
	c2 := newUser(backend, "bob")
	link(c1, c2)
	c1.relay.drop = true

	c1.drag(line...)
	c2.loop.RunPending()
	if n := c2.session.Store().StrokeCount(); n != 0 {
		t.Fatalf("dropped event should leave client 2 diverged, got %d strokes", n)
	}

	c2.session.Reconcile()
	c2.loop.RunPending()

	if rec, _ := c2.session.Store().Record("alice"); len(rec.Strokes) != 1 {
		t.Fatalf("reconcile should pick up alice's saved stroke, got %+v", rec)
	}
}

func TestSession_CrossSenderReorderConverges(t *testing.T) {
	backend := newMemGateway("")
	alice := newUser(backend, "alice")
	bob := newUser(backend, "bob")

	alice.drag(line...)
	bob.drag(domain.Pixel{X: 300, Y: 300}, domain.Pixel{X: 330, Y: 300})
	eraser := brush()
	eraser.Kind = engine.ToolEraser
	alice.session.SetTool(eraser)
	alice.drag(domain.Pixel{X: 100, Y: 100})

	// Per-sender order is kept; the two senders are interleaved differently.
	orders := [][]domain.Event{
		append(append([]domain.Event{}, alice.relay.sent...), bob.relay.sent...),
		append(append([]domain.Event{}, bob.relay.sent...), alice.relay.sent...),
		{alice.relay.sent[0], bob.relay.sent[0], alice.relay.sent[1]},
	}

	var want domain.Snapshot
	for i, events := range orders {
		observer := newUser(newMemGateway(""), "carol")
		for _, ev := range events {
			observer.session.Apply(ev)
		}
		got := observer.session.Store().Snapshot()
		if i == 0 {
			want = got
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("order %d diverged:\n got %+v\nwant %+v", i, got, want)
		}
	}
	if want["alice"].PointCount() != 2 {
		t.Errorf("expected alice's erase to apply, got %+v", want["alice"])
	}
}

func TestSession_MalformedFramesDropped(t *testing.T) {
	c := newUser(newMemGateway(""), "alice")
	c.drag(line...)
	before := c.session.Store().Snapshot()

	c.session.ApplyFrame([]byte(`{"type":"stroke-added"`))
	c.session.ApplyFrame([]byte(`{"type":"erase","owner":"alice","epicenter":{"lat":43.2,"lon":-2.9},"radius":0}`))
	c.session.ApplyFrame([]byte(`{"type":"teleport","owner":"alice"}`))
	c.session.ApplyFrame([]byte(`{"type":"stroke-added","owner":"alice","stroke":{"points":[{"lat":123,"lon":0}],"size":2}}`))

	if c.session.Dropped() != 4 {
		t.Fatalf("expected 4 dropped frames, got %d", c.session.Dropped())
	}
	if !reflect.DeepEqual(before, c.session.Store().Snapshot()) {
		t.Fatal("malformed frames corrupted the store")
	}
}

func TestSession_PanZoomLeavesStoreUnchanged(t *testing.T) {
	c := newUser(newMemGateway(""), "alice")
	c.drag(line...)
	before := c.session.Store().Snapshot()
	firstFrame := c.surface.calls[0].points[0]

	c.session.Pan(50, -20)
	c.session.ZoomTo(14)

	if !reflect.DeepEqual(before, c.session.Store().Snapshot()) {
		t.Fatal("pan/zoom mutated the drawing store")
	}
	moved := c.surface.calls[0].points[0]
	if moved == firstFrame {
		t.Fatal("expected projected positions to change after pan/zoom")
	}
}

func TestSession_LocalOnlyWithoutIdentity(t *testing.T) {
	gw := newMemGateway("")
	c := newClient(gw, geospatial.Mercator{})
	c.start()
	c.session.SetTool(brush())
	c.drag(line...)

	if c.session.Identity() != "" {
		t.Fatalf("expected no identity, got %q", c.session.Identity())
	}
	if rec, _ := c.session.Store().Record(engine.AnonymousOwner); len(rec.Strokes) != 1 {
		t.Fatal("local editing should continue without identity")
	}
	if len(c.relay.sent) != 0 || gw.saves != 0 {
		t.Fatalf("anonymous edits must stay local: sent=%d saves=%d", len(c.relay.sent), gw.saves)
	}
}

func TestSession_SaveFailureSurfacesAndNextCommitRetries(t *testing.T) {
	gw := newMemGateway("alice")
	gw.saveErr = errors.New("disk full")
	c := newClient(gw, geospatial.Mercator{})
	c.start()
	c.session.SetTool(brush())

	c.drag(line...)
	if c.session.SaveFailures() != 1 {
		t.Fatalf("expected 1 failed save, got %d", c.session.SaveFailures())
	}

	gw.saveErr = nil
	c.drag(domain.Pixel{X: 300, Y: 300}, domain.Pixel{X: 320, Y: 300})
	if gw.saves != 2 {
		t.Fatalf("expected the next commit to save again, got %d saves", gw.saves)
	}
	if got := gw.records["alice"]; len(got.Strokes) != 2 {
		t.Fatalf("expected both strokes persisted, got %d", len(got.Strokes))
	}
}

func TestSession_PersistenceRoundTrip(t *testing.T) {
	backend := newMemGateway("")
	first := newUser(backend, "alice")
	first.drag(line...)
	tool := brush()
	tool.Kind = engine.ToolPixel
	first.session.SetTool(tool)
	first.drag(domain.Pixel{X: 200, Y: 200}, domain.Pixel{X: 210, Y: 200})
	want, _ := first.session.Store().Record("alice")

	first.session.Close()
	first.loop.RunPending()
	if first.session.Store().StrokeCount() != 0 {
		t.Fatal("close should discard the store")
	}

	second := newUser(backend, "alice")
	got, _ := second.session.Store().Record("alice")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSession_CommitDuringReconcileSurvives(t *testing.T) {
	backend := newMemGateway("")
	c := newUser(backend, "alice")

	// The refetch completes before the stroke is committed, but its result
	// is only applied afterwards.
	c.spawner.held = true
	c.session.Reconcile()
	c.spawner.flush()
	c.drag(line...)

	if rec, _ := c.session.Store().Record("alice"); len(rec.Strokes) != 1 {
		t.Fatalf("expected the committed stroke to survive the refetch, got %d", len(rec.Strokes))
	}
	if got := backend.records["alice"]; len(got.Strokes) != 1 {
		t.Fatalf("expected 1 stroke on the server, got %d", len(got.Strokes))
	}

	c.drag(domain.Pixel{X: 300, Y: 300}, domain.Pixel{X: 320, Y: 300})
	if got := backend.records["alice"]; len(got.Strokes) != 2 {
		t.Fatalf("user drew 2 strokes, server holds %d", len(got.Strokes))
	}
}

func TestSession_IdentityErrorKeepsUser(t *testing.T) {
	gw := newMemGateway("alice")
	c := newClient(gw, geospatial.Mercator{})
	c.start()
	c.session.SetTool(brush())
	c.drag(line...)

	gw.meErr = errors.New("connection reset")
	c.session.Reconcile()
	c.loop.RunPending()

	if got := c.session.Identity(); got != "alice" {
		t.Fatalf("expected identity to survive a failed lookup, got %q", got)
	}
	if rec, _ := c.session.Store().Record("alice"); len(rec.Strokes) != 1 {
		t.Fatalf("expected alice's stroke to be kept, got %d", len(rec.Strokes))
	}

	c.drag(domain.Pixel{X: 300, Y: 300}, domain.Pixel{X: 320, Y: 300})
	if gw.saves != 2 || len(c.relay.sent) != 2 {
		t.Fatalf("expected edits to keep saving and broadcasting: saves=%d sent=%d", gw.saves, len(c.relay.sent))
	}
	if rec, _ := c.session.Store().Record(engine.AnonymousOwner); len(rec.Strokes) != 0 {
		t.Fatal("nothing should fall back to the local owner")
	}
}

func TestSession_ExplicitLogoutDropsUser(t *testing.T) {
	gw := newMemGateway("alice")
	c := newClient(gw, geospatial.Mercator{})
	c.start()

	gw.user = ""
	c.session.Reconcile()
	c.loop.RunPending()

	if got := c.session.Identity(); got != "" {
		t.Fatalf("expected no identity after logout, got %q", got)
	}
}

func TestSession_ZeroSizeToolCommitsNothing(t *testing.T) {
	gw := newMemGateway("alice")
	c := newClient(gw, geospatial.Mercator{})
	c.start()
	tool := brush()
	tool.Size = 0
	c.session.SetTool(tool)

	c.drag(line...)
	if n := c.session.Store().StrokeCount(); n != 0 {
		t.Fatalf("expected no stroke from a zero-size tool, got %d", n)
	}
	if len(c.relay.sent) != 0 || gw.saves != 0 {
		t.Fatalf("nothing should leave the client: sent=%d saves=%d", len(c.relay.sent), gw.saves)
	}

	c.session.SetTool(brush())
	c.drag(line...)
	if got := gw.records["alice"]; len(got.Strokes) != 1 || c.session.SaveFailures() != 0 {
		t.Fatalf("expected the next valid stroke to save, got %d strokes and %d failures",
			len(got.Strokes), c.session.SaveFailures())
	}
}

func TestSession_OutOfRangeStrokeIsDiscarded(t *testing.T) {
	gw := newMemGateway("alice")
	c := newClient(gw, flatProjector{})
	c.start()
	c.session.SetTool(brush())
	view := bilbao
	view.Center = domain.Point{Lat: 89.95, Lon: 0}
	c.session.SetView(view)

	// y=0 is 0.3 degrees north of the centre, past the pole.
	c.drag(domain.Pixel{X: 100, Y: 0}, domain.Pixel{X: 110, Y: 0}, domain.Pixel{X: 120, Y: 0})
	if n := c.session.Store().StrokeCount(); n != 0 {
		t.Fatalf("expected the invalid stroke to be discarded, got %d", n)
	}
	if len(c.relay.sent) != 0 || gw.saves != 0 {
		t.Fatalf("an invalid stroke must not be sent: sent=%d saves=%d", len(c.relay.sent), gw.saves)
	}

	c.drag(domain.Pixel{X: 100, Y: 300}, domain.Pixel{X: 110, Y: 300})
	if got := gw.records["alice"]; len(got.Strokes) != 1 {
		t.Fatalf("expected the valid stroke to save, got %d", len(got.Strokes))
	}
}

func TestSession_OnRefreshFiresOncePerFetch(t *testing.T) {
	loop := engine.NewLoop(16)
	refreshes := 0
	s := engine.NewSession(engine.Options{
		Loop:      loop,
		Projector: geospatial.Mercator{},
		Surface:   &recordingSurface{},
		Gateway:   newMemGateway("alice"),
		View:      bilbao,
		Spawn:     syncSpawn,
		OnRefresh: func() { refreshes++ },
	})

	s.Start()
	if refreshes != 0 {
		t.Fatal("refresh must not fire before fetched state is applied")
	}
	loop.RunPending()
	if refreshes != 1 {
		t.Fatalf("expected 1 refresh after start, got %d", refreshes)
	}

	s.Apply(domain.StrokeAdded("bob", stroke("bob", domain.Point{Lat: 43.26, Lon: -2.93})))
	if refreshes != 1 {
		t.Fatal("remote events must not count as a refresh")
	}

	s.Reconcile()
	loop.RunPending()
	if refreshes != 2 {
		t.Fatalf("expected 2 refreshes after reconcile, got %d", refreshes)
	}
}
