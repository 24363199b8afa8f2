package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// AnonymousOwner owns strokes drawn before, or without, a session identity.
// Such strokes stay local: they are neither saved nor broadcast.
const AnonymousOwner = "~local"

// Gateway is the Persistence Gateway as seen from a client.
type Gateway interface {
	// Me returns the session identity, or "" when there is none.
	Me(ctx context.Context) (string, error)
	Load(ctx context.Context) (domain.DrawingRecord, error)
	Save(ctx context.Context, rec domain.DrawingRecord) error
	All(ctx context.Context) (domain.Snapshot, error)
}

// Broadcaster emits local edits on the Sync Channel. Send must not block: it
// queues the event and preserves the order of successive calls.
type Broadcaster interface {
	Send(ev domain.Event) error
}

// Options configure a Session. Loop, Projector, Surface and Gateway are
// required.
type Options struct {
	Loop      *Loop
	Projector Projector
	Surface   Surface
	Gateway   Gateway
	Sync      Broadcaster
	Policy    Policy
	View      domain.ViewState
	Logger    *slog.Logger

	// Spawn runs detached network work. Defaults to a new goroutine.
	Spawn func(func())
	// Timeout bounds each gateway call. Defaults to 10s.
	Timeout time.Duration
	// OnRepaint runs on the loop after every repaint.
	OnRepaint func()
	// OnRefresh runs on the loop once fetched state from Start or
	// Reconcile has been applied.
	OnRefresh func()
}

// Session is one client's view-model: the drawing store, the recorder and
// the current viewport. Every method must be called on the session's Loop.
type Session struct {
	opts     Options
	loop     *Loop
	store    *Store
	recorder *Recorder
	renderer *Renderer
	view     domain.ViewState
	log      *slog.Logger

	user         string
	edits        int // bumped on every local change to the own record
	closed       bool
	erased       bool
	repaints     int
	dropped      int
	saveFailures int
}

// NewSession builds a session with an empty store. Call Start to populate it.
func NewSession(opts Options) *Session {
	if opts.Spawn == nil {
		opts.Spawn = func(fn func()) { go fn() }
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		opts:     opts,
		loop:     opts.Loop,
		store:    NewStore(),
		renderer: NewRenderer(opts.Projector),
		view:     opts.View,
		log:      opts.Logger.With("component", "session"),
	}
	s.recorder = NewRecorder(opts.Projector, opts.Policy, sessionSink{s})
	return s
}

// Start fetches the identity, the shared snapshot and the user's own record,
// then repaints. It returns immediately.
func (s *Session) Start() {
	s.refresh()
	s.repaint()
}

// Reconcile refetches everything after a Sync Channel reconnect. No event
// log exists, so a full reload is the only way to catch up.
func (s *Session) Reconcile() {
	s.refresh()
}

func (s *Session) refresh() {
	gw := s.opts.Gateway
	prev, gen := s.user, s.edits
	s.spawn(func(ctx context.Context) {
		user, meErr := gw.Me(ctx)
		if meErr != nil {
			// A failed lookup is not a logout.
			user = prev
		}
		var own domain.DrawingRecord
		var ownErr error
		if user != "" {
			own, ownErr = gw.Load(ctx)
		}
		all, allErr := gw.All(ctx)

		s.loop.Post(func() {
			if s.closed {
				return
			}
			switch {
			case meErr != nil && prev != "":
				s.log.Warn("identity lookup failed, keeping identity", "user", prev, "error", meErr)
			case meErr != nil:
				s.log.Warn("identity lookup failed, editing locally", "error", meErr)
			case user == "":
				s.log.Info("no session identity, editing locally")
			}

			// Local edits made while the fetch was in flight win over
			// whatever it returned.
			edited := user != "" && user == s.user && s.edits != gen
			mine, _ := s.store.Record(user)

			s.user = user
			if allErr != nil {
				s.log.Warn("snapshot fetch failed", "error", allErr)
			} else {
				local, _ := s.store.Record(AnonymousOwner)
				s.store.ReplaceAll(all)
				if len(local.Strokes) > 0 {
					s.store.Replace(AnonymousOwner, local)
				}
			}
			if user != "" {
				switch {
				case edited:
					s.store.Replace(user, mine)
				case ownErr != nil:
					s.log.Warn("own record load failed", "user", user, "error", ownErr)
				default:
					s.store.Replace(user, own)
				}
			}
			s.repaint()
			if edited {
				s.save()
			}
			if s.opts.OnRefresh != nil {
				s.opts.OnRefresh()
			}
		})
	})
}

// Identity returns the session user, or "" when editing locally.
func (s *Session) Identity() string {
	return s.user
}

// Store exposes the drawing store for read access.
func (s *Session) Store() *Store {
	return s.store
}

// View returns the current viewport.
func (s *Session) View() domain.ViewState {
	return s.view
}

// SetTool replaces the toolbar state.
func (s *Session) SetTool(t Tool) {
	s.recorder.SetTool(t)
}

// SetView moves the viewport and repaints. The store is not touched.
func (s *Session) SetView(v domain.ViewState) {
	s.view = v
	s.repaint()
}

// Pan moves the viewport by (dx, dy) screen pixels.
func (s *Session) Pan(dx, dy float64) {
	v := s.view
	v.Center = s.opts.Projector.ToGeo(domain.Pixel{
		X: float64(v.Width)/2 + dx,
		Y: float64(v.Height)/2 + dy,
	}, v)
	s.SetView(v)
}

// ZoomTo changes the zoom level around the current centre.
func (s *Session) ZoomTo(zoom float64) {
	v := s.view
	v.Zoom = zoom
	s.SetView(v)
}

// PointerDown, PointerMove, PointerUp and PointerLeave feed pointer input.
func (s *Session) PointerDown(px domain.Pixel) bool {
	if s.closed {
		return false
	}
	return s.recorder.Press(px, s.view)
}

func (s *Session) PointerMove(px domain.Pixel) {
	s.recorder.Move(px, s.view)
}

func (s *Session) PointerUp() {
	s.recorder.Release()
}

func (s *Session) PointerLeave() {
	s.recorder.Leave()
}

// Apply merges a remote Sync Channel event. Malformed events are dropped.
func (s *Session) Apply(ev domain.Event) {
	if s.closed {
		return
	}
	if err := ev.Validate(); err != nil {
		s.dropped++
		s.log.Debug("dropping remote event", "error", err)
		return
	}

	switch ev.Type {
	case domain.EventStrokeAdded:
		if s.store.Append(ev.Owner, *ev.Stroke) {
			s.repaint()
		}
	case domain.EventErase:
		zoom := s.view.Zoom
		if ev.Zoom != nil {
			zoom = *ev.Zoom
		}
		if s.store.Erase(ev.Owner, *ev.Epicenter, ev.Radius, zoom) > 0 {
			s.repaint()
		}
	}
}

// ApplyFrame decodes a raw wire frame and merges it.
func (s *Session) ApplyFrame(data []byte) {
	ev, err := domain.DecodeEvent(data)
	if err != nil {
		if s.closed {
			return
		}
		s.dropped++
		s.log.Debug("dropping remote frame", "error", err)
		return
	}
	s.Apply(ev)
}

// Close saves the user's record one last time and discards the store.
// The save is not awaited and may be lost.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.recorder.Cancel()
	s.save()
	s.closed = true
	s.store.Reset()
	s.opts.Surface.Clear(s.view.Width, s.view.Height)
}

// Repaints, Dropped and SaveFailures are counters for diagnostics and tests.
func (s *Session) Repaints() int     { return s.repaints }
func (s *Session) Dropped() int      { return s.dropped }
func (s *Session) SaveFailures() int { return s.saveFailures }

func (s *Session) owner() string {
	if s.user == "" {
		return AnonymousOwner
	}
	return s.user
}

func (s *Session) repaint() {
	if s.closed {
		return
	}
	s.renderer.Render(s.opts.Surface, s.store, s.view)
	s.repaints++
	if s.opts.OnRepaint != nil {
		s.opts.OnRepaint()
	}
}

func (s *Session) broadcast(ev domain.Event) {
	if s.user == "" || s.opts.Sync == nil {
		return
	}
	if err := s.opts.Sync.Send(ev); err != nil {
		s.log.Debug("broadcast dropped", "type", ev.Type, "error", err)
	}
}

func (s *Session) save() {
	if s.user == "" {
		return
	}
	user := s.user
	rec, _ := s.store.Record(user)
	gw := s.opts.Gateway
	s.spawn(func(ctx context.Context) {
		err := gw.Save(ctx, rec)
		s.loop.Post(func() {
			if err == nil {
				return
			}
			s.saveFailures++
			if errors.Is(err, domain.ErrUnauthorized) {
				s.log.Warn("save rejected, session expired", "user", user)
				return
			}
			s.log.Warn("save failed", "user", user, "strokes", len(rec.Strokes), "error", err)
		})
	})
}

func (s *Session) spawn(fn func(ctx context.Context)) {
	timeout := s.opts.Timeout
	s.opts.Spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(ctx)
	})
}

// sessionSink keeps the recorder callbacks off the Session's public API.
type sessionSink struct{ s *Session }

func (k sessionSink) CommitStroke(stroke domain.Stroke) {
	s := k.s
	owner := s.owner()
	stroke.Owner = owner
	stroke = stroke.Normalized()
	if err := stroke.Validate(); err != nil {
		s.log.Warn("discarding invalid stroke", "error", err)
		return
	}
	if !s.store.Append(owner, stroke) {
		return
	}
	s.edits++
	s.repaint()
	s.broadcast(domain.StrokeAdded(owner, stroke))
	s.save()
}

func (k sessionSink) EraseAt(epicenter domain.Point, radius, zoom float64) {
	s := k.s
	owner := s.owner()
	if s.store.Erase(owner, epicenter, radius, zoom) > 0 {
		s.edits++
		s.erased = true
		s.repaint()
	}
	s.broadcast(domain.Erase(owner, epicenter, radius, zoom))
}

func (k sessionSink) EraseDone() {
	s := k.s
	if s.erased {
		s.erased = false
		s.save()
	}
}
