package engine

import (
	"math"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// Projector converts between geographic coordinates and viewport pixels.
type Projector interface {
	ToScreen(p domain.Point, v domain.ViewState) domain.Pixel
	ToGeo(px domain.Pixel, v domain.ViewState) domain.Point
}

// ToolKind is the active toolbar tool.
type ToolKind int

const (
	ToolBrush ToolKind = iota
	ToolPixel
	ToolEraser
)

// Tool is the toolbar state consulted when a drag starts.
type Tool struct {
	DrawMode bool
	Kind     ToolKind
	Size     float64
	Color    string
}

// DefaultTool matches the toolbar defaults: brush, 5 px, red, draw mode off.
func DefaultTool() Tool {
	return Tool{Kind: ToolBrush, Size: 5, Color: "#ff0000"}
}

// Policy gates and filters pointer input.
type Policy struct {
	// MinDrawZoom is the lowest zoom at which a drag starts recording.
	MinDrawZoom float64
	// MinSampleDelta is the pixel distance a sample must move from the last
	// accepted one to be kept.
	MinSampleDelta float64
}

// Sink receives what the recorder produces.
type Sink interface {
	// CommitStroke is called on release with a stroke holding at least one point.
	CommitStroke(s domain.Stroke)
	// EraseAt is called for every accepted eraser sample.
	EraseAt(epicenter domain.Point, radius, zoom float64)
	// EraseDone is called when an eraser drag ends.
	EraseDone()
}

type recorderState int

const (
	stateIdle recorderState = iota
	stateRecording
	stateErasing
)

// Recorder turns pointer drags into strokes or erase ticks.
type Recorder struct {
	proj   Projector
	policy Policy
	sink   Sink
	tool   Tool

	state  recorderState
	stroke domain.Stroke
	last   domain.Pixel
}

// NewRecorder returns an idle recorder.
func NewRecorder(proj Projector, policy Policy, sink Sink) *Recorder {
	return &Recorder{proj: proj, policy: policy, sink: sink, tool: DefaultTool()}
}

// SetTool replaces the toolbar state. It takes effect on the next press.
func (r *Recorder) SetTool(t Tool) {
	r.tool = t
}

// Tool returns the current toolbar state.
func (r *Recorder) Tool() Tool {
	return r.tool
}

// Recording reports whether a drag is in progress.
func (r *Recorder) Recording() bool {
	return r.state != stateIdle
}

// Press starts a drag at px. It reports false, dropping the input, when draw
// mode is off, the zoom is below MinDrawZoom, the tool size is not a positive
// finite number, or a drag is already active.
func (r *Recorder) Press(px domain.Pixel, view domain.ViewState) bool {
	if r.state != stateIdle || !r.tool.DrawMode || view.Zoom < r.policy.MinDrawZoom {
		return false
	}
	if !(r.tool.Size > 0) || math.IsInf(r.tool.Size, 1) {
		return false
	}
	r.last = px
	geo := r.proj.ToGeo(px, view)

	if r.tool.Kind == ToolEraser {
		r.state = stateErasing
		r.sink.EraseAt(geo, r.tool.Size, view.Zoom)
		return true
	}

	mode := domain.ModeFreehand
	if r.tool.Kind == ToolPixel {
		mode = domain.ModePixel
	}
	r.state = stateRecording
	r.stroke = domain.Stroke{
		Color:  r.tool.Color,
		Size:   r.tool.Size,
		Mode:   mode,
		Points: []domain.Point{geo},
	}
	return true
}

// Move feeds one movement sample. Samples within MinSampleDelta of the last
// accepted one are ignored.
func (r *Recorder) Move(px domain.Pixel, view domain.ViewState) {
	if r.state == stateIdle {
		return
	}
	if math.Hypot(px.X-r.last.X, px.Y-r.last.Y) <= r.policy.MinSampleDelta {
		return
	}
	r.last = px
	geo := r.proj.ToGeo(px, view)

	if r.state == stateErasing {
		r.sink.EraseAt(geo, r.tool.Size, view.Zoom)
		return
	}
	r.stroke.Points = append(r.stroke.Points, geo)
}

// Release ends the drag and commits the stroke if it has any points.
func (r *Recorder) Release() {
	switch r.state {
	case stateRecording:
		s := r.stroke
		r.reset()
		if len(s.Points) > 0 {
			r.sink.CommitStroke(s)
		}
	case stateErasing:
		r.reset()
		r.sink.EraseDone()
	}
}

// Leave ends the drag when the pointer leaves the canvas. It is treated as a
// release so a drag that runs off the edge is not lost.
func (r *Recorder) Leave() {
	r.Release()
}

// Cancel abandons the drag without committing anything.
func (r *Recorder) Cancel() {
	r.reset()
}

func (r *Recorder) reset() {
	r.state = stateIdle
	r.stroke = domain.Stroke{}
	r.last = domain.Pixel{}
}
