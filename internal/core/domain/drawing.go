package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Mode selects how a stroke is painted.
type Mode string

const (
	ModeFreehand Mode = "freehand"
	ModePixel    Mode = "pixel"
)

// UnmarshalJSON accepts "brush" as an alias of freehand and defaults an
// empty mode to freehand.
func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "", "freehand", "brush":
		*m = ModeFreehand
	case "pixel":
		*m = ModePixel
	default:
		return fmt.Errorf("unknown stroke mode %q", s)
	}
	return nil
}

// MinPoints is the number of points below which a stroke of this mode is
// no longer drawable.
func (m Mode) MinPoints() int {
	if m == ModePixel {
		return 1
	}
	return 2
}

// Stroke is one continuous drag by one owner.
type Stroke struct {
	ID     string  `json:"id,omitempty"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
	Owner  string  `json:"owner"`
	Mode   Mode    `json:"mode"`
}

// Clone returns a deep copy of the stroke.
func (s Stroke) Clone() Stroke {
	out := s
	out.Points = append([]Point(nil), s.Points...)
	return out
}

// Normalized fills the defaults a stroke may arrive without: an id and the
// freehand mode.
func (s Stroke) Normalized() Stroke {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Mode == "" {
		s.Mode = ModeFreehand
	}
	return s
}

// Validate checks the stroke is well formed: a positive finite size and
// in-range points.
func (s Stroke) Validate() error {
	if !(s.Size > 0) || math.IsInf(s.Size, 1) {
		return fmt.Errorf("%w: stroke size must be positive, got %v", ErrInvalidRecord, s.Size)
	}
	for i, p := range s.Points {
		if !p.Valid() {
			return fmt.Errorf("%w: point %d out of range (%v, %v)", ErrInvalidRecord, i, p.Lat, p.Lon)
		}
	}
	return nil
}

// DrawingRecord holds every stroke owned by one user. Slice order is paint order.
type DrawingRecord struct {
	Strokes []Stroke `json:"strokes"`
}

// EmptyRecord is returned when a user has nothing saved.
func EmptyRecord() DrawingRecord {
	return DrawingRecord{Strokes: []Stroke{}}
}

// Clone returns a deep copy of the record.
func (r DrawingRecord) Clone() DrawingRecord {
	out := DrawingRecord{Strokes: make([]Stroke, len(r.Strokes))}
	for i, s := range r.Strokes {
		out.Strokes[i] = s.Clone()
	}
	return out
}

// PointCount returns the total number of points across all strokes.
func (r DrawingRecord) PointCount() int {
	n := 0
	for _, s := range r.Strokes {
		n += len(s.Points)
	}
	return n
}

// Snapshot is the full shared state: every known owner's record.
type Snapshot map[string]DrawingRecord
