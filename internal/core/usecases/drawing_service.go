package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/core/ports"
	"github.com/samirrijal/lplace/internal/pkg/geospatial"
	"github.com/samirrijal/lplace/internal/pkg/metrics"
	"github.com/samirrijal/lplace/internal/pkg/telemetry"
)

const (
	cacheKeyAll        = "drawings:all"
	cacheKeyUserPrefix = "drawings:user:"
)

var tracer = telemetry.Tracer("usecases")

// DrawingService is the server side of the persistence gateway.
type DrawingService struct {
	drawings ports.DrawingRepository
	cache    ports.CacheService
	cacheTTL int

	// writes counts committed saves. A read only fills the cache when no
	// save landed while it was loading, so an invalidation is never undone.
	writes atomic.Uint64
}

// NewDrawingService creates a new DrawingService. cache may be nil.
func NewDrawingService(drawings ports.DrawingRepository, cache ports.CacheService, cacheTTL int) *DrawingService {
	if cacheTTL <= 0 {
		cacheTTL = 300
	}
	return &DrawingService{drawings: drawings, cache: cache, cacheTTL: cacheTTL}
}

// Save overwrites user's record. Strokes without an owner are stamped with
// user; a stroke owned by anyone else fails the whole save.
func (s *DrawingService) Save(ctx context.Context, user string, rec domain.DrawingRecord) (err error) {
	ctx, span := tracer.Start(ctx, "DrawingService.Save")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("owner", user), attribute.Int("strokes", len(rec.Strokes)))

	if user == "" {
		metrics.SaveFailures.WithLabelValues("unauthorized").Inc()
		return domain.ErrUnauthorized
	}
	clean, err := PrepareRecord(user, rec)
	if err != nil {
		metrics.SaveFailures.WithLabelValues(failureReason(err)).Inc()
		return err
	}

	if err := s.drawings.Save(ctx, user, clean); err != nil {
		metrics.SaveFailures.WithLabelValues("storage").Inc()
		return fmt.Errorf("save drawing: %w", err)
	}
	metrics.StrokesSaved.Add(float64(len(clean.Strokes)))
	s.writes.Add(1)

	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKeyUserPrefix+user)
		_ = s.cache.Delete(ctx, cacheKeyAll)
	}
	return nil
}

// Load returns user's record, or an empty one when nothing was saved yet.
func (s *DrawingService) Load(ctx context.Context, user string) (rec domain.DrawingRecord, err error) {
	ctx, span := tracer.Start(ctx, "DrawingService.Load")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("owner", user))

	if user == "" {
		return domain.DrawingRecord{}, domain.ErrUnauthorized
	}

	key := cacheKeyUserPrefix + user
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached domain.DrawingRecord
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("load").Inc()
				return cached, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("load").Inc()
	}

	gen := s.writes.Load()
	rec, err = s.drawings.Load(ctx, user)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EmptyRecord(), nil
	}
	if err != nil {
		return domain.DrawingRecord{}, fmt.Errorf("load drawing: %w", err)
	}

	if s.cache != nil && s.writes.Load() == gen {
		if data, err := json.Marshal(rec); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return rec, nil
}

// All returns every owner's record.
func (s *DrawingService) All(ctx context.Context) (snap domain.Snapshot, err error) {
	ctx, span := tracer.Start(ctx, "DrawingService.All")
	defer func() { endSpan(span, err) }()

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKeyAll); err == nil {
			var cached domain.Snapshot
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("all").Inc()
				return cached, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("all").Inc()
	}

	gen := s.writes.Load()
	snap, err = s.drawings.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load all drawings: %w", err)
	}
	if snap == nil {
		snap = domain.Snapshot{}
	}
	span.SetAttributes(attribute.Int("owners", len(snap)))

	if s.cache != nil && s.writes.Load() == gen {
		if data, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, cacheKeyAll, data, s.cacheTTL)
		}
	}
	return snap, nil
}

// Owners lists every owner with a saved record, sorted by name.
func (s *DrawingService) Owners(ctx context.Context) ([]string, error) {
	snap, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(snap))
	for owner := range snap {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

// Near returns the records of owners with at least one point within
// radiusMeters of (lat, lon).
func (s *DrawingService) Near(ctx context.Context, lat, lon, radiusMeters float64) (domain.Snapshot, error) {
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %v", radiusMeters)
	}
	snap, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	center := domain.Point{Lat: lat, Lon: lon}
	out := make(domain.Snapshot)
	for owner, rec := range snap {
		for _, st := range rec.Strokes {
			if geospatial.Within(center, radiusMeters, st.Points) {
				out[owner] = rec
				break
			}
		}
	}
	return out, nil
}

// PrepareRecord stamps, validates and normalizes rec for storage under user.
func PrepareRecord(user string, rec domain.DrawingRecord) (domain.DrawingRecord, error) {
	out := domain.DrawingRecord{Strokes: make([]domain.Stroke, 0, len(rec.Strokes))}
	for i, st := range rec.Strokes {
		if st.Owner == "" {
			st.Owner = user
		}
		if st.Owner != user {
			return domain.DrawingRecord{}, fmt.Errorf("stroke %d owned by %q: %w", i, st.Owner, domain.ErrOwnerMismatch)
		}
		if err := st.Validate(); err != nil {
			return domain.DrawingRecord{}, fmt.Errorf("stroke %d: %w", i, err)
		}
		out.Strokes = append(out.Strokes, st.Clone().Normalized())
	}
	return out, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrOwnerMismatch):
		return "owner_mismatch"
	case errors.Is(err, domain.ErrInvalidRecord):
		return "invalid"
	default:
		return "other"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
