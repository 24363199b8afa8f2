package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// DrawingRepo implements ports.DrawingRepository with pgx. Each owner's
// record is one jsonb document.
type DrawingRepo struct {
	db *DB
}

// NewDrawingRepo creates a new DrawingRepo.
func NewDrawingRepo(db *DB) *DrawingRepo {
	return &DrawingRepo{db: db}
}

// Save overwrites owner's record.
func (r *DrawingRepo) Save(ctx context.Context, owner string, rec domain.DrawingRecord) error {
	if rec.Strokes == nil {
		rec.Strokes = []domain.Stroke{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO drawings (owner, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner) DO UPDATE
		SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at
	`, owner, data)
	if err != nil {
		return fmt.Errorf("save drawing %s: %w", owner, err)
	}
	return nil
}

// Load returns owner's record or domain.ErrNotFound.
func (r *DrawingRepo) Load(ctx context.Context, owner string) (domain.DrawingRecord, error) {
	var data []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT record FROM drawings WHERE owner = $1`, owner).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DrawingRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DrawingRecord{}, fmt.Errorf("load drawing %s: %w", owner, err)
	}
	return decodeRecord(owner, data)
}

// LoadAll returns every stored record keyed by owner.
func (r *DrawingRepo) LoadAll(ctx context.Context) (domain.Snapshot, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT owner, record FROM drawings ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("load drawings: %w", err)
	}
	defer rows.Close()

	out := make(domain.Snapshot)
	for rows.Next() {
		var owner string
		var data []byte
		if err := rows.Scan(&owner, &data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(owner, data)
		if err != nil {
			return nil, err
		}
		out[owner] = rec
	}
	return out, rows.Err()
}

func decodeRecord(owner string, data []byte) (domain.DrawingRecord, error) {
	rec := domain.EmptyRecord()
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.DrawingRecord{}, fmt.Errorf("decode drawing %s: %w", owner, err)
	}
	if rec.Strokes == nil {
		rec.Strokes = []domain.Stroke{}
	}
	return rec, nil
}
