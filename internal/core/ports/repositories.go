package ports

import (
	"context"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// DrawingRepository persists one DrawingRecord per owner. Save is a
// whole-record overwrite; concurrent saves for the same owner are
// last-write-wins.
type DrawingRepository interface {
	Save(ctx context.Context, owner string, record domain.DrawingRecord) error
	// Load returns domain.ErrNotFound when the owner has never saved.
	Load(ctx context.Context, owner string) (domain.DrawingRecord, error)
	LoadAll(ctx context.Context) (domain.Snapshot, error)
}
