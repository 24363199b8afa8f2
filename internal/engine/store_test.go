package engine_test

import (
	"testing"

	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/engine"
)

func TestStore_AppendCreatesRecordInOrder(t *testing.T) {
	st := engine.NewStore()
	st.Append("bob", stroke("bob", domain.Point{Lat: 1, Lon: 1}))
	st.Append("alice", stroke("alice", domain.Point{Lat: 2, Lon: 2}))
	st.Append("bob", stroke("bob", domain.Point{Lat: 3, Lon: 3}))

	owners := st.Owners()
	if len(owners) != 2 || owners[0] != "bob" || owners[1] != "alice" {
		t.Fatalf("expected [bob alice], got %v", owners)
	}
	rec, ok := st.Record("bob")
	if !ok || len(rec.Strokes) != 2 {
		t.Fatalf("expected 2 strokes for bob, got %v", rec.Strokes)
	}
	if rec.Strokes[1].Points[0].Lat != 3 {
		t.Errorf("expected insertion order preserved")
	}
}

func TestStore_AppendStampsOwnerAndRejectsMismatch(t *testing.T) {
	st := engine.NewStore()
	if !st.Append("alice", stroke("", domain.Point{Lat: 1, Lon: 1})) {
		t.Fatal("expected ownerless stroke to be accepted")
	}
	if st.Append("alice", stroke("mallory", domain.Point{Lat: 1, Lon: 1})) {
		t.Fatal("expected mismatched owner to be refused")
	}
	if st.Append("", stroke("", domain.Point{Lat: 1, Lon: 1})) {
		t.Fatal("expected empty owner to be refused")
	}

	rec, _ := st.Record("alice")
	if len(rec.Strokes) != 1 || rec.Strokes[0].Owner != "alice" {
		t.Fatalf("expected one stroke owned by alice, got %+v", rec.Strokes)
	}
	if _, ok := st.Record("mallory"); ok {
		t.Error("refused append must not create a record")
	}
}

func TestStore_AppendIsIdempotentByID(t *testing.T) {
	st := engine.NewStore()
	s := stroke("alice", domain.Point{Lat: 1, Lon: 1})
	s.ID = "stroke-1"

	if !st.Append("alice", s) {
		t.Fatal("first append should succeed")
	}
	if st.Append("alice", s) {
		t.Fatal("duplicate delivery should be a no-op")
	}
	if st.StrokeCount() != 1 {
		t.Fatalf("expected 1 stroke, got %d", st.StrokeCount())
	}
}

func TestStore_OrphanOwnerIsHarmless(t *testing.T) {
	st := engine.NewStore()
	if !st.Append("no such user \x00", stroke("", domain.Point{Lat: 0, Lon: 0})) {
		t.Fatal("expected orphan record to be created")
	}
	if len(st.Owners()) != 1 {
		t.Fatalf("expected 1 owner, got %v", st.Owners())
	}
}

func TestStore_RecordReturnsCopy(t *testing.T) {
	st := engine.NewStore()
	st.Append("alice", stroke("alice", domain.Point{Lat: 1, Lon: 1}))

	rec, _ := st.Record("alice")
	rec.Strokes[0].Points[0].Lat = 42

	again, _ := st.Record("alice")
	if again.Strokes[0].Points[0].Lat != 1 {
		t.Fatal("mutating a returned record leaked into the store")
	}
}

func TestStore_ReplaceAllOrdersByName(t *testing.T) {
	st := engine.NewStore()
	st.Append("zed", stroke("zed", domain.Point{Lat: 1, Lon: 1}))
	st.ReplaceAll(domain.Snapshot{
		"carol": {Strokes: []domain.Stroke{stroke("carol", domain.Point{Lat: 1, Lon: 1})}},
		"alice": {Strokes: []domain.Stroke{stroke("alice", domain.Point{Lat: 1, Lon: 1})}},
		"bob":   {Strokes: []domain.Stroke{stroke("mallory", domain.Point{Lat: 1, Lon: 1})}},
	})

	owners := st.Owners()
	if len(owners) != 3 || owners[0] != "alice" || owners[1] != "bob" || owners[2] != "carol" {
		t.Fatalf("expected sorted owners, got %v", owners)
	}
	if rec, _ := st.Record("bob"); len(rec.Strokes) != 0 {
		t.Errorf("strokes owned by someone else must not be loaded into bob's record")
	}
	if _, ok := st.Record("zed"); ok {
		t.Error("ReplaceAll must discard previous records")
	}
}
