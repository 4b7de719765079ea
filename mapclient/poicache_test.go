package mapclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type poiRecorder struct {
	calls  [][]int64
	err    error
	absent map[int64]bool
}

func (r *poiRecorder) fetch(_ context.Context, ids []int64) ([]POI, error) {
	r.calls = append(r.calls, append([]int64(nil), ids...))
	if r.err != nil {
		return nil, r.err
	}
	out := make([]POI, 0, len(ids))
	for _, id := range ids {
		if r.absent[id] {
			continue
		}
		out = append(out, POI{ID: id, Type: "cafe", Name: fmt.Sprintf("poi-%d", id)})
	}
	return out, nil
}

func TestPOICacheFetchesOnlyMissing(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(10, nil, rec.fetch)
	ctx := context.Background()

	got, err := c.GetMany(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d pois, want 3", len(got))
	}

	got, err = c.GetMany(ctx, []int64{2, 3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d pois, want 3", len(got))
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected 2 fetch calls, got %d", len(rec.calls))
	}
	if len(rec.calls[1]) != 1 || rec.calls[1][0] != 4 {
		t.Errorf("second call should fetch only the missing id, got %v", rec.calls[1])
	}
}

func TestPOICacheFullyCachedSkipsFetch(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(10, nil, rec.fetch)
	ctx := context.Background()

	if _, err := c.GetMany(ctx, []int64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetMany(ctx, []int64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 1 {
		t.Errorf("fully cached request must not go to the network, %d calls", len(rec.calls))
	}
}

func TestPOICacheDedupesRequestedIDs(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(10, nil, rec.fetch)

	got, err := c.GetMany(context.Background(), []int64{7, 7, 7})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("duplicate ids should collapse, got %d results", len(got))
	}
	if len(rec.calls) != 1 || len(rec.calls[0]) != 1 {
		t.Errorf("expected one fetch of one id, got %v", rec.calls)
	}
}

func TestPOICacheCapacityBound(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(3, nil, rec.fetch)
	ctx := context.Background()

	if _, err := c.GetMany(ctx, []int64{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 3 {
		t.Errorf("cache holds %d entries, capacity is 3", c.Len())
	}
}

func TestPOICacheEvictsLeastRecentlyUsed(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(3, nil, rec.fetch)
	ctx := context.Background()

	if _, err := c.GetMany(ctx, []int64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	// Touch 1 so 2 becomes the eviction victim.
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected 1 cached")
	}
	if _, err := c.GetMany(ctx, []int64{4}); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(2); ok {
		t.Error("2 was least recently used and should be gone")
	}
	for _, id := range []int64{1, 3, 4} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("expected %d to survive eviction", id)
		}
	}
}

func TestPOICacheNeverEvictsTheIncomingEntry(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(2, nil, rec.fetch)
	ctx := context.Background()

	if _, err := c.GetMany(ctx, []int64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetMany(ctx, []int64{3}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(3); !ok {
		t.Error("just-inserted entry must not be the eviction victim")
	}
}

func TestPOICacheFetchFailureStillReturnsCached(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(10, nil, rec.fetch)
	ctx := context.Background()

	if _, err := c.GetMany(ctx, []int64{1, 2}); err != nil {
		t.Fatal(err)
	}
	rec.err = errors.New("api unreachable")

	got, err := c.GetMany(ctx, []int64{1, 2, 3})
	if err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	if len(got) != 2 {
		t.Errorf("cached entries should still be returned on failure, got %d", len(got))
	}
}

func TestPOICacheSplitsOversizedFetches(t *testing.T) {
	rec := &poiRecorder{}
	c := NewPOICache(500, nil, rec.fetch)

	ids := make([]int64, 150)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	got, err := c.GetMany(context.Background(), ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 150 {
		t.Fatalf("got %d pois, want all 150", len(got))
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(rec.calls))
	}
	if len(rec.calls[0]) != maxPOIFetch || len(rec.calls[1]) != 50 {
		t.Errorf("batch sizes %d and %d, want %d and 50",
			len(rec.calls[0]), len(rec.calls[1]), maxPOIFetch)
	}
}

func TestPOICacheOmitsUnknownIDs(t *testing.T) {
	rec := &poiRecorder{absent: map[int64]bool{99: true}}
	c := NewPOICache(10, nil, rec.fetch)

	got, err := c.GetMany(context.Background(), []int64{1, 99})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("unknown ids should be silently omitted, got %v", got)
	}
}
