package clustercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/geo"
)

var errMiss = errors.New("kv: nil")

type fakeKV struct {
	m      map[string]string
	broken bool
	sets   int
}

func newFakeKV() *fakeKV { return &fakeKV{m: map[string]string{}} }

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	if f.broken {
		return "", errors.New("connection refused")
	}
	v, ok := f.m[key]
	if !ok {
		return "", errMiss
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, val string, _ time.Duration) error {
	if f.broken {
		return errors.New("connection refused")
	}
	f.m[key] = val
	f.sets++
	return nil
}

func (f *fakeKV) SetNX(_ context.Context, key, val string, _ time.Duration) (bool, error) {
	if f.broken {
		return false, errors.New("connection refused")
	}
	if _, ok := f.m[key]; ok {
		return false, nil
	}
	f.m[key] = val
	return true, nil
}

func (f *fakeKV) Incr(_ context.Context, key string) (int64, error) {
	if f.broken {
		return 0, errors.New("connection refused")
	}
	var v int64
	for _, ch := range f.m[key] {
		v = v*10 + int64(ch-'0')
	}
	v++
	f.m[key] = itoa(v)
	return v, nil
}

func (f *fakeKV) IsNil(err error) bool { return errors.Is(err, errMiss) }

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func sampleResult() geo.Result {
	return geo.Result{
		Clusters: []geo.Cluster{{ID: "cluster_0", Label: "Area 1", Count: 12, MemberIDs: []int64{1, 2, 3}}},
		Outliers: []geo.Point{{ID: 42, Lat: 43.6, Lng: -79.4, Price: 650000}},
	}
}

func TestCachePutThenGetFresh(t *testing.T) {
	kv := newFakeKV()
	c := New(kv, time.Hour, time.Minute, zerolog.Nop())
	ctx := context.Background()

	c.Put(ctx, "k1", sampleResult())
	res, stale, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if stale {
		t.Error("fresh entry reported stale")
	}
	if len(res.Clusters) != 1 || res.Clusters[0].Count != 12 {
		t.Errorf("result did not round trip: %+v", res)
	}
	if len(res.Outliers) != 1 || res.Outliers[0].ID != 42 {
		t.Errorf("outliers did not round trip: %+v", res.Outliers)
	}
}

func TestCacheMissIsNotAnError(t *testing.T) {
	c := New(newFakeKV(), time.Hour, time.Minute, zerolog.Nop())
	if _, _, ok := c.Get(context.Background(), "absent"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCacheStaleEntryStillServed(t *testing.T) {
	kv := newFakeKV()
	// staleAfter in the past as soon as it is written.
	c := New(kv, time.Hour, time.Nanosecond, zerolog.Nop())
	ctx := context.Background()

	c.Put(ctx, "k1", sampleResult())
	time.Sleep(2 * time.Millisecond)
	res, stale, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("stale entry must still be a hit")
	}
	if !stale {
		t.Error("entry past stale-after should report stale")
	}
	if len(res.Clusters) != 1 {
		t.Error("stale hit should still carry the payload")
	}
}

func TestCacheVersionBumpInvalidates(t *testing.T) {
	kv := newFakeKV()
	c := New(kv, time.Hour, time.Minute, zerolog.Nop())
	ctx := context.Background()

	c.Put(ctx, "k1", sampleResult())
	c.BumpVersion(ctx)
	if _, _, ok := c.Get(ctx, "k1"); ok {
		t.Error("version bump should turn the entry into a miss")
	}

	// A Put after the bump is stored under the new version and hits again.
	c.Put(ctx, "k1", sampleResult())
	if _, _, ok := c.Get(ctx, "k1"); !ok {
		t.Error("rewritten entry should hit under the new version")
	}
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	kv := newFakeKV()
	kv.broken = true
	c := New(kv, time.Hour, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if _, _, ok := c.Get(ctx, "k1"); ok {
		t.Error("broken kv must read as a miss")
	}
	c.Put(ctx, "k1", sampleResult()) // must not panic
	if !c.TryLock(ctx, "k1") {
		t.Error("broken kv must not block computation")
	}
}

func TestCacheTryLockSingleWinner(t *testing.T) {
	kv := newFakeKV()
	c := New(kv, time.Hour, time.Minute, zerolog.Nop())
	ctx := context.Background()

	if !c.TryLock(ctx, "k1") {
		t.Fatal("first lock attempt should win")
	}
	if c.TryLock(ctx, "k1") {
		t.Error("second lock attempt should lose while held")
	}
	if !c.TryLock(ctx, "k2") {
		t.Error("locks are per key")
	}
}

func TestCacheCorruptEntryIsAMiss(t *testing.T) {
	kv := newFakeKV()
	kv.m["clusters:q:k1"] = "{not json"
	c := New(kv, time.Hour, time.Minute, zerolog.Nop())
	if _, _, ok := c.Get(context.Background(), "k1"); ok {
		t.Error("corrupt payload must read as a miss")
	}
}
