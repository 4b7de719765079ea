// Package refresh keeps the cluster cache warm: stale viewport entries are
// recomputed in the background so readers keep getting immediate answers.
package refresh

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

// Job identifies one viewport query to recompute.
type Job struct {
	Key    string
	UserID string
	BBox   geo.BBox
	Zoom   int
	Filter filter.Set
}

type Warmer struct {
	ch    chan Job
	inFly sync.Map // key -> struct{}
	limit *rate.Limiter
	Do    func(ctx context.Context, j Job)
}

// New starts workerCount workers. perSecond bounds how hard the warm pass
// may hit the store independent of queue depth.
func New(capacity int, workerCount int, perSecond float64, do func(ctx context.Context, j Job)) *Warmer {
	if capacity <= 0 {
		capacity = 256
	}
	if workerCount <= 0 {
		workerCount = 2
	}
	if perSecond <= 0 {
		perSecond = 4
	}
	w := &Warmer{
		ch:    make(chan Job, capacity),
		limit: rate.NewLimiter(rate.Limit(perSecond), workerCount),
		Do:    do,
	}
	for i := 0; i < workerCount; i++ {
		go w.worker()
	}
	return w
}

// Enqueue schedules a warm unless the same key is already queued or
// running. Saturation drops the job; a later request re-enqueues it.
func (w *Warmer) Enqueue(j Job) {
	if _, exists := w.inFly.LoadOrStore(j.Key, struct{}{}); exists {
		return
	}
	select {
	case w.ch <- j:
	default:
		w.inFly.Delete(j.Key)
	}
}

func (w *Warmer) worker() {
	for j := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		func() {
			defer func() {
				w.inFly.Delete(j.Key)
				cancel()
			}()
			if err := w.limit.Wait(ctx); err != nil {
				return
			}
			if w.Do != nil {
				w.Do(ctx, j)
			}
		}()
	}
}
