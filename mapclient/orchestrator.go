package mapclient

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

// DefaultDebounce absorbs drag/zoom gesture noise without feeling laggy.
const DefaultDebounce = 300 * time.Millisecond

// ViewModel is what the orchestrator exposes to the rendering layer. All
// slices belong to a single query generation, never a mix.
type ViewModel struct {
	Clusters  []geo.Cluster
	Outliers  []geo.Point
	Points    []geo.Point
	IsLoading bool
}

// StreamClient is the transport the orchestrator drives; *Client satisfies
// it.
type StreamClient interface {
	FetchClusters(ctx context.Context, q Query) (geo.Result, error)
	StreamListings(ctx context.Context, q Query) (*ListingStream, error)
}

// Orchestrator turns raw viewport/filter events into at most one in-flight
// query: changes are debounced, each dispatch gets a monotonically
// increasing generation number, older generations are cancelled on
// dispatch, and results apply only while their generation is current. A
// single goroutine owns all state, so the generation-check-then-apply step
// is atomic with respect to every other callback.
type Orchestrator struct {
	client   StreamClient
	clock    Clock
	debounce time.Duration
	log      zerolog.Logger

	mailbox chan any
	stop    chan struct{}
	done    chan struct{}
}

// Orchestrator mailbox messages.
type (
	viewportMsg struct {
		bbox geo.BBox
		zoom int
	}
	filterMsg struct{ f filter.Set }
	aggMsg    struct {
		gen uint64
		res geo.Result
		err error
	}
	chunkMsg struct {
		gen uint64
		pts []geo.Point
	}
	streamDoneMsg struct {
		gen uint64
		err error
	}
	snapshotMsg struct{ reply chan ViewModel }
)

func NewOrchestrator(client StreamClient, clock Clock, debounce time.Duration, log zerolog.Logger) *Orchestrator {
	if clock == nil {
		clock = SystemClock{}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	o := &Orchestrator{
		client:   client,
		clock:    clock,
		debounce: debounce,
		log:      log,
		mailbox:  make(chan any, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go o.run()
	return o
}

// OnViewportChange records a pan/zoom gesture and restarts the debounce
// window.
func (o *Orchestrator) OnViewportChange(bbox geo.BBox, zoom int) {
	o.post(viewportMsg{bbox: bbox, zoom: zoom})
}

// OnFilterChange records a filter edit and restarts the debounce window.
func (o *Orchestrator) OnFilterChange(f filter.Set) {
	f.Normalize()
	o.post(filterMsg{f: f})
}

// Snapshot returns a copy of the current view model.
func (o *Orchestrator) Snapshot() ViewModel {
	reply := make(chan ViewModel, 1)
	select {
	case o.mailbox <- snapshotMsg{reply: reply}:
		select {
		case vm := <-reply:
			return vm
		case <-o.done:
			return ViewModel{}
		}
	case <-o.done:
		return ViewModel{}
	}
}

// Close cancels in-flight work and stops the event loop.
func (o *Orchestrator) Close() {
	close(o.stop)
	<-o.done
}

func (o *Orchestrator) post(m any) {
	select {
	case o.mailbox <- m:
	case <-o.done:
	}
}

// loopState is owned exclusively by run.
type loopState struct {
	pending    *Query // latest change awaiting debounce
	havePrev   bool
	prev       Query // last dispatched query, base for partial changes
	timer      Timer
	gen        uint64
	cancel     context.CancelFunc
	view       ViewModel
	aggDone    bool
	streamOpen bool
}

func (o *Orchestrator) run() {
	defer close(o.done)
	st := &loopState{}
	st.view = ViewModel{Clusters: []geo.Cluster{}, Outliers: []geo.Point{}, Points: []geo.Point{}}

	for {
		var timerC <-chan time.Time
		if st.timer != nil {
			timerC = st.timer.C()
		}
		select {
		case <-o.stop:
			if st.cancel != nil {
				st.cancel()
			}
			if st.timer != nil {
				st.timer.Stop()
			}
			return
		case <-timerC:
			st.timer = nil
			if st.pending != nil && st.pending.BBox.Valid() {
				q := *st.pending
				st.pending = nil
				o.dispatch(st, q)
			}
			// A filter edit can land before the first viewport. There is
			// nothing to query until the map reports a rectangle, but the
			// edit stays pending as the base for the next change.
		case m := <-o.mailbox:
			o.handle(st, m)
		}
	}
}

func (o *Orchestrator) handle(st *loopState, m any) {
	switch msg := m.(type) {
	case viewportMsg:
		q := o.baseQuery(st)
		q.BBox = msg.bbox
		q.Zoom = msg.zoom
		o.schedule(st, q)
	case filterMsg:
		q := o.baseQuery(st)
		q.Filter = msg.f
		o.schedule(st, q)
	case aggMsg:
		if msg.gen != st.gen {
			return // retired generation
		}
		st.aggDone = true
		if msg.err != nil {
			o.log.Warn().Err(msg.err).Uint64("gen", msg.gen).Msg("aggregation query failed")
		} else {
			st.view.Clusters = msg.res.Clusters
			st.view.Outliers = msg.res.Outliers
		}
		o.settle(st)
	case chunkMsg:
		if msg.gen != st.gen {
			return
		}
		st.view.Points = append(st.view.Points, msg.pts...)
	case streamDoneMsg:
		if msg.gen != st.gen {
			return
		}
		st.streamOpen = false
		if msg.err != nil {
			o.log.Warn().Err(msg.err).Uint64("gen", msg.gen).Msg("point stream failed")
		}
		o.settle(st)
	case snapshotMsg:
		msg.reply <- ViewModel{
			Clusters:  append([]geo.Cluster(nil), st.view.Clusters...),
			Outliers:  append([]geo.Point(nil), st.view.Outliers...),
			Points:    append([]geo.Point(nil), st.view.Points...),
			IsLoading: st.view.IsLoading,
		}
	}
}

func (o *Orchestrator) baseQuery(st *loopState) Query {
	if st.pending != nil {
		return *st.pending
	}
	if st.havePrev {
		return st.prev
	}
	var q Query
	q.Filter.Normalize()
	return q
}

// schedule replaces any pending dispatch: a change inside the window means
// the superseded intermediate state never reaches the network.
func (o *Orchestrator) schedule(st *loopState, q Query) {
	st.pending = &q
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = o.clock.NewTimer(o.debounce)
}

func (o *Orchestrator) dispatch(st *loopState, q Query) {
	// Retire everything older before any new result can arrive.
	if st.cancel != nil {
		st.cancel()
	}
	st.gen++
	gen := st.gen
	st.havePrev = true
	st.prev = q
	st.aggDone = false
	st.view.IsLoading = true
	st.view.Points = st.view.Points[:0]

	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel

	go func() {
		res, err := o.client.FetchClusters(ctx, q)
		o.post(aggMsg{gen: gen, res: res, err: err})
	}()

	st.streamOpen = q.Zoom >= geo.IndividualZoom
	if st.streamOpen {
		go func() {
			s, err := o.client.StreamListings(ctx, q)
			if err != nil {
				o.post(streamDoneMsg{gen: gen, err: err})
				return
			}
			for pts := range s.Chunks() {
				o.post(chunkMsg{gen: gen, pts: pts})
			}
			o.post(streamDoneMsg{gen: gen, err: s.Err()})
		}()
	}
}

// settle commits the generation once all its work has reported in.
func (o *Orchestrator) settle(st *loopState) {
	if st.aggDone && !st.streamOpen {
		st.view.IsLoading = false
	}
}
