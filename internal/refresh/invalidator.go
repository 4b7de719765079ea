package refresh

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/clustercache"
	"github.com/yourorg/map-api/internal/events"
)

// Invalidator consumes listings-changed events and moves the cluster-cache
// data version so stale aggregations stop being served.
type Invalidator struct {
	Pub   events.Publisher
	Cache *clustercache.Cache
	Log   zerolog.Logger
}

func (i *Invalidator) Run(ctx context.Context) {
	sub := i.Pub.SubscribeListingsChanged()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			i.Cache.BumpVersion(ctx)
			i.Log.Info().Str("city", evt.City).Int64("listing_id", evt.ListingID).
				Msg("listings changed, cluster cache invalidated")
		}
	}
}
