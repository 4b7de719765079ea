package events

import (
	"context"
)

// ListingsChanged means the listing set mutated. The ingestion pipeline
// runs out of process and reports mutations over the internal HTTP
// endpoint, which publishes here; the viewport pipeline only consumes the
// event to invalidate cached aggregations.
type ListingsChanged struct {
	City      string `json:"city"`
	ListingID int64  `json:"listing_id"`
}

type Publisher interface {
	PublishListingsChanged(ctx context.Context, evt ListingsChanged)
	SubscribeListingsChanged() <-chan ListingsChanged
}

type inMemory struct{ ch chan ListingsChanged }

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan ListingsChanged, buffer)}
}

func (m *inMemory) PublishListingsChanged(_ context.Context, evt ListingsChanged) {
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *inMemory) SubscribeListingsChanged() <-chan ListingsChanged { return m.ch }
