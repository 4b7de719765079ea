package mapclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/map-api/internal/geo"
)

// ListingStream is a cancellable ordered sequence of point chunks. Consume
// Chunks until it closes, then check Err. After Cancel no further chunks
// arrive and Err stays nil; a chunk partially transferred at that moment is
// discarded.
type ListingStream struct {
	ch     chan []geo.Point
	cancel context.CancelFunc
	once   sync.Once

	mu  sync.Mutex
	err error
}

// StreamListings opens the point stream for a query. Chunk boundaries are
// transport-level; merge order matters, chunk size does not.
func (c *Client) StreamListings(ctx context.Context, q Query) (*ListingStream, error) {
	body, err := json.Marshal(q.Filter)
	if err != nil {
		return nil, err
	}
	sctx, cancel := context.WithCancel(ctx)
	u := fmt.Sprintf("%s/listings/stream?bbox=%s", c.baseURL, q.BBox.String())
	req, err := retryablehttp.NewRequestWithContext(sctx, http.MethodPost, u, body)
	if err != nil {
		cancel()
		return nil, err
	}
	c.decorate(req)

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		cancel()
		return nil, apiError(resp)
	}

	s := &ListingStream{ch: make(chan []geo.Point), cancel: cancel}
	go s.consume(sctx, resp.Body, c)
	return s, nil
}

// Chunks yields each decoded chunk in arrival order and closes when the
// stream ends, errors, or is cancelled.
func (s *ListingStream) Chunks() <-chan []geo.Point { return s.ch }

// Err reports why the stream ended. Valid after Chunks closes; nil on
// normal completion and after cancellation.
func (s *ListingStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops delivery cooperatively. Safe to call more than once.
func (s *ListingStream) Cancel() { s.once.Do(s.cancel) }

func (s *ListingStream) consume(ctx context.Context, body io.ReadCloser, c *Client) {
	defer close(s.ch)
	defer body.Close()
	defer s.cancel()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var pts []geo.Point
		if err := json.Unmarshal(line, &pts); err != nil {
			// One bad chunk never aborts the stream.
			c.log.Warn().Err(err).Msg("dropping malformed stream chunk")
			continue
		}
		select {
		case s.ch <- pts:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}
