// Package mapclient is the client half of the viewport pipeline: a typed
// HTTP client for the map API, a cancellable point-stream consumer, the
// viewport query orchestrator, and a bounded point-of-interest cache.
package mapclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

// Query is one viewport query: rectangle, zoom and filter set.
type Query struct {
	BBox   geo.BBox
	Zoom   int
	Filter filter.Set
}

// POI is a point-of-interest entity as served by the API.
type POI struct {
	ID       int64           `json:"id"`
	OSMID    int64           `json:"osm_id"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
}

type Client struct {
	baseURL    string
	token      string
	http       *retryablehttp.Client
	streamHTTP *retryablehttp.Client
	log        zerolog.Logger
}

func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	// A long-lived chunked response would trip the request timeout; the
	// stream client has none and relies on context cancellation instead.
	sc := retryablehttp.NewClient()
	sc.RetryWaitMin = rc.RetryWaitMin
	sc.RetryWaitMax = rc.RetryWaitMax
	sc.RetryMax = rc.RetryMax
	sc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		http:       rc,
		streamHTTP: sc,
		log:        log,
	}
}

// FetchClusters runs the lightweight aggregation query.
func (c *Client) FetchClusters(ctx context.Context, q Query) (geo.Result, error) {
	body, err := json.Marshal(q.Filter)
	if err != nil {
		return geo.Result{}, err
	}
	u := fmt.Sprintf("%s/clusters?%s", c.baseURL, queryParams(q).Encode())
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return geo.Result{}, err
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return geo.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return geo.Result{}, apiError(resp)
	}
	var res geo.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return geo.Result{}, fmt.Errorf("decode clusters: %w", err)
	}
	return res, nil
}

// FetchPOIs batch-fetches point-of-interest entities by id.
func (c *Client) FetchPOIs(ctx context.Context, ids []int64) ([]POI, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	u := fmt.Sprintf("%s/points-of-interest?ids=%s", c.baseURL, strings.Join(parts, ","))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apiError(resp)
	}
	var out []POI
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pois: %w", err)
	}
	return out, nil
}

func (c *Client) decorate(req *retryablehttp.Request) {
	req.Header.Set("accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func queryParams(q Query) url.Values {
	v := url.Values{}
	v.Set("bbox", q.BBox.String())
	v.Set("zoom", strconv.Itoa(q.Zoom))
	return v
}

func apiError(resp *http.Response) error {
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return fmt.Errorf("map-api error %d: %v", resp.StatusCode, body)
}
