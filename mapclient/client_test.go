package mapclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

func TestFetchClustersSendsQueryAndFilter(t *testing.T) {
	var gotBBox, gotZoom string
	var gotFilter filter.Set
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		gotBBox = r.URL.Query().Get("bbox")
		gotZoom = r.URL.Query().Get("zoom")
		if err := json.NewDecoder(r.Body).Decode(&gotFilter); err != nil {
			t.Errorf("decode filter body: %v", err)
		}
		json.NewEncoder(w).Encode(geo.Result{
			Clusters: []geo.Cluster{{ID: "cluster_0", Count: 9}},
			Outliers: []geo.Point{},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", zerolog.Nop())
	q := streamQuery()
	q.Zoom = 12
	q.Filter = filter.Set{FavoritesOnly: true, Groups: []filter.Group{{}}}

	res, err := c.FetchClusters(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBBox != q.BBox.String() {
		t.Errorf("bbox param = %q, want %q", gotBBox, q.BBox.String())
	}
	if gotZoom != "12" {
		t.Errorf("zoom param = %q", gotZoom)
	}
	if !gotFilter.FavoritesOnly {
		t.Error("filter body lost in transit")
	}
	if len(res.Clusters) != 1 || res.Clusters[0].Count != 9 {
		t.Errorf("result did not decode: %+v", res)
	}
}

func TestFetchClustersErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad_request","detail":"zoom"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	if _, err := c.FetchClusters(context.Background(), streamQuery()); err == nil {
		t.Error("expected error for a 400 response")
	}
}

func TestFetchPOIsBatchesByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ids := r.URL.Query().Get("ids"); ids != "3,1,7" {
			t.Errorf("ids param = %q", ids)
		}
		fmt.Fprint(w, `[{"id":3,"type":"park","name":"High Park","geometry":{"type":"Point","coordinates":[-79.46,43.65]}}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	pois, err := c.FetchPOIs(context.Background(), []int64{3, 1, 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 1 || pois[0].Name != "High Park" {
		t.Errorf("pois = %+v", pois)
	}
	if len(pois[0].Geometry) == 0 {
		t.Error("geometry should pass through untouched")
	}
}

func TestFetchPOIsEmptyInputSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty id list")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	pois, err := c.FetchPOIs(context.Background(), nil)
	if err != nil || pois != nil {
		t.Errorf("got %v, %v", pois, err)
	}
}
