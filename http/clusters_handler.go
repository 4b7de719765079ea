package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/auth"
	"github.com/yourorg/map-api/internal/clustercache"
	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
	"github.com/yourorg/map-api/internal/querykey"
	"github.com/yourorg/map-api/internal/refresh"
	"github.com/yourorg/map-api/internal/store"
)

type ClustersDeps struct {
	Store *store.Store
	Cache *clustercache.Cache
	Warm  *refresh.Warmer
	Log   zerolog.Logger
}

func RegisterClusters(r chi.Router, d ClustersDeps) {
	// POST: filter-set JSON body, bbox/zoom in query
	r.Post("/clusters", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
		if err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]any{"error": "invalid_body", "detail": err.Error()})
			return
		}
		f, err := filter.Parse(body)
		if err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]any{"error": "invalid_json", "detail": err.Error()})
			return
		}
		handleClusters(w, req, d, f)
	})

	// GET: flat filter query params (compatibility)
	r.Get("/clusters", func(w http.ResponseWriter, req *http.Request) {
		handleClusters(w, req, d, filter.FromQuery(req.URL.Query()))
	})
}

func handleClusters(w http.ResponseWriter, req *http.Request, d ClustersDeps, f filter.Set) {
	q := req.URL.Query()
	zoom := 10
	if v := q.Get("zoom"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			zoom = i
		}
	}

	// Malformed bbox degrades to an empty result, matching the engine.
	bbox, err := geo.ParseBBox(q.Get("bbox"))
	if err != nil {
		render.JSON(w, req, geo.Result{Clusters: []geo.Cluster{}, Outliers: []geo.Point{}})
		return
	}

	ctx := req.Context()
	userID := auth.UserID(ctx)
	_, key := querykey.For(bbox, zoom, f)
	cacheKey := "u:" + userID + ":" + key

	if d.Cache != nil {
		if res, stale, ok := d.Cache.Get(ctx, cacheKey); ok {
			if stale && d.Warm != nil {
				d.Warm.Enqueue(refresh.Job{Key: cacheKey, UserID: userID, BBox: bbox, Zoom: zoom, Filter: f})
			}
			render.JSON(w, req, res)
			return
		}
	}

	eng := geo.NewEngine(d.Store.Scope(userID), d.Log)
	res, err := eng.Aggregate(ctx, bbox, zoom, f)
	if err != nil {
		render.Status(req, http.StatusBadGateway)
		render.JSON(w, req, map[string]any{"error": "storage_error", "detail": err.Error()})
		return
	}
	if d.Cache != nil && d.Cache.TryLock(ctx, cacheKey) {
		d.Cache.Put(ctx, cacheKey, res)
	}
	render.JSON(w, req, res)
}
