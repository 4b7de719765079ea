package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/auth"
	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
	"github.com/yourorg/map-api/internal/store"
	"github.com/yourorg/map-api/internal/stream"
)

type StreamDeps struct {
	Store *store.Store
	Log   zerolog.Logger
}

func RegisterStream(r chi.Router, d StreamDeps) {
	r.Post("/listings/stream", func(w http.ResponseWriter, req *http.Request) {
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
		handleStream(w, req, d, f)
	})

	r.Get("/listings/stream", func(w http.ResponseWriter, req *http.Request) {
		handleStream(w, req, d, filter.FromQuery(req.URL.Query()))
	})
}

func handleStream(w http.ResponseWriter, req *http.Request, d StreamDeps, f filter.Set) {
	ctx := req.Context()
	sw := stream.NewWriter(w)

	// Malformed bbox degrades to an empty stream.
	bbox, err := geo.ParseBBox(req.URL.Query().Get("bbox"))
	if err != nil {
		_ = sw.Close()
		return
	}

	userID := auth.UserID(ctx)
	err = d.Store.EachListingWithin(ctx, userID, bbox, f, func(l geo.Listing) error {
		return sw.Append(geo.PointOf(l))
	})
	if err != nil {
		// The consumer walking away is not a server problem; anything else
		// is, but the response is already committed so log and stop.
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			d.Log.Debug().Msg("point stream cancelled by client")
			return
		}
		d.Log.Error().Err(err).Int("sent", sw.Sent()).Msg("point stream aborted")
		return
	}
	if err := sw.Close(); err != nil {
		d.Log.Debug().Err(err).Msg("point stream close failed")
	}
}
