package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/map-api/internal/events"
)

type EventsDeps struct {
	Pub events.Publisher
}

// RegisterEvents accepts listings-changed notifications. Ingestion runs
// out of process, so it reports mutations through this endpoint; the
// publisher fans them out to the cache invalidator.
func RegisterEvents(r chi.Router, d EventsDeps) {
	r.Post("/internal/listings-changed", func(w http.ResponseWriter, req *http.Request) {
		var evt events.ListingsChanged
		if err := json.NewDecoder(req.Body).Decode(&evt); err != nil {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]any{"error": "invalid_json", "detail": err.Error()})
			return
		}
		d.Pub.PublishListingsChanged(req.Context(), evt)
		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"ok": true})
	})
}
