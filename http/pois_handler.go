package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/map-api/internal/store"
)

// maxPOIBatch caps how many ids one call may resolve.
const maxPOIBatch = 100

type POIDeps struct {
	Store *store.Store
}

func RegisterPOIs(r chi.Router, d POIDeps) {
	r.Get("/points-of-interest", func(w http.ResponseWriter, req *http.Request) {
		raw := req.URL.Query().Get("ids")
		if raw == "" {
			render.Status(req, http.StatusBadRequest)
			render.JSON(w, req, map[string]any{"error": "ids_required"})
			return
		}
		var ids []int64
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
			if len(ids) >= maxPOIBatch {
				break
			}
		}
		pois, err := d.Store.FetchPOIsByIDs(req.Context(), ids)
		if err != nil {
			render.Status(req, http.StatusBadGateway)
			render.JSON(w, req, map[string]any{"error": "storage_error", "detail": err.Error()})
			return
		}
		if pois == nil {
			pois = []store.POI{}
		}
		render.JSON(w, req, pois)
	})
}
