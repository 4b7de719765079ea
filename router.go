package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	httpapi "github.com/yourorg/map-api/http"
	"github.com/yourorg/map-api/internal/auth"
	"github.com/yourorg/map-api/internal/clustercache"
	"github.com/yourorg/map-api/internal/events"
	"github.com/yourorg/map-api/internal/refresh"
	"github.com/yourorg/map-api/internal/store"
)

type RouterDeps struct {
	Store    *store.Store
	Cache    *clustercache.Cache
	Warm     *refresh.Warmer
	Pub      events.Publisher
	Verifier auth.TokenVerifier
	Log      zerolog.Logger
}

func BuildRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(300, 1*time.Minute))
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Verifier))
		httpapi.RegisterClusters(r, httpapi.ClustersDeps{Store: d.Store, Cache: d.Cache, Warm: d.Warm, Log: d.Log})
		httpapi.RegisterStream(r, httpapi.StreamDeps{Store: d.Store, Log: d.Log})
		httpapi.RegisterPOIs(r, httpapi.POIDeps{Store: d.Store})
		httpapi.RegisterEvents(r, httpapi.EventsDeps{Pub: d.Pub})
	})

	return r
}
