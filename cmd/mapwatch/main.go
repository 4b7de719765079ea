package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yourorg/map-api/internal/env"
	"github.com/yourorg/map-api/internal/geo"
	"github.com/yourorg/map-api/internal/logger"
	"github.com/yourorg/map-api/mapclient"
)

// mapwatch follows one viewport against a running map-api and prints what
// the orchestrator would hand a renderer. Useful for poking at clustering
// behavior without a frontend.
func main() {
	log := logger.New("mapwatch")

	baseURL := env.GetStr("MAP_API_URL", "http://localhost:4003")
	token := env.Must("MAP_API_TOKEN")

	bbox, err := geo.ParseBBox(env.Must("WATCH_BBOX"))
	if err != nil {
		log.Fatal().Err(err).Msg("bad WATCH_BBOX")
	}
	zoom := env.GetInt("WATCH_ZOOM", 12)
	interval := env.GetDur("WATCH_INTERVAL", 5*time.Second)

	client := mapclient.NewClient(baseURL, token, log)
	orch := mapclient.NewOrchestrator(client, nil, 0, log)
	defer orch.Close()

	cache := mapclient.NewPOICache(mapclient.DefaultPOICapacity, nil, client.FetchPOIs)
	poiIDs := parseIDs(os.Getenv("WATCH_POI_IDS"))

	orch.OnViewportChange(bbox, zoom)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vm := orch.Snapshot()
			fmt.Fprintf(os.Stdout, "clusters=%d outliers=%d points=%d loading=%v\n",
				len(vm.Clusters), len(vm.Outliers), len(vm.Points), vm.IsLoading)
			for _, c := range vm.Clusters {
				fmt.Fprintf(os.Stdout, "  %s %s count=%d price=%d..%d\n",
					c.ID, c.Label, c.Count, c.Stats.PriceMin, c.Stats.PriceMax)
			}
			if len(poiIDs) > 0 {
				pois, err := cache.GetMany(ctx, poiIDs)
				if err != nil {
					log.Warn().Err(err).Msg("poi fetch failed")
				}
				for _, p := range pois {
					fmt.Fprintf(os.Stdout, "  poi %d %s %q\n", p.ID, p.Type, p.Name)
				}
			}
		}
	}
}

func parseIDs(s string) []int64 {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
