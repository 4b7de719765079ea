package geo

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/yourorg/map-api/internal/filter"
)

const (
	// IndividualZoom is the canonical zoom at or above which listings are
	// rendered individually and no clustering happens.
	IndividualZoom = 15

	// MinClusterInput is the candidate count below which clustering is
	// skipped entirely to avoid degenerate one-point clusters.
	MinClusterInput = 20

	// MinSamples is the density threshold: a point is a core point when at
	// least this many points (itself included) sit within eps of it.
	MinSamples = 3

	minEps = 0.001
	maxEps = 0.2
)

// EpsForZoom maps a zoom level to a neighborhood radius in degrees.
// Higher zoom means a smaller radius. At zoom 10 this is ~0.025 degrees,
// at zoom 14 ~0.0016; clamped to [0.001, 0.2].
func EpsForZoom(zoom int) float64 {
	eps := 0.1 / math.Pow(2, float64(zoom-8))
	return math.Min(maxEps, math.Max(minEps, eps))
}

// ListingSource is the storage collaborator: all active listings inside the
// rectangle that satisfy the filter set, served off a geospatial index.
type ListingSource interface {
	ListingsWithin(ctx context.Context, bbox BBox, f filter.Set) ([]Listing, error)
}

// Engine decides per request whether a viewport gets density clusters with
// rollup statistics or individual points.
type Engine struct {
	src ListingSource
	log zerolog.Logger
}

func NewEngine(src ListingSource, log zerolog.Logger) *Engine {
	return &Engine{src: src, log: log}
}

// Aggregate fetches the candidates for bbox+filter and either returns them
// all as outliers (zoom at/above IndividualZoom, or too few to cluster) or
// runs a density grouping pass. A malformed bbox yields an empty result,
// not an error; storage failures propagate.
func (e *Engine) Aggregate(ctx context.Context, bbox BBox, zoom int, f filter.Set) (Result, error) {
	empty := Result{Clusters: []Cluster{}, Outliers: []Point{}}
	if !bbox.Valid() {
		e.log.Debug().Str("bbox", bbox.String()).Msg("aggregate: degenerate bbox, returning empty result")
		return empty, nil
	}

	listings, err := e.src.ListingsWithin(ctx, bbox, f)
	if err != nil {
		return empty, fmt.Errorf("aggregate: fetch listings: %w", err)
	}
	if len(listings) == 0 {
		return empty, nil
	}

	if zoom >= IndividualZoom || len(listings) < MinClusterInput {
		out := make([]Point, 0, len(listings))
		for _, l := range listings {
			out = append(out, PointOf(l))
		}
		return Result{Clusters: []Cluster{}, Outliers: out}, nil
	}

	labels := dbscan(listings, EpsForZoom(zoom), MinSamples)

	members := map[int][]Listing{}
	outliers := make([]Point, 0)
	for i, label := range labels {
		if label == noise {
			outliers = append(outliers, PointOf(listings[i]))
			continue
		}
		members[label] = append(members[label], listings[i])
	}

	clusters := make([]Cluster, 0, len(members))
	for label, ms := range members {
		clusters = append(clusters, buildCluster(label, ms))
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].MemberIDs[0] < clusters[j].MemberIDs[0]
	})

	return Result{Clusters: clusters, Outliers: outliers}, nil
}

func buildCluster(label int, ms []Listing) Cluster {
	c := Cluster{
		ID:    fmt.Sprintf("cluster_%d", label),
		Label: fmt.Sprintf("Area %d", label+1),
		Count: len(ms),
	}

	first := ms[0]
	b := Bounds{North: first.Lat, South: first.Lat, East: first.Lng, West: first.Lng}
	var sumLat, sumLng float64
	priceMin, priceMax, priceSum := first.Price, first.Price, 0
	var bedsMin, bedsMax *int
	var scoreSum float64
	scoreN := 0

	for _, m := range ms {
		sumLat += m.Lat
		sumLng += m.Lng
		b.North = math.Max(b.North, m.Lat)
		b.South = math.Min(b.South, m.Lat)
		b.East = math.Max(b.East, m.Lng)
		b.West = math.Min(b.West, m.Lng)
		if m.Price < priceMin {
			priceMin = m.Price
		}
		if m.Price > priceMax {
			priceMax = m.Price
		}
		priceSum += m.Price
		if m.Bedrooms > 0 {
			if bedsMin == nil || m.Bedrooms < *bedsMin {
				v := m.Bedrooms
				bedsMin = &v
			}
			if bedsMax == nil || m.Bedrooms > *bedsMax {
				v := m.Bedrooms
				bedsMax = &v
			}
		}
		if m.Score != nil {
			scoreSum += *m.Score
			scoreN++
		}
		c.MemberIDs = append(c.MemberIDs, m.ID)
	}

	n := float64(len(ms))
	c.Center = LatLng{Lat: sumLat / n, Lng: sumLng / n}
	c.Bounds = b
	c.Stats = ClusterStats{
		PriceMin: priceMin,
		PriceMax: priceMax,
		PriceAvg: priceSum / len(ms),
		BedsMin:  bedsMin,
		BedsMax:  bedsMax,
	}
	if scoreN > 0 {
		avg := math.Round(scoreSum/float64(scoreN)*10) / 10
		c.Stats.AmenityAvg = &avg
	}
	sort.Slice(c.MemberIDs, func(i, j int) bool { return c.MemberIDs[i] < c.MemberIDs[j] })
	return c
}
