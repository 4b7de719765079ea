package geo

import "math"

// Density grouping over lng/lat with a euclidean metric in degrees. A
// uniform grid with cell size eps bounds each neighborhood query to the
// 3x3 cells around a point, so a pass over n points stays near-linear for
// viewport-sized inputs.

const (
	unvisited = -2
	noise     = -1
)

type cellKey struct{ x, y int }

type grid struct {
	eps   float64
	cells map[cellKey][]int
}

func buildGrid(pts []Listing, eps float64) *grid {
	g := &grid{eps: eps, cells: make(map[cellKey][]int, len(pts))}
	for i, p := range pts {
		k := g.keyOf(p.Lng, p.Lat)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *grid) keyOf(lng, lat float64) cellKey {
	return cellKey{int(math.Floor(lng / g.eps)), int(math.Floor(lat / g.eps))}
}

// neighbors returns the indices within eps of pts[i], including i itself.
func (g *grid) neighbors(pts []Listing, i int) []int {
	p := pts[i]
	center := g.keyOf(p.Lng, p.Lat)
	var out []int
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, j := range g.cells[cellKey{center.x + dx, center.y + dy}] {
				q := pts[j]
				dLng := p.Lng - q.Lng
				dLat := p.Lat - q.Lat
				if dLng*dLng+dLat*dLat <= g.eps*g.eps {
					out = append(out, j)
				}
			}
		}
	}
	return out
}

// dbscan labels every point with a cluster id starting at 0, or noise.
// A point is core when its eps-neighborhood (itself included) holds at
// least minSamples points; clusters grow from core points, and border
// points join the first cluster that reaches them.
func dbscan(pts []Listing, eps float64, minSamples int) []int {
	labels := make([]int, len(pts))
	for i := range labels {
		labels[i] = unvisited
	}
	g := buildGrid(pts, eps)

	next := 0
	for i := range pts {
		if labels[i] != unvisited {
			continue
		}
		nbrs := g.neighbors(pts, i)
		if len(nbrs) < minSamples {
			labels[i] = noise
			continue
		}

		cluster := next
		next++
		labels[i] = cluster

		// Expand over the seed set; border points that were previously
		// marked noise get absorbed.
		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noise {
				labels[j] = cluster
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			jn := g.neighbors(pts, j)
			if len(jn) >= minSamples {
				queue = append(queue, jn...)
			}
		}
	}
	return labels
}
