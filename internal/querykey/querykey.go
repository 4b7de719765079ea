package querykey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

// For normalizes a viewport query and computes a stable key for it.
// Coordinates are rounded to 5 decimals (~1m) so the float jitter of map
// gestures collapses onto one identity, and the filter set canonicalizes
// independent of group order.
func For(bbox geo.BBox, zoom int, f filter.Set) (canonical, key string) {
	canonical = fmt.Sprintf("bbox=%s,%s,%s,%s;zoom=%d;%s",
		round5(bbox.MinLng), round5(bbox.MinLat), round5(bbox.MaxLng), round5(bbox.MaxLat),
		zoom, f.Canonical())
	sum := sha256.Sum256([]byte(canonical))
	return canonical, hex.EncodeToString(sum[:16])
}

func round5(v float64) string {
	return fmt.Sprintf("%.5f", math.Round(v*1e5)/1e5)
}
