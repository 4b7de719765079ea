package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// BBox is a viewport rectangle in lng/lat degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// ParseBBox parses the wire form "minLng,minLat,maxLng,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox: want 4 comma-separated values, got %d", len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox: bad value %q", p)
		}
		vals[i] = f
	}
	b := BBox{MinLng: vals[0], MinLat: vals[1], MaxLng: vals[2], MaxLat: vals[3]}
	if !b.Valid() {
		return BBox{}, fmt.Errorf("bbox: degenerate rectangle %s", s)
	}
	return b, nil
}

// Valid reports whether the rectangle has positive extent on both axes.
func (b BBox) Valid() bool {
	return b.MinLng < b.MaxLng && b.MinLat < b.MaxLat
}

// Contains reports whether the coordinate lies inside the rectangle.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// String renders the wire form.
func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}
