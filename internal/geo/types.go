package geo

// Listing is the storage-layer projection the engine consumes.
type Listing struct {
	ID           int64
	Lat          float64
	Lng          float64
	Price        int
	Bedrooms     int
	Sqft         int
	City         string
	PropertyType string
	Address      string
	Score        *float64
	IsFavorite   bool
	IsHidden     bool
}

// Point is the individual-listing wire projection used for outliers and
// for the point stream. Immutable once emitted for a given query.
type Point struct {
	ID         int64    `json:"id"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Price      int      `json:"price"`
	Bedrooms   int      `json:"bedrooms"`
	Address    string   `json:"address,omitempty"`
	Score      *float64 `json:"amenity_score"`
	IsFavorite bool     `json:"is_favorite"`
}

// PointOf projects a stored listing onto the wire shape.
func PointOf(l Listing) Point {
	return Point{
		ID:         l.ID,
		Lat:        l.Lat,
		Lng:        l.Lng,
		Price:      l.Price,
		Bedrooms:   l.Bedrooms,
		Address:    l.Address,
		Score:      l.Score,
		IsFavorite: l.IsFavorite,
	}
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// ClusterStats are rollups computed from a cluster's members only.
// Bedroom and amenity fields are nil when no member carries the attribute.
type ClusterStats struct {
	PriceMin   int      `json:"price_min"`
	PriceMax   int      `json:"price_max"`
	PriceAvg   int      `json:"price_avg"`
	BedsMin    *int     `json:"beds_min"`
	BedsMax    *int     `json:"beds_max"`
	AmenityAvg *float64 `json:"amenity_avg"`
}

// Cluster is an aggregated group of nearby listings.
type Cluster struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	Center    LatLng       `json:"center"`
	Bounds    Bounds       `json:"bounds"`
	Count     int          `json:"count"`
	Stats     ClusterStats `json:"stats"`
	MemberIDs []int64      `json:"listing_ids"`
}

// Result is the aggregation output. A listing id appears in at most one of
// Clusters[*].MemberIDs or Outliers.
type Result struct {
	Clusters []Cluster `json:"clusters"`
	Outliers []Point   `json:"outliers"`
}
