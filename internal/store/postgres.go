package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS cube;`,
		`CREATE EXTENSION IF NOT EXISTS earthdistance;`,
		`CREATE TABLE IF NOT EXISTS listings (
            id              BIGSERIAL PRIMARY KEY,
            mls_id          TEXT,
            address         TEXT NOT NULL,
            city            TEXT NOT NULL,
            lat             DOUBLE PRECISION NOT NULL,
            lng             DOUBLE PRECISION NOT NULL,
            price           INTEGER NOT NULL,
            bedrooms        SMALLINT,
            bathrooms       NUMERIC,
            sqft            INTEGER,
            property_type   TEXT,
            status          TEXT NOT NULL DEFAULT 'active',
            amenity_score   DOUBLE PRECISION,
            first_seen      TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_listings_geo ON listings USING GIST (ll_to_earth(lat, lng));`,
		`CREATE INDEX IF NOT EXISTS idx_listings_bbox ON listings (lng, lat);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);`,
		`CREATE TABLE IF NOT EXISTS user_listing_status (
            user_id      TEXT NOT NULL,
            listing_id   BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
            is_favorite  BOOLEAN NOT NULL DEFAULT false,
            is_hidden    BOOLEAN NOT NULL DEFAULT false,
            updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (user_id, listing_id)
        );`,
		`CREATE TABLE IF NOT EXISTS custom_lists (
            id         BIGSERIAL PRIMARY KEY,
            user_id    TEXT NOT NULL,
            name       TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            UNIQUE (user_id, name)
        );`,
		`CREATE TABLE IF NOT EXISTS custom_list_items (
            list_id    BIGINT NOT NULL REFERENCES custom_lists(id) ON DELETE CASCADE,
            listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
            PRIMARY KEY (list_id, listing_id)
        );`,
		`CREATE TABLE IF NOT EXISTS pois (
            id        BIGSERIAL PRIMARY KEY,
            osm_id    BIGINT UNIQUE,
            type      TEXT NOT NULL,
            name      TEXT,
            geometry  JSONB NOT NULL
        );`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

const listingCols = `l.id, l.lat, l.lng, l.price, COALESCE(l.bedrooms, 0), COALESCE(l.sqft, 0),
    l.city, COALESCE(l.property_type, ''), l.address, l.amenity_score,
    COALESCE(s.is_favorite, false), COALESCE(s.is_hidden, false)`

// ListingsWithin answers the geospatial collaborator contract: every active
// listing inside the rectangle that the filter set accepts, scoped to the
// user's favorite/hidden status. Rows come back in first_seen order.
func (s *Store) ListingsWithin(ctx context.Context, userID string, bbox geo.BBox, f filter.Set) ([]geo.Listing, error) {
	query, args := buildListingsQuery(userID, bbox, f)
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []geo.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// EachListingWithin streams the same result set row by row so large
// viewports never materialize fully in memory. fn returning an error stops
// the scan and surfaces that error.
func (s *Store) EachListingWithin(ctx context.Context, userID string, bbox geo.BBox, f filter.Set, fn func(geo.Listing) error) error {
	query, args := buildListingsQuery(userID, bbox, f)
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanListing(rows *sql.Rows) (geo.Listing, error) {
	var l geo.Listing
	var score sql.NullFloat64
	err := rows.Scan(&l.ID, &l.Lat, &l.Lng, &l.Price, &l.Bedrooms, &l.Sqft,
		&l.City, &l.PropertyType, &l.Address, &score, &l.IsFavorite, &l.IsHidden)
	if err != nil {
		return geo.Listing{}, err
	}
	if score.Valid {
		v := score.Float64
		l.Score = &v
	}
	return l, nil
}

// POI is a point-of-interest record with GeoJSON geometry.
type POI struct {
	ID       int64           `json:"id"`
	OSMID    int64           `json:"osm_id"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
}

// FetchPOIsByIDs batch-fetches POIs in one query. Unknown ids are simply
// absent from the result; callers cap the id count before calling.
func (s *Store) FetchPOIsByIDs(ctx context.Context, ids []int64) ([]POI, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	q := `SELECT id, COALESCE(osm_id, 0), type, COALESCE(name, ''), geometry FROM pois WHERE id IN (` +
		strings.Join(ph, ",") + `) ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []POI
	for rows.Next() {
		var p POI
		var geom []byte
		if err := rows.Scan(&p.ID, &p.OSMID, &p.Type, &p.Name, &geom); err != nil {
			return nil, err
		}
		p.Geometry = json.RawMessage(geom)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Scope binds a user id so the store satisfies geo.ListingSource.
func (s *Store) Scope(userID string) *UserScope { return &UserScope{s: s, userID: userID} }

type UserScope struct {
	s      *Store
	userID string
}

func (u *UserScope) ListingsWithin(ctx context.Context, bbox geo.BBox, f filter.Set) ([]geo.Listing, error) {
	if u.s == nil {
		return nil, errors.New("nil store")
	}
	return u.s.ListingsWithin(ctx, u.userID, bbox, f)
}
