package store

import (
	"fmt"
	"strings"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

// buildListingsQuery renders the parameterized listings SELECT for a
// viewport query. Filter groups OR together, conditions inside a group AND
// together, and the global flags AND onto the whole thing.
func buildListingsQuery(userID string, bbox geo.BBox, f filter.Set) (string, []any) {
	b := &argBuilder{args: []any{userID}} // $1 reserved for the status join

	conds := []string{"l.status = 'active'"}
	conds = append(conds, fmt.Sprintf("l.lng >= %s AND l.lng <= %s AND l.lat >= %s AND l.lat <= %s",
		b.add(bbox.MinLng), b.add(bbox.MaxLng), b.add(bbox.MinLat), b.add(bbox.MaxLat)))

	if gc := buildGroupConditions(b, f.Groups); gc != "" {
		conds = append(conds, gc)
	}
	if !f.IncludeHidden {
		conds = append(conds, "COALESCE(s.is_hidden, false) = false")
	}
	if f.FavoritesOnly {
		conds = append(conds, "COALESCE(s.is_favorite, false) = true")
	}
	if f.ListName != "" {
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM custom_list_items i JOIN custom_lists cl ON cl.id = i.list_id
                WHERE i.listing_id = l.id AND cl.user_id = $1 AND cl.name = %s)`, b.add(f.ListName)))
	}

	query := `SELECT ` + listingCols + `
        FROM listings l
        LEFT JOIN user_listing_status s ON s.listing_id = l.id AND s.user_id = $1
        WHERE ` + strings.Join(conds, "\n          AND ") + `
        ORDER BY l.first_seen DESC`
	return query, b.args
}

// buildGroupConditions returns "" when every group is unconstrained, which
// is the at-least-one-empty-group case meaning no filtering.
func buildGroupConditions(b *argBuilder, groups []filter.Group) string {
	var parts []string
	for _, g := range groups {
		var cs []string
		if g.MinPrice != nil {
			cs = append(cs, "l.price >= "+b.add(*g.MinPrice))
		}
		if g.MaxPrice != nil {
			cs = append(cs, "l.price <= "+b.add(*g.MaxPrice))
		}
		if g.MinBedrooms != nil {
			cs = append(cs, "l.bedrooms >= "+b.add(*g.MinBedrooms))
		}
		if g.MinSqft != nil {
			cs = append(cs, "l.sqft >= "+b.add(*g.MinSqft))
		}
		if g.MinScore != nil {
			cs = append(cs, "l.amenity_score >= "+b.add(*g.MinScore))
		}
		if len(g.Cities) > 0 {
			cs = append(cs, "l.city IN ("+b.addAll(g.Cities)+")")
		}
		if len(g.PropertyTypes) > 0 {
			cs = append(cs, "l.property_type IN ("+b.addAll(g.PropertyTypes)+")")
		}
		if len(cs) == 0 {
			// An empty group matches everything, so the whole OR is moot.
			return ""
		}
		parts = append(parts, "("+strings.Join(cs, " AND ")+")")
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

type argBuilder struct{ args []any }

func (b *argBuilder) add(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *argBuilder) addAll(vs []string) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = b.add(v)
	}
	return strings.Join(ph, ",")
}
