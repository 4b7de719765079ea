package store

import (
	"strings"
	"testing"

	"github.com/yourorg/map-api/internal/filter"
	"github.com/yourorg/map-api/internal/geo"
)

func intp(v int) *int { return &v }

func queryBBox() geo.BBox {
	return geo.BBox{MinLng: -79.6, MinLat: 43.5, MaxLng: -79.1, MaxLat: 43.9}
}

func TestBuildListingsQueryBaseline(t *testing.T) {
	q, args := buildListingsQuery("u1", queryBBox(), filter.Set{Groups: []filter.Group{{}}})

	if !strings.Contains(q, "l.status = 'active'") {
		t.Error("query must restrict to active listings")
	}
	if !strings.Contains(q, "l.lng >= $2 AND l.lng <= $3 AND l.lat >= $4 AND l.lat <= $5") {
		t.Errorf("bbox range predicate missing or misnumbered:\n%s", q)
	}
	if !strings.Contains(q, "COALESCE(s.is_hidden, false) = false") {
		t.Error("hidden listings must be excluded by default")
	}
	if strings.Contains(q, "is_favorite") {
		t.Error("favorites predicate should only appear when requested")
	}
	if !strings.Contains(q, "ORDER BY l.first_seen DESC") {
		t.Error("missing stable ordering")
	}

	want := []any{"u1", -79.6, -79.1, 43.5, 43.9}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, args[i], want[i])
		}
	}
}

func TestBuildListingsQueryGroupsOR(t *testing.T) {
	f := filter.Set{Groups: []filter.Group{
		{MinPrice: intp(500000), MinBedrooms: intp(3)},
		{Cities: []string{"Hamilton", "Toronto"}},
	}}
	q, args := buildListingsQuery("u1", queryBBox(), f)

	if !strings.Contains(q, "(l.price >= $6 AND l.bedrooms >= $7)") {
		t.Errorf("first group should AND its conditions:\n%s", q)
	}
	if !strings.Contains(q, "OR (l.city IN ($8,$9))") {
		t.Errorf("groups should OR together:\n%s", q)
	}
	if len(args) != 9 {
		t.Errorf("expected 9 args, got %d: %v", len(args), args)
	}
	if args[7] != "Hamilton" || args[8] != "Toronto" {
		t.Errorf("city args misplaced: %v", args[7:])
	}
}

func TestBuildListingsQueryEmptyGroupDissolvesFilter(t *testing.T) {
	// One unconstrained group ORed with anything matches everything, so no
	// group predicate should be emitted at all.
	f := filter.Set{Groups: []filter.Group{
		{MinPrice: intp(500000)},
		{},
	}}
	q, args := buildListingsQuery("u1", queryBBox(), f)

	if strings.Contains(q, "l.price") {
		t.Errorf("group predicate should dissolve when an empty group is present:\n%s", q)
	}
	if len(args) != 5 {
		t.Errorf("expected only user+bbox args, got %v", args)
	}
}

func TestBuildListingsQueryFlags(t *testing.T) {
	f := filter.Set{
		Groups:        []filter.Group{{}},
		IncludeHidden: true,
		FavoritesOnly: true,
	}
	q, _ := buildListingsQuery("u1", queryBBox(), f)

	if strings.Contains(q, "is_hidden") {
		t.Error("include_hidden should drop the hidden predicate")
	}
	if !strings.Contains(q, "COALESCE(s.is_favorite, false) = true") {
		t.Error("favorites_only predicate missing")
	}
}

func TestBuildListingsQueryListScope(t *testing.T) {
	f := filter.Set{Groups: []filter.Group{{}}, ListName: "weekend-tour"}
	q, args := buildListingsQuery("u1", queryBBox(), f)

	if !strings.Contains(q, "custom_list_items") || !strings.Contains(q, "cl.name = $6") {
		t.Errorf("list scope subquery missing:\n%s", q)
	}
	if args[len(args)-1] != "weekend-tour" {
		t.Errorf("list name arg missing: %v", args)
	}
	if !strings.Contains(q, "cl.user_id = $1") {
		t.Error("list scope must be bound to the requesting user")
	}
}
