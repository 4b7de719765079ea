package filter

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Set is the unified filter representation: a list of predicate groups
// combined with OR, plus global flags combined with AND. An empty group
// matches everything, and a Set always carries at least one group after
// Normalize.
type Set struct {
	Groups        []Group `json:"groups"`
	IncludeHidden bool    `json:"include_hidden"`
	FavoritesOnly bool    `json:"favorites_only"`
	ListName      string  `json:"list_name,omitempty"`
}

// Group is one OR-branch. Fields within a group combine with AND;
// multi-select fields (Cities, PropertyTypes) are OR within the field.
type Group struct {
	MinPrice      *int     `json:"min_price,omitempty"`
	MaxPrice      *int     `json:"max_price,omitempty"`
	MinBedrooms   *int     `json:"min_bedrooms,omitempty"`
	MinSqft       *int     `json:"min_sqft,omitempty"`
	MinScore      *int     `json:"min_score,omitempty"`
	Cities        []string `json:"cities,omitempty"`
	PropertyTypes []string `json:"property_types,omitempty"`
}

// Normalize guarantees the at-least-one-group invariant and sorts
// multi-select fields so equivalent sets canonicalize identically.
func (s *Set) Normalize() {
	if len(s.Groups) == 0 {
		s.Groups = []Group{{}}
	}
	for i := range s.Groups {
		sort.Strings(s.Groups[i].Cities)
		sort.Strings(s.Groups[i].PropertyTypes)
	}
}

// Parse decodes a Set from a JSON body. Empty input yields the
// unconstrained set rather than an error.
func Parse(body []byte) (Set, error) {
	var s Set
	if len(body) > 0 {
		if err := json.Unmarshal(body, &s); err != nil {
			return Set{}, err
		}
	}
	s.Normalize()
	return s, nil
}

// FromQuery builds a single-group Set from flat query parameters, the
// legacy schema. The grouped form is a strict superset, so the flat form
// maps onto one group plus the global flags.
func FromQuery(q url.Values) Set {
	var g Group
	g.MinPrice = qInt(q, "min_price")
	g.MaxPrice = qInt(q, "max_price")
	g.MinBedrooms = qInt(q, "min_bedrooms")
	g.MinSqft = qInt(q, "min_sqft")
	g.MinScore = qInt(q, "min_score")
	g.Cities = qList(q, "cities")
	g.PropertyTypes = qList(q, "property_types")

	s := Set{
		Groups:        []Group{g},
		IncludeHidden: q.Get("include_hidden") == "true",
		FavoritesOnly: q.Get("favorites_only") == "true",
		ListName:      q.Get("list_name"),
	}
	s.Normalize()
	return s
}

// Subject is the listing projection a Set evaluates against.
type Subject struct {
	Price        int
	Bedrooms     int
	Sqft         int
	City         string
	PropertyType string
	Score        *float64
	IsFavorite   bool
	IsHidden     bool
}

// Matches reports whether any group accepts the subject and the global
// flags allow it.
func (s Set) Matches(sub Subject) bool {
	if sub.IsHidden && !s.IncludeHidden {
		return false
	}
	if s.FavoritesOnly && !sub.IsFavorite {
		return false
	}
	groups := s.Groups
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		if g.matches(sub) {
			return true
		}
	}
	return false
}

func (g Group) matches(sub Subject) bool {
	if g.MinPrice != nil && sub.Price < *g.MinPrice {
		return false
	}
	if g.MaxPrice != nil && sub.Price > *g.MaxPrice {
		return false
	}
	if g.MinBedrooms != nil && sub.Bedrooms < *g.MinBedrooms {
		return false
	}
	if g.MinSqft != nil && sub.Sqft < *g.MinSqft {
		return false
	}
	if g.MinScore != nil {
		if sub.Score == nil || *sub.Score < float64(*g.MinScore) {
			return false
		}
	}
	if len(g.Cities) > 0 && !contains(g.Cities, sub.City) {
		return false
	}
	if len(g.PropertyTypes) > 0 && !contains(g.PropertyTypes, sub.PropertyType) {
		return false
	}
	return true
}

// Canonical renders a stable textual form of the set: groups are sorted by
// their own canonical text so reordering groups does not change identity.
func (s Set) Canonical() string {
	parts := make([]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		parts = append(parts, g.canonical())
	}
	sort.Strings(parts)
	var b strings.Builder
	b.WriteString(strings.Join(parts, "|"))
	b.WriteString(";hidden=")
	b.WriteString(strconv.FormatBool(s.IncludeHidden))
	b.WriteString(";fav=")
	b.WriteString(strconv.FormatBool(s.FavoritesOnly))
	if s.ListName != "" {
		b.WriteString(";list=")
		b.WriteString(s.ListName)
	}
	return b.String()
}

func (g Group) canonical() string {
	kv := make([]string, 0, 7)
	add := func(k string, v *int) {
		if v != nil {
			kv = append(kv, k+"="+strconv.Itoa(*v))
		}
	}
	add("pmin", g.MinPrice)
	add("pmax", g.MaxPrice)
	add("beds", g.MinBedrooms)
	add("sqft", g.MinSqft)
	add("score", g.MinScore)
	if len(g.Cities) > 0 {
		cs := append([]string(nil), g.Cities...)
		sort.Strings(cs)
		kv = append(kv, "cities="+strings.Join(cs, ","))
	}
	if len(g.PropertyTypes) > 0 {
		ts := append([]string(nil), g.PropertyTypes...)
		sort.Strings(ts)
		kv = append(kv, "types="+strings.Join(ts, ","))
	}
	return strings.Join(kv, "&")
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func qInt(q url.Values, k string) *int {
	v := q.Get(k)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &i
}

func qList(q url.Values, k string) []string {
	var out []string
	for _, raw := range q[k] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
