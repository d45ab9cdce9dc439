// Package query implements the property search pipeline: normalizing
// raw request parameters into typed filters, building backend-agnostic
// predicates, and computing pagination windows.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"rentsafi/server/internal/models"
)

// SearchFilter is the normalized, typed filter set for property search.
// Each field is either absent (nil / empty string) or valid; malformed
// input degrades to "unconstrained" rather than erroring, to keep
// search permissive.
type SearchFilter struct {
	Query        string
	Location     string
	PropertyType string
	MinPrice     *int
	MaxPrice     *int
	MinBedrooms  *int
}

// ParseSearchFilter builds a SearchFilter from raw query parameters.
// It is a pure transform and never fails: unparseable numbers and
// unknown property types are simply omitted.
func ParseSearchFilter(values url.Values) SearchFilter {
	f := SearchFilter{
		Query:    values.Get("q"),
		Location: strings.TrimSpace(values.Get("location")),
	}

	if pt := values.Get("propertyType"); models.ValidPropertyType(pt) {
		f.PropertyType = pt
	}

	f.MinPrice = parseOptionalInt(values.Get("minPrice"))
	f.MaxPrice = parseOptionalInt(values.Get("maxPrice"))
	f.MinBedrooms = parseOptionalInt(values.Get("bedrooms"))

	return f
}

func parseOptionalInt(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
