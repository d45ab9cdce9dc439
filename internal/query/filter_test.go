package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSearchFilter_AllFields(t *testing.T) {
	values := url.Values{}
	values.Set("q", "garden view")
	values.Set("location", " Kilimani ")
	values.Set("propertyType", "apartment")
	values.Set("minPrice", "10000")
	values.Set("maxPrice", "50000")
	values.Set("bedrooms", "3")

	f := ParseSearchFilter(values)

	assert.Equal(t, "garden view", f.Query)
	assert.Equal(t, "Kilimani", f.Location)
	assert.Equal(t, "apartment", f.PropertyType)
	assert.NotNil(t, f.MinPrice)
	assert.Equal(t, 10000, *f.MinPrice)
	assert.NotNil(t, f.MaxPrice)
	assert.Equal(t, 50000, *f.MaxPrice)
	assert.NotNil(t, f.MinBedrooms)
	assert.Equal(t, 3, *f.MinBedrooms)
}

func TestParseSearchFilter_MalformedInputIsUnconstrained(t *testing.T) {
	values := url.Values{}
	values.Set("minPrice", "cheap")
	values.Set("maxPrice", "")
	values.Set("bedrooms", "three")
	values.Set("propertyType", "castle")

	f := ParseSearchFilter(values)

	assert.Nil(t, f.MinPrice)
	assert.Nil(t, f.MaxPrice)
	assert.Nil(t, f.MinBedrooms)
	assert.Empty(t, f.PropertyType)
}

func TestParseSearchFilter_Empty(t *testing.T) {
	f := ParseSearchFilter(url.Values{})
	assert.Equal(t, SearchFilter{}, f)
}

func TestParseSearchFilter_InvertedRangeAccepted(t *testing.T) {
	values := url.Values{}
	values.Set("minPrice", "5000")
	values.Set("maxPrice", "3000")

	f := ParseSearchFilter(values)

	// An impossible range is not an error; it just matches nothing.
	assert.Equal(t, 5000, *f.MinPrice)
	assert.Equal(t, 3000, *f.MaxPrice)
}
