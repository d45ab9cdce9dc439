package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func intPtr(n int) *int { return &n }

func TestFromSearchFilter_ForcedAvailability(t *testing.T) {
	p := FromSearchFilter(SearchFilter{}, true)
	filter := p.ToBSON()
	assert.Equal(t, true, filter["isAvailable"])

	p = FromSearchFilter(SearchFilter{}, false)
	assert.True(t, p.IsEmpty())
	assert.Empty(t, p.ToBSON())
}

func TestFromSearchFilter_FullFilter(t *testing.T) {
	f := SearchFilter{
		Query:        "balcony",
		Location:     "westlands",
		PropertyType: "studio",
		MinPrice:     intPtr(10000),
		MaxPrice:     intPtr(30000),
		MinBedrooms:  intPtr(2),
	}

	filter := FromSearchFilter(f, true).ToBSON()

	assert.Equal(t, bson.M{"$search": "balcony"}, filter["$text"])
	assert.Equal(t, bson.M{"$regex": "westlands", "$options": "i"}, filter["location.area"])
	assert.Equal(t, bson.M{"$gte": 10000, "$lte": 30000}, filter["price"])
	assert.Equal(t, "studio", filter["propertyType"])
	// At-least semantics for bedrooms.
	assert.Equal(t, bson.M{"$gte": 2}, filter["bedrooms"])
	assert.Equal(t, true, filter["isAvailable"])
}

func TestFromSearchFilter_IndependentPriceBounds(t *testing.T) {
	onlyMin := FromSearchFilter(SearchFilter{MinPrice: intPtr(500)}, false).ToBSON()
	assert.Equal(t, bson.M{"$gte": 500}, onlyMin["price"])

	onlyMax := FromSearchFilter(SearchFilter{MaxPrice: intPtr(900)}, false).ToBSON()
	assert.Equal(t, bson.M{"$lte": 900}, onlyMax["price"])
}

func TestFromSearchFilter_InvertedRangeRenders(t *testing.T) {
	f := SearchFilter{MinPrice: intPtr(5000), MaxPrice: intPtr(3000)}
	filter := FromSearchFilter(f, false).ToBSON()
	// Rendered as-is: the store returns an empty set, not an error.
	assert.Equal(t, bson.M{"$gte": 5000, "$lte": 3000}, filter["price"])
}

func TestParseListQuery_EqualityAndOperators(t *testing.T) {
	values := url.Values{}
	values.Set("propertyType", "house")
	values.Set("price[gte]", "20000")
	values.Set("price[lte]", "80000")
	values.Set("bedrooms[gt]", "1")
	values.Set("isFeatured", "true")

	filter := ParseListQuery(values).ToBSON()

	assert.Equal(t, "house", filter["propertyType"])
	assert.Equal(t, bson.M{"$gte": int64(20000), "$lte": int64(80000)}, filter["price"])
	assert.Equal(t, bson.M{"$gt": int64(1)}, filter["bedrooms"])
	assert.Equal(t, true, filter["isFeatured"])
}

func TestParseListQuery_InOperator(t *testing.T) {
	values := url.Values{}
	values.Set("propertyType[in]", "apartment,studio")

	filter := ParseListQuery(values).ToBSON()

	assert.Equal(t, bson.M{"$in": []interface{}{"apartment", "studio"}}, filter["propertyType"])
}

func TestParseListQuery_ReservedParamsExcluded(t *testing.T) {
	values := url.Values{}
	values.Set("select", "title,price")
	values.Set("sort", "-price")
	values.Set("page", "2")
	values.Set("limit", "5")
	values.Set("bedrooms", "2")

	p := ParseListQuery(values)

	assert.Len(t, p.Conditions, 1)
	assert.Equal(t, bson.M{"bedrooms": int64(2)}, p.ToBSON())
}

func TestParseListQuery_UnknownOperatorSkipped(t *testing.T) {
	values := url.Values{}
	values.Set("price[near]", "100")

	p := ParseListQuery(values)
	assert.True(t, p.IsEmpty())
}

func TestPredicate_ToBSON_Substring(t *testing.T) {
	p := &Predicate{}
	p.Add("location.area", OpSubstring, "Kileleshwa")
	assert.Equal(t, bson.M{"location.area": bson.M{"$regex": "Kileleshwa", "$options": "i"}}, p.ToBSON())
}
