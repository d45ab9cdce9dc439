package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// DefaultSort is applied when the caller specifies no sort expression:
// newest first.
const DefaultSort = "-createdAt"

// ParseSort turns a comma-separated sort expression ("-price,bedrooms")
// into a Mongo sort document. A leading '-' means descending. Empty
// input yields the default sort.
func ParseSort(expr string) bson.D {
	if expr == "" {
		expr = DefaultSort
	}
	var sort bson.D
	for _, field := range strings.Split(expr, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		dir := 1
		if strings.HasPrefix(field, "-") {
			dir = -1
			field = field[1:]
		}
		if field != "" {
			sort = append(sort, bson.E{Key: field, Value: dir})
		}
	}
	if len(sort) == 0 {
		return bson.D{{Key: "createdAt", Value: -1}}
	}
	return sort
}

// ParseSelect turns a comma-separated field list into a Mongo
// projection document. Empty input yields nil (all fields).
func ParseSelect(expr string) bson.D {
	if expr == "" {
		return nil
	}
	var projection bson.D
	for _, field := range strings.Split(expr, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	return projection
}
