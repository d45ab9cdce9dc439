package query

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Op identifies the kind of a predicate condition.
type Op string

const (
	OpEquals    Op = "eq"
	OpGT        Op = "gt"
	OpGTE       Op = "gte"
	OpLT        Op = "lt"
	OpLTE       Op = "lte"
	OpIn        Op = "in"
	OpSubstring Op = "substring" // case-insensitive
	OpText      Op = "text"      // full-text search, field is ignored
)

// Condition is one dimension of a predicate: a field, an operator and a
// value. The tagged-union form keeps the predicate independent of the
// store's query language until rendering.
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Predicate is a set of conditions combined with AND semantics.
type Predicate struct {
	Conditions []Condition
}

// NewPredicate returns an empty predicate, which renders as an
// unconstrained filter.
func NewPredicate() *Predicate {
	return &Predicate{}
}

// Add appends a condition and returns the predicate for chaining.
func (p *Predicate) Add(field string, op Op, value interface{}) *Predicate {
	p.Conditions = append(p.Conditions, Condition{Field: field, Op: op, Value: value})
	return p
}

// IsEmpty reports whether the predicate has no conditions.
func (p *Predicate) IsEmpty() bool {
	return len(p.Conditions) == 0
}

// ToBSON renders the predicate as a MongoDB filter document. Range
// operators on the same field are merged into a single sub-document.
func (p *Predicate) ToBSON() bson.M {
	filter := bson.M{}
	for _, c := range p.Conditions {
		switch c.Op {
		case OpEquals:
			filter[c.Field] = c.Value
		case OpGT, OpGTE, OpLT, OpLTE:
			sub, ok := filter[c.Field].(bson.M)
			if !ok {
				sub = bson.M{}
				filter[c.Field] = sub
			}
			sub["$"+string(c.Op)] = c.Value
		case OpIn:
			filter[c.Field] = bson.M{"$in": c.Value}
		case OpSubstring:
			filter[c.Field] = bson.M{"$regex": c.Value, "$options": "i"}
		case OpText:
			filter["$text"] = bson.M{"$search": c.Value}
		}
	}
	return filter
}

// FromSearchFilter builds the search predicate from a normalized filter
// set. When forceAvailable is true an isAvailable=true condition is
// always included (the public search path); the generic listing path
// passes false and lists everything matching the explicit parameters.
func FromSearchFilter(f SearchFilter, forceAvailable bool) *Predicate {
	p := &Predicate{}
	if forceAvailable {
		p.Add("isAvailable", OpEquals, true)
	}
	if f.Query != "" {
		p.Add("", OpText, f.Query)
	}
	if f.Location != "" {
		p.Add("location.area", OpSubstring, f.Location)
	}
	if f.MinPrice != nil {
		p.Add("price", OpGTE, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		// Not validated against MinPrice: an inverted range yields an
		// empty result set, which is acceptable.
		p.Add("price", OpLTE, *f.MaxPrice)
	}
	if f.PropertyType != "" {
		p.Add("propertyType", OpEquals, f.PropertyType)
	}
	if f.MinBedrooms != nil {
		// At-least semantics ("3+ bedrooms"), not exact match.
		p.Add("bedrooms", OpGTE, *f.MinBedrooms)
	}
	return p
}

// reservedParams are control parameters of the listing endpoint, never
// treated as field filters.
var reservedParams = map[string]bool{
	"select": true,
	"sort":   true,
	"page":   true,
	"limit":  true,
}

var listOps = map[string]Op{
	"gt":  OpGT,
	"gte": OpGTE,
	"lt":  OpLT,
	"lte": OpLTE,
	"in":  OpIn,
}

// ParseListQuery builds a predicate from the generic listing endpoint's
// parameters. Plain parameters become equality conditions; the
// `field[op]` form maps gt/gte/lt/lte/in onto range and set conditions.
// Values are coerced to numbers or booleans when they parse as such.
func ParseListQuery(values url.Values) *Predicate {
	p := &Predicate{}
	for key, vals := range values {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		raw := vals[0]

		field, opName, ok := splitOperatorKey(key)
		if !ok {
			p.Add(key, OpEquals, coerceValue(raw))
			continue
		}
		op, known := listOps[opName]
		if !known {
			continue // unknown operator, skip rather than error
		}
		if op == OpIn {
			parts := strings.Split(raw, ",")
			set := make([]interface{}, 0, len(parts))
			for _, part := range parts {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					set = append(set, coerceValue(trimmed))
				}
			}
			p.Add(field, OpIn, set)
			continue
		}
		p.Add(field, op, coerceValue(raw))
	}
	return p
}

// splitOperatorKey splits "price[gte]" into ("price", "gte", true).
func splitOperatorKey(key string) (field, op string, ok bool) {
	open := strings.Index(key, "[")
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

// coerceValue converts a raw query value into the most specific type
// it parses as, so numeric comparisons work against numeric fields.
func coerceValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
