package query

import "strconv"

// DefaultListLimit is the page size used by the listing endpoint when
// the caller does not supply one.
const DefaultListLimit = 10

// Window is the (skip, limit) slice of a sorted result set.
type Window struct {
	Page  int
	Limit int
}

// ParseWindow coerces raw page/limit parameters into a valid window.
// Non-positive or non-numeric input falls back to page 1 and the given
// default limit.
func ParseWindow(pageStr, limitStr string, defaultLimit int) Window {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	return Window{Page: page, Limit: limit}
}

// Skip returns the number of documents to skip before this window.
func (w Window) Skip() int {
	return (w.Page - 1) * w.Limit
}

// PageRef points at an adjacent page in a paginated response.
type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination describes the adjacent pages of a windowed result.
// Next is present iff more results exist past this window; Prev is
// present iff this is not the first page.
type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

// Describe computes the pagination descriptor for a total count taken
// over the same predicate. The count may be slightly stale relative to
// the windowed fetch under concurrent writes; that is tolerated.
func (w Window) Describe(total int) Pagination {
	var pg Pagination
	if w.Skip()+w.Limit < total {
		pg.Next = &PageRef{Page: w.Page + 1, Limit: w.Limit}
	}
	if w.Skip() > 0 {
		pg.Prev = &PageRef{Page: w.Page - 1, Limit: w.Limit}
	}
	return pg
}
