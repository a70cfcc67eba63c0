package model

import "cmp"

// DefaultPageLimit is the page size used when a query leaves Limit unset.
const DefaultPageLimit = 20

// ListingQuery is a cursor over listings. It is a comparable value so it can
// key the tiling engine's page map.
type ListingQuery struct {
	// PropertyType filters by property type. Empty matches every listing.
	PropertyType string

	// Favorites restricts results to listings marked as favorite.
	Favorites bool

	Limit  int
	Offset int
}

// Next returns the cursor for the page after q.
func (q ListingQuery) Next() ListingQuery {
	q.Limit = pageLimit(q.Limit)
	q.Offset += q.Limit
	return q
}

// Previous returns the cursor for the page before q, or false when q is the
// first page.
func (q ListingQuery) Previous() (ListingQuery, bool) {
	q.Limit = pageLimit(q.Limit)
	if q.Offset-q.Limit < 0 {
		return ListingQuery{}, false
	}
	q.Offset -= q.Limit
	return q, true
}

// SameLane reports whether q and o differ only by their paging window.
func (q ListingQuery) SameLane(o ListingQuery) bool {
	return q.PropertyType == o.PropertyType && q.Favorites == o.Favorites
}

// CompareListingQueries orders listing cursors by offset.
func CompareListingQueries(a, b ListingQuery) int {
	return cmp.Compare(a.Offset, b.Offset)
}

// MediaQuery is a cursor over the media of a single listing.
type MediaQuery struct {
	ListingID string
	Limit     int
	Offset    int
}

// Next returns the cursor for the page after q.
func (q MediaQuery) Next() MediaQuery {
	q.Limit = pageLimit(q.Limit)
	q.Offset += q.Limit
	return q
}

// Previous returns the cursor for the page before q, or false when q is the
// first page.
func (q MediaQuery) Previous() (MediaQuery, bool) {
	q.Limit = pageLimit(q.Limit)
	if q.Offset-q.Limit < 0 {
		return MediaQuery{}, false
	}
	q.Offset -= q.Limit
	return q, true
}

// CompareMediaQueries orders media cursors by offset.
func CompareMediaQueries(a, b MediaQuery) int {
	return cmp.Compare(a.Offset, b.Offset)
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	return limit
}
