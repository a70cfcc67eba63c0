package explore

import (
	"cmp"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
)

// Search observes the listings of the feed whose titles fuzzily match
// query, best match first. It re-ranks whenever the selection changes.
func (f *Feed) Search(query string) flow.Flow[[]model.Listing] {
	query = strings.TrimSpace(query)
	if query == "" {
		return flow.Of[[]model.Listing](nil)
	}
	return flow.SwitchMap(f.Available(), func(n int) flow.Flow[[]model.Listing] {
		if n == 0 {
			return flow.Of[[]model.Listing](nil)
		}
		q := f.Query(0)
		q.Limit = n
		return flow.Map(f.listings.Listings(q), func(listings []model.Listing) []model.Listing {
			return rankByTitle(listings, query)
		})
	})
}

// rankByTitle keeps the listings whose title contains query's characters in
// order, ignoring case. Lower edit distance ranks first; ties keep the
// store's order.
func rankByTitle(listings []model.Listing, query string) []model.Listing {
	titles := make([]string, len(listings))
	for i, l := range listings {
		titles[i] = l.Title
	}

	ranks := fuzzy.RankFindFold(query, titles)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.OriginalIndex, b.OriginalIndex))
	})

	out := make([]model.Listing, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, listings[r.OriginalIndex])
	}
	return out
}
