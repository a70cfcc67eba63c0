// Package explore composes the repositories into the views the CLI browses:
// a tiled listing feed decorated with media and favorite data, and a
// listing detail.
package explore

import (
	"slices"

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
	"github.com/tunjid/listingApp-sub001/internal/tiling"
)

// ListingSource is implemented by [repository.ListingRepository].
type ListingSource interface {
	Listing(id string) flow.Flow[*model.Listing]
	Listings(q model.ListingQuery) flow.Flow[[]model.Listing]
	Available(q model.ListingQuery) flow.Flow[int]
	IsFavorite(id string) flow.Flow[bool]
}

// MediaSource is implemented by [repository.MediaRepository].
type MediaSource interface {
	Media(q model.MediaQuery) flow.Flow[[]model.Media]
	Available(listingID string) flow.Flow[int]
	Cover(listingID string) flow.Flow[*model.Media]
}

// UserSource is implemented by [repository.UserRepository].
type UserSource interface {
	User(id string) flow.Flow[*model.User]
}

// Options configures a [Feed].
type Options struct {
	Limit        int // listings per page
	OnCount      int // live pages around the pivot
	OffCount     int // cached pages around the pivot
	PropertyType string
	Favorites    bool
}

// Item is one row of the feed.
type Item struct {
	Index      int
	Listing    model.Listing
	MediaCount int
	CoverURL   string
	Favorite   bool
}

// Detail is a listing with its host, first page of media and favorite flag.
type Detail struct {
	Listing    model.Listing
	Host       *model.User // nil until the host is synced
	Media      []model.Media
	MediaCount int
	Favorite   bool
}

// Feed builds the explore views. Create one with [NewFeed].
type Feed struct {
	listings ListingSource
	media    MediaSource
	users    UserSource
	opts     Options
}

// NewFeed creates a Feed. Zero option counts fall back to defaults.
func NewFeed(listings ListingSource, media MediaSource, users UserSource, opts Options) *Feed {
	if opts.Limit <= 0 {
		opts.Limit = model.DefaultPageLimit
	}
	if opts.OnCount <= 0 {
		opts.OnCount = 3
	}
	opts.OffCount = max(opts.OffCount, opts.OnCount)
	return &Feed{listings: listings, media: media, users: users, opts: opts}
}

// Query returns the cursor of the given zero-based page.
func (f *Feed) Query(page int) model.ListingQuery {
	return model.ListingQuery{
		PropertyType: f.opts.PropertyType,
		Favorites:    f.opts.Favorites,
		Limit:        f.opts.Limit,
		Offset:       max(page, 0) * f.opts.Limit,
	}
}

// Available observes how many listings the feed selects.
func (f *Feed) Available() flow.Flow[int] {
	return f.listings.Available(f.Query(0))
}

func (f *Feed) pivotRequest() tiling.PivotRequest[model.ListingQuery] {
	return tiling.PivotRequest[model.ListingQuery]{
		OnCount:       f.opts.OnCount,
		OffCount:      f.opts.OffCount,
		Comparator:    model.CompareListingQueries,
		PreviousQuery: model.ListingQuery.Previous,
		NextQuery:     model.ListingQuery.Next,
	}
}

// Items tiles the listings around each pivot and joins every listing with
// its media count, cover and favorite flag. Item.Index is the listing's
// position in the whole result, not in the window.
func (f *Feed) Items(pivots flow.Flow[model.ListingQuery]) flow.Flow[[]Item] {
	tiled := tiling.Tile(pivots, f.pivotRequest(), f.listings.Listings, func(l model.Listing) string {
		return l.ID
	})
	entries := flow.DistinctUntilChanged(flow.Map(tiled, positions), slices.Equal[[]entry])
	return flow.JoinLatest(entries, func(e entry) flow.Flow[func(*Item)] {
		return f.decorations(e.listing)
	}, func(_ int, e entry, apply func(*Item)) Item {
		item := Item{Index: e.index, Listing: e.listing}
		apply(&item)
		return item
	})
}

// entry is a tiled listing with its absolute position.
type entry struct {
	index   int
	listing model.Listing
}

func positions(l tiling.List[model.ListingQuery, model.Listing]) []entry {
	seen := make(map[string]struct{}, len(l.Items))
	out := make([]entry, 0, len(l.Items))
	for _, p := range l.Pages {
		for i, listing := range p.Items {
			if _, dup := seen[listing.ID]; dup {
				continue
			}
			seen[listing.ID] = struct{}{}
			out = append(out, entry{index: p.Query.Offset + i, listing: listing})
		}
	}
	return out
}

func (f *Feed) decorations(l model.Listing) flow.Flow[func(*Item)] {
	return combine(
		flow.Map(f.media.Available(l.ID), func(n int) func(*Item) {
			return func(it *Item) { it.MediaCount = n }
		}),
		flow.Map(f.media.Cover(l.ID), func(m *model.Media) func(*Item) {
			return func(it *Item) {
				if m != nil {
					it.CoverURL = m.URL
				}
			}
		}),
		flow.Map(f.listings.IsFavorite(l.ID), func(fav bool) func(*Item) {
			return func(it *Item) { it.Favorite = fav }
		}),
	)
}

// Detail observes a listing with its host, first media page and favorite
// flag. It emits nil while the listing does not exist.
func (f *Feed) Detail(listingID string) flow.Flow[*Detail] {
	return flow.SwitchMap(f.listings.Listing(listingID), func(l *model.Listing) flow.Flow[*Detail] {
		if l == nil {
			return flow.Of[*Detail](nil)
		}
		listing := *l
		parts := combine(
			flow.Map(f.users.User(listing.HostID), func(u *model.User) func(*Detail) {
				return func(d *Detail) { d.Host = u }
			}),
			flow.Map(f.media.Media(model.MediaQuery{ListingID: listing.ID, Limit: f.opts.Limit}), func(m []model.Media) func(*Detail) {
				return func(d *Detail) { d.Media = m }
			}),
			flow.Map(f.media.Available(listing.ID), func(n int) func(*Detail) {
				return func(d *Detail) { d.MediaCount = n }
			}),
			flow.Map(f.listings.IsFavorite(listing.ID), func(fav bool) func(*Detail) {
				return func(d *Detail) { d.Favorite = fav }
			}),
		)
		return flow.Map(parts, func(apply func(*Detail)) *Detail {
			d := &Detail{Listing: listing}
			apply(d)
			return d
		})
	})
}

// combine merges field setters from several flows into one setter that
// applies the latest of each.
func combine[V any](setters ...flow.Flow[func(*V)]) flow.Flow[func(*V)] {
	return flow.Map(flow.CombineLatest(setters...), func(latest []func(*V)) func(*V) {
		return func(v *V) {
			for _, set := range latest {
				set(v)
			}
		}
	})
}
