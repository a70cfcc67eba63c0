package explore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
	"github.com/tunjid/listingApp-sub001/internal/repository"
	"github.com/tunjid/listingApp-sub001/internal/store"
)

type noopSyncer struct{}

func (noopSyncer) RequestSync() {}

func newTestFeed(t *testing.T, opts Options) (*Feed, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "listings.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.SaveSnapshot(context.Background(), store.Snapshot{
		Users: []model.User{{ID: "h1", FirstName: "Ada"}},
		Listings: []model.Listing{
			{ID: "a", HostID: "h1", Title: "Apple"},
			{ID: "b", HostID: "h1", Title: "Banana"},
			{ID: "c", HostID: "h1", Title: "Cherry"},
			{ID: "d", HostID: "h1", Title: "Date"},
			{ID: "e", HostID: "missing-host", Title: "Elder"},
		},
		Media: []model.Media{
			{ID: "d1", ListingID: "d", URL: "https://img/d1"},
			{ID: "d2", ListingID: "d", URL: "https://img/d2"},
			{ID: "c1", ListingID: "c", URL: "https://img/c1"},
		},
	}, false)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if err := s.SetFavorite(context.Background(), "c", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}

	listings := repository.NewListingRepository(s, noopSyncer{})
	media := repository.NewMediaRepository(s, noopSyncer{})
	users := repository.NewUserRepository(s, noopSyncer{})
	return NewFeed(listings, media, users, opts), s
}

// latest collects f in the background and keeps its most recent value.
type latest[T any] struct {
	mu  sync.Mutex
	v   T
	set bool
}

func collect[T any](t *testing.T, f flow.Flow[T]) *latest[T] {
	t.Helper()
	l := &latest[T]{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f(ctx, func(v T) {
			l.mu.Lock()
			l.v, l.set = v, true
			l.mu.Unlock()
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func (l *latest[T]) waitUntil(t *testing.T, what string, cond func(T) bool) T {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		l.mu.Lock()
		v, set := l.v, l.set
		l.mu.Unlock()
		if set && cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; latest = %+v", what, v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewFeed_Defaults(t *testing.T) {
	f := NewFeed(nil, nil, nil, Options{OffCount: 1})
	if f.opts.Limit != model.DefaultPageLimit || f.opts.OnCount != 3 || f.opts.OffCount != 3 {
		t.Errorf("opts = %+v", f.opts)
	}
}

func TestFeed_Query(t *testing.T) {
	f := NewFeed(nil, nil, nil, Options{Limit: 10, PropertyType: "Entire home", Favorites: true})
	q := f.Query(3)
	want := model.ListingQuery{PropertyType: "Entire home", Favorites: true, Limit: 10, Offset: 30}
	if q != want {
		t.Errorf("Query(3) = %+v, want %+v", q, want)
	}
	if f.Query(-1).Offset != 0 {
		t.Errorf("Query(-1).Offset = %d, want 0", f.Query(-1).Offset)
	}
}

func TestFeed_ItemsDecorated(t *testing.T) {
	feed, _ := newTestFeed(t, Options{Limit: 2, OnCount: 2, OffCount: 2})
	items := collect(t, feed.Items(flow.Of(feed.Query(0))))

	got := items.waitUntil(t, "two pages", func(v []Item) bool { return len(v) == 4 })

	wantTitles := []string{"Elder", "Date", "Cherry", "Banana"}
	for i, want := range wantTitles {
		if got[i].Listing.Title != want {
			t.Errorf("item[%d] = %q, want %q", i, got[i].Listing.Title, want)
		}
		if got[i].Index != i {
			t.Errorf("item[%d].Index = %d", i, got[i].Index)
		}
	}

	date := got[1]
	if date.MediaCount != 2 || date.CoverURL != "https://img/d1" {
		t.Errorf("Date decorations = %+v", date)
	}
	if cherry := got[2]; !cherry.Favorite || cherry.MediaCount != 1 {
		t.Errorf("Cherry decorations = %+v", cherry)
	}
	if elder := got[0]; elder.MediaCount != 0 || elder.CoverURL != "" || elder.Favorite {
		t.Errorf("Elder decorations = %+v", elder)
	}
}

func TestFeed_ItemsIndexIsAbsolute(t *testing.T) {
	feed, _ := newTestFeed(t, Options{Limit: 2, OnCount: 1, OffCount: 1})
	items := collect(t, feed.Items(flow.Of(feed.Query(1))))

	got := items.waitUntil(t, "second page", func(v []Item) bool { return len(v) == 2 })
	if got[0].Listing.Title != "Cherry" || got[0].Index != 2 {
		t.Errorf("item[0] = %d %q, want 2 Cherry", got[0].Index, got[0].Listing.Title)
	}
	if got[1].Listing.Title != "Banana" || got[1].Index != 3 {
		t.Errorf("item[1] = %d %q, want 3 Banana", got[1].Index, got[1].Listing.Title)
	}
}

func TestFeed_ItemsFollowWrites(t *testing.T) {
	feed, s := newTestFeed(t, Options{Limit: 5, OnCount: 1, OffCount: 1})
	items := collect(t, feed.Items(flow.Of(feed.Query(0))))
	items.waitUntil(t, "load", func(v []Item) bool { return len(v) == 5 })

	if err := s.SetFavorite(context.Background(), "a", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	items.waitUntil(t, "favorite flag", func(v []Item) bool {
		return len(v) == 5 && v[4].Listing.ID == "a" && v[4].Favorite
	})

	if err := s.DeleteListing(context.Background(), "e"); err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}
	items.waitUntil(t, "deletion", func(v []Item) bool {
		return len(v) == 4 && v[0].Listing.ID == "d"
	})
}

func TestFeed_Favorites(t *testing.T) {
	feed, _ := newTestFeed(t, Options{Limit: 10, Favorites: true})
	items := collect(t, feed.Items(flow.Of(feed.Query(0))))
	got := items.waitUntil(t, "favorites", func(v []Item) bool { return len(v) == 1 })
	if got[0].Listing.ID != "c" {
		t.Errorf("favorite feed = %+v, want only c", got)
	}

	n, err := flow.First(t.Context(), feed.Available())
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if n != 1 {
		t.Errorf("Available = %d, want 1", n)
	}
}

func TestFeed_Detail(t *testing.T) {
	feed, _ := newTestFeed(t, Options{Limit: 10})
	detail := collect(t, feed.Detail("d"))

	d := detail.waitUntil(t, "detail", func(d *Detail) bool { return d != nil })
	if d.Listing.Title != "Date" {
		t.Errorf("Listing = %+v", d.Listing)
	}
	if d.Host == nil || d.Host.FirstName != "Ada" {
		t.Errorf("Host = %+v", d.Host)
	}
	if len(d.Media) != 2 || d.MediaCount != 2 || d.Media[0].ID != "d1" {
		t.Errorf("Media = %+v (count %d)", d.Media, d.MediaCount)
	}
	if d.Favorite {
		t.Error("Favorite = true, want false")
	}
}

func TestFeed_DetailMissingHostAndListing(t *testing.T) {
	feed, s := newTestFeed(t, Options{Limit: 10})

	elder := collect(t, feed.Detail("e"))
	d := elder.waitUntil(t, "detail", func(d *Detail) bool { return d != nil })
	if d.Host != nil {
		t.Errorf("Host = %+v, want nil for unsynced host", d.Host)
	}

	missing := collect(t, feed.Detail("zzz"))
	missing.waitUntil(t, "nil detail", func(d *Detail) bool { return d == nil })

	seed := model.Listing{ID: "zzz", Title: "Late arrival"}
	if err := s.UpsertListings(context.Background(), seed); err != nil {
		t.Fatalf("UpsertListings: %v", err)
	}
	missing.waitUntil(t, "detail after insert", func(d *Detail) bool {
		return d != nil && d.Listing.Title == "Late arrival"
	})
}
