package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
	"github.com/tunjid/listingApp-sub001/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "listings.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func first[T any](t *testing.T, f flow.Flow[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := flow.First(ctx, f)
	if err != nil {
		t.Fatalf("flow.First: %v", err)
	}
	return v
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	_, err := s.SaveSnapshot(context.Background(), store.Snapshot{
		Users: []model.User{{ID: "h1", FirstName: "Ada"}},
		Listings: []model.Listing{
			{ID: "l1", HostID: "h1", Title: "Loft", PropertyType: "Entire home"},
			{ID: "l2", HostID: "h1", Title: "Barn", PropertyType: "Private room"},
		},
		Media: []model.Media{
			{ID: "m1", ListingID: "l1", URL: "https://img/1"},
			{ID: "m2", ListingID: "l1", URL: "https://img/2"},
		},
	}, false)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
}

func TestConstructors_RequestSyncOnce(t *testing.T) {
	s := openTestStore(t)
	syncer := &mockSyncer{}

	NewListingRepository(s, syncer)
	if n := syncer.count(); n != 1 {
		t.Errorf("after listing repo: %d requests, want 1", n)
	}
	NewMediaRepository(s, syncer)
	NewUserRepository(s, syncer)
	if n := syncer.count(); n != 3 {
		t.Errorf("after all repos: %d requests, want 3", n)
	}
}

func TestListingRepository_ReadsOffline(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	// The mock never syncs: every read below is served from local data.
	r := NewListingRepository(s, &mockSyncer{})

	if got := first(t, r.Listing("l1")); got == nil || got.Title != "Loft" {
		t.Errorf("Listing(l1) = %+v", got)
	}
	if got := first(t, r.Listing("missing")); got != nil {
		t.Errorf("Listing(missing) = %+v, want nil", got)
	}

	page := first(t, r.Listings(model.ListingQuery{Limit: 10}))
	if len(page) != 2 || page[0].Title != "Loft" || page[1].Title != "Barn" {
		t.Errorf("Listings = %+v, want [Loft Barn]", page)
	}
	if n := first(t, r.Available(model.ListingQuery{PropertyType: "Private room"})); n != 1 {
		t.Errorf("Available(Private room) = %d, want 1", n)
	}
}

func TestListingRepository_Favorites(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	r := NewListingRepository(s, &mockSyncer{})
	ctx := context.Background()

	if first(t, r.IsFavorite("l1")) {
		t.Error("IsFavorite(l1) = true before marking")
	}
	if err := r.SetFavorite(ctx, "l1", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	if !first(t, r.IsFavorite("l1")) {
		t.Error("IsFavorite(l1) = false after marking")
	}

	favs := first(t, r.Listings(model.ListingQuery{Favorites: true, Limit: 10}))
	if len(favs) != 1 || favs[0].ID != "l1" {
		t.Errorf("favorite listings = %+v, want [l1]", favs)
	}
}

func TestListingRepository_SetFavoriteSurfacesErrors(t *testing.T) {
	r := NewListingRepository(openTestStore(t), &mockSyncer{})

	err := r.SetFavorite(context.Background(), "missing", true)
	if !errors.Is(err, store.ErrConstraint) {
		t.Errorf("err = %v, want ErrConstraint", err)
	}
}

func TestMediaRepository(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	r := NewMediaRepository(s, &mockSyncer{})

	media := first(t, r.Media(model.MediaQuery{ListingID: "l1", Limit: 10}))
	if len(media) != 2 || media[0].ID != "m1" {
		t.Errorf("Media(l1) = %+v", media)
	}
	if n := first(t, r.Available("l1")); n != 2 {
		t.Errorf("Available(l1) = %d, want 2", n)
	}

	cover := first(t, r.Cover("l1"))
	if cover == nil || cover.ID != "m1" {
		t.Errorf("Cover(l1) = %+v, want m1", cover)
	}
	if got := first(t, r.Cover("l2")); got != nil {
		t.Errorf("Cover(l2) = %+v, want nil", got)
	}
}

func TestUserRepository(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	r := NewUserRepository(s, &mockSyncer{})

	if got := first(t, r.User("h1")); got == nil || got.FirstName != "Ada" {
		t.Errorf("User(h1) = %+v", got)
	}
	if got := first(t, r.User("nobody")); got != nil {
		t.Errorf("User(nobody) = %+v, want nil", got)
	}
}
