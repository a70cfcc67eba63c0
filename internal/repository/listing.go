package repository

import (
	"context"
	"fmt"

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
)

// ListingRepository reads listings and their favorite flag.
type ListingRepository struct {
	store ListingStore
}

// NewListingRepository creates a ListingRepository and requests a sync.
func NewListingRepository(store ListingStore, syncer SyncRequester) *ListingRepository {
	syncer.RequestSync()
	return &ListingRepository{store: store}
}

// Listing observes one listing; it emits nil while the listing is absent.
func (r *ListingRepository) Listing(id string) flow.Flow[*model.Listing] {
	return r.store.Listing(id)
}

// Listings observes the page of listings selected by q.
func (r *ListingRepository) Listings(q model.ListingQuery) flow.Flow[[]model.Listing] {
	return r.store.Listings(q)
}

// Available observes how many listings match q's filters.
func (r *ListingRepository) Available(q model.ListingQuery) flow.Flow[int] {
	return r.store.CountListings(q)
}

// IsFavorite observes whether the listing is marked as favorite.
func (r *ListingRepository) IsFavorite(id string) flow.Flow[bool] {
	return r.store.Favorite(id)
}

// SetFavorite marks or unmarks a listing. Unlike reads, the write path
// surfaces store errors, including missing listings.
func (r *ListingRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	if err := r.store.SetFavorite(ctx, id, favorite); err != nil {
		return fmt.Errorf("setting favorite on listing %s: %w", id, err)
	}
	return nil
}
