// Package repository exposes offline-first, per-entity reads over the local
// store. Every read resolves from the store alone; constructing a repository
// asks the sync coordinator for a refresh whose results arrive through the
// same live reads.
package repository

import (
	"context"

	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
)

// SyncRequester triggers a background sync. Implemented by
// [sync.Coordinator].
type SyncRequester interface {
	RequestSync()
}

// ListingStore is the slice of the local store read and written by
// [ListingRepository]. Implemented by [store.Store].
type ListingStore interface {
	Listing(id string) flow.Flow[*model.Listing]
	Listings(q model.ListingQuery) flow.Flow[[]model.Listing]
	CountListings(q model.ListingQuery) flow.Flow[int]
	Favorite(listingID string) flow.Flow[bool]
	SetFavorite(ctx context.Context, listingID string, favorite bool) error
}

// MediaStore is the slice of the local store read by [MediaRepository].
// Implemented by [store.Store].
type MediaStore interface {
	Media(q model.MediaQuery) flow.Flow[[]model.Media]
	CountMedia(listingID string) flow.Flow[int]
}

// UserStore is the slice of the local store read by [UserRepository].
// Implemented by [store.Store].
type UserStore interface {
	User(id string) flow.Flow[*model.User]
}
