package repository

import (
	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
)

// MediaRepository reads the media attached to listings.
type MediaRepository struct {
	store MediaStore
}

// NewMediaRepository creates a MediaRepository and requests a sync.
func NewMediaRepository(store MediaStore, syncer SyncRequester) *MediaRepository {
	syncer.RequestSync()
	return &MediaRepository{store: store}
}

// Media observes the page of media selected by q, in insertion order.
func (r *MediaRepository) Media(q model.MediaQuery) flow.Flow[[]model.Media] {
	return r.store.Media(q)
}

// Available observes how many media rows a listing has.
func (r *MediaRepository) Available(listingID string) flow.Flow[int] {
	return r.store.CountMedia(listingID)
}

// Cover observes a listing's first media row; nil when it has none.
func (r *MediaRepository) Cover(listingID string) flow.Flow[*model.Media] {
	first := r.store.Media(model.MediaQuery{ListingID: listingID, Limit: 1})
	return flow.Map(first, func(media []model.Media) *model.Media {
		if len(media) == 0 {
			return nil
		}
		m := media[0]
		return &m
	})
}
