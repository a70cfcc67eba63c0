package repository

import (
	"github.com/tunjid/listingApp-sub001/internal/flow"
	"github.com/tunjid/listingApp-sub001/internal/model"
)

// UserRepository reads hosts.
type UserRepository struct {
	store UserStore
}

// NewUserRepository creates a UserRepository and requests a sync.
func NewUserRepository(store UserStore, syncer SyncRequester) *UserRepository {
	syncer.RequestSync()
	return &UserRepository{store: store}
}

// User observes one user; it emits nil while the user is absent.
func (r *UserRepository) User(id string) flow.Flow[*model.User] {
	return r.store.User(id)
}
