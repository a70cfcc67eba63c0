// Package sync keeps the local store in step with the remote listing feed.
//
// The package contains two main components:
//
//   - [Coordinator] runs single-flight sync passes and publishes a
//     replay-latest [model.SyncStatus].
//   - [Engine] drives the coordinator on a fixed poll interval.
package sync

import (
	"context"

	"github.com/tunjid/listingApp-sub001/internal/remote"
	"github.com/tunjid/listingApp-sub001/internal/store"
)

// Fetcher provides the complete remote listing snapshot.
// Implemented by [remote.Client].
type Fetcher interface {
	FetchAll(ctx context.Context) ([]remote.ListingDTO, error)
}

// SnapshotWriter persists a normalized snapshot atomically.
// Implemented by [store.Store].
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, snap store.Snapshot, prune bool) (store.SnapshotResult, error)
}
