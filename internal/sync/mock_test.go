package sync

import (
	"context"
	"sync"

	"github.com/tunjid/listingApp-sub001/internal/remote"
	"github.com/tunjid/listingApp-sub001/internal/store"
)

// --- Mock Fetcher ------------------------------------------------------------

type mockFetcher struct {
	mu       sync.Mutex
	listings []remote.ListingDTO
	err      error
	calls    int

	// gate, when non-nil, blocks FetchAll until it is closed or ctx ends.
	gate    chan struct{}
	started chan struct{} // signalled once per call, if non-nil and not full
}

func newMockFetcher(listings ...remote.ListingDTO) *mockFetcher {
	return &mockFetcher{listings: listings}
}

func (m *mockFetcher) FetchAll(ctx context.Context) ([]remote.ListingDTO, error) {
	m.mu.Lock()
	m.calls++
	gate, started := m.gate, m.started
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]remote.ListingDTO, len(m.listings))
	copy(out, m.listings)
	return out, nil
}

func (m *mockFetcher) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock SnapshotWriter -----------------------------------------------------

type mockWriter struct {
	mu    sync.Mutex
	snaps []store.Snapshot
	prune []bool
	err   error
}

func (m *mockWriter) SaveSnapshot(_ context.Context, snap store.Snapshot, prune bool) (store.SnapshotResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return store.SnapshotResult{}, m.err
	}
	m.snaps = append(m.snaps, snap)
	m.prune = append(m.prune, prune)
	return store.SnapshotResult{
		Users:    len(snap.Users),
		Listings: len(snap.Listings),
		Media:    len(snap.Media),
	}, nil
}

func (m *mockWriter) saved() []store.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Snapshot(nil), m.snaps...)
}

// --- Mock Syncer -------------------------------------------------------------

type mockSyncer struct {
	mu    sync.Mutex
	calls int
	err   error
	ran   chan struct{}
}

func (m *mockSyncer) Sync(_ context.Context) (store.SnapshotResult, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()
	if m.ran != nil {
		select {
		case m.ran <- struct{}{}:
		default:
		}
	}
	return store.SnapshotResult{}, err
}

func (m *mockSyncer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
