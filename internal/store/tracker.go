package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tunjid/listingApp-sub001/internal/flow"
)

// Table names, used for change notification.
const (
	tableListings = "listings"
	tableMedia    = "media"
	tableUsers    = "users"
	tableFavorite = "favorite"
)

// tracker fans out "table changed" signals to live queries. Signals are
// conflated: a query that is still running when several commits land
// re-runs once.
type tracker struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

type subscription struct {
	tables []string
	ch     chan struct{}
}

func newTracker() *tracker {
	return &tracker{subs: make(map[int]*subscription)}
}

func (t *tracker) subscribe(tables []string) (<-chan struct{}, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++
	sub := &subscription{tables: tables, ch: make(chan struct{}, 1)}
	t.subs[id] = sub

	return sub.ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

func (t *tracker) notify(tables ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sub := range t.subs {
		if !slices.ContainsFunc(sub.tables, func(name string) bool { return slices.Contains(tables, name) }) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// observe returns a flow that runs query once, then again after every commit
// touching one of tables. The subscription is registered before the first
// run so no commit is missed.
func observe[T any](t *tracker, tables []string, query func(ctx context.Context) (T, error)) flow.Flow[T] {
	return func(ctx context.Context, emit func(T)) error {
		changed, unsubscribe := t.subscribe(tables)
		defer unsubscribe()

		for {
			v, err := query(ctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return fmt.Errorf("observing %v: %w", tables, err)
			}
			emit(v)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-changed:
			}
		}
	}
}
