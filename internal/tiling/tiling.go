// Package tiling pages through a query space around a moving pivot. A window
// of pages next to the pivot is kept live; a wider window keeps its last
// items cached; everything else is evicted. The output is the ordered,
// deduplicated concatenation of the cached pages.
package tiling

import (
	"context"
	"fmt"
	"slices"

	"github.com/tunjid/listingApp-sub001/internal/flow"
)

// PivotRequest configures the window kept around a pivot query.
type PivotRequest[Q comparable] struct {
	// OnCount is the number of pages kept live around the pivot.
	OnCount int
	// OffCount is the total number of pages retained, live or not. Values
	// below OnCount are raised to OnCount.
	OffCount int
	// Comparator orders pages in the output.
	Comparator func(a, b Q) int
	// PreviousQuery returns the query before q, or false at the start
	// boundary.
	PreviousQuery func(q Q) (Q, bool)
	// NextQuery returns the query after q.
	NextQuery func(q Q) Q
}

func (r PivotRequest[Q]) counts() (on, off int) {
	on = max(r.OnCount, 1)
	off = max(r.OffCount, on)
	return on, off
}

// Fetcher returns the live items of one page.
type Fetcher[Q comparable, T any] func(q Q) flow.Flow[[]T]

// Page is the state of one cached page.
type Page[Q comparable, T any] struct {
	Query  Q
	Items  []T
	Live   bool // holds a subscription
	Loaded bool // has produced items at least once
	Err    error
}

// List is one emission of [Tile].
type List[Q comparable, T any] struct {
	Pivot Q
	Items []T
	Pages []Page[Q, T]
}

// PageError records a failed page subscription. Sibling pages are
// unaffected.
type PageError[Q comparable] struct {
	Query Q
	Err   error
}

func (e *PageError[Q]) Error() string {
	return fmt.Sprintf("page %v: %v", e.Query, e.Err)
}

func (e *PageError[Q]) Unwrap() error { return e.Err }

// Tile follows pivots and emits the tiled list after every pivot move and
// every page update. Moving to the current pivot is a no-op. A page whose
// subscription fails keeps its cached items and is re-subscribed on the next
// pivot move that keeps it live. The flow ends when ctx is cancelled or
// pivots fails; completion of pivots freezes the window while live pages
// keep updating.
func Tile[Q comparable, T any, K comparable](
	pivots flow.Flow[Q],
	req PivotRequest[Q],
	fetch Fetcher[Q, T],
	id func(T) K,
) flow.Flow[List[Q, T]] {
	return func(ctx context.Context, emit func(List[Q, T])) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		t := &tiler[Q, T, K]{
			req:    req,
			fetch:  fetch,
			id:     id,
			pages:  make(map[Q]*page[Q, T]),
			events: make(chan pageEvent[Q, T]),
		}
		defer t.stopAll()

		pivotCh := make(chan Q)
		pivotDone := make(chan error, 1)
		go func() {
			pivotDone <- pivots(ctx, func(q Q) {
				select {
				case pivotCh <- q:
				case <-ctx.Done():
				}
			})
		}()
		defer func() {
			cancel()
			if pivotDone != nil {
				<-pivotDone
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case q := <-pivotCh:
				if t.move(ctx, q) {
					emit(t.snapshot())
				}

			case err := <-pivotDone:
				pivotDone = nil
				if err != nil {
					return err
				}

			case ev := <-t.events:
				if t.apply(ev) {
					emit(t.snapshot())
				}
			}
		}
	}
}

// window lists the queries around pivot in priority order: the pivot, then
// alternately the next and previous neighbors. The first on entries are
// live; all entries are retained.
func window[Q comparable](pivot Q, req PivotRequest[Q]) (live, retained []Q) {
	on, off := req.counts()

	seen := map[Q]struct{}{pivot: {}}
	retained = append(make([]Q, 0, off), pivot)
	add := func(q Q) {
		if _, dup := seen[q]; dup || len(retained) >= off {
			return
		}
		seen[q] = struct{}{}
		retained = append(retained, q)
	}

	next, prev := pivot, pivot
	hasPrev := true
	// Bounded so a NextQuery that stops advancing cannot spin forever.
	for range 2 * off {
		if len(retained) >= off {
			break
		}
		next = req.NextQuery(next)
		add(next)
		if hasPrev {
			prev, hasPrev = req.PreviousQuery(prev)
			if hasPrev {
				add(prev)
			}
		}
	}

	return retained[:min(on, len(retained))], retained
}

type page[Q comparable, T any] struct {
	Page[Q, T]
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

type pageEvent[Q comparable, T any] struct {
	query Q
	gen   uint64
	items []T
	err   error
	ended bool
}

// tiler is the state owned by a single Tile collection. Only the event loop
// touches it.
type tiler[Q comparable, T any, K comparable] struct {
	req    PivotRequest[Q]
	fetch  Fetcher[Q, T]
	id     func(T) K
	pivot  Q
	moved  bool
	gen    uint64
	pages  map[Q]*page[Q, T]
	events chan pageEvent[Q, T]
}

// move applies a new pivot. It reports whether anything changed.
func (t *tiler[Q, T, K]) move(ctx context.Context, pivot Q) bool {
	if t.moved && pivot == t.pivot {
		return false
	}
	t.pivot, t.moved = pivot, true

	live, retained := window(pivot, t.req)

	// Stop subscriptions before starting new ones so the live count never
	// exceeds OnCount.
	for q, p := range t.pages {
		switch {
		case !slices.Contains(retained, q):
			t.stop(p)
			delete(t.pages, q)
		case !slices.Contains(live, q):
			t.stop(p)
		}
	}

	for _, q := range live {
		p, ok := t.pages[q]
		if !ok {
			p = &page[Q, T]{Page: Page[Q, T]{Query: q}}
			t.pages[q] = p
		}
		if !p.Live {
			t.stop(p)
			t.start(ctx, p)
		}
	}
	return true
}

func (t *tiler[Q, T, K]) start(ctx context.Context, p *page[Q, T]) {
	t.gen++
	pctx, cancel := context.WithCancel(ctx)
	p.gen, p.cancel, p.done = t.gen, cancel, make(chan struct{})
	p.Live = true

	q, gen, done := p.Query, p.gen, p.done
	send := func(ev pageEvent[Q, T]) {
		select {
		case t.events <- ev:
		case <-pctx.Done():
		}
	}
	go func() {
		defer close(done)
		err := t.fetch(q)(pctx, func(items []T) {
			send(pageEvent[Q, T]{query: q, gen: gen, items: items})
		})
		if pctx.Err() != nil {
			return
		}
		ev := pageEvent[Q, T]{query: q, gen: gen, ended: true}
		if err != nil {
			ev.err = &PageError[Q]{Query: q, Err: err}
		}
		send(ev)
	}()
}

// stop cancels p's subscription, if any, and waits for it to return. Cached
// items are kept. Safe to call on a page whose subscription already ended.
func (t *tiler[Q, T, K]) stop(p *page[Q, T]) {
	if p.cancel != nil {
		p.cancel()
		<-p.done
		p.cancel, p.done = nil, nil
	}
	p.Live = false
}

func (t *tiler[Q, T, K]) stopAll() {
	for _, p := range t.pages {
		t.stop(p)
	}
}

// apply folds a page event into the state. Events from stopped or replaced
// subscriptions are dropped.
func (t *tiler[Q, T, K]) apply(ev pageEvent[Q, T]) bool {
	p, ok := t.pages[ev.query]
	if !ok || !p.Live || p.gen != ev.gen {
		return false
	}
	if ev.ended {
		// The subscription is gone; the next move that keeps p live
		// restarts it.
		p.Live = false
		if ev.err == nil {
			return false
		}
		p.Err = ev.err
		return true
	}
	p.Items, p.Loaded, p.Err = ev.items, true, nil
	return true
}

func (t *tiler[Q, T, K]) snapshot() List[Q, T] {
	pages := make([]Page[Q, T], 0, len(t.pages))
	for _, p := range t.pages {
		pages = append(pages, p.Page)
	}
	slices.SortFunc(pages, func(a, b Page[Q, T]) int {
		return t.req.Comparator(a.Query, b.Query)
	})

	seen := make(map[K]struct{})
	items := []T{}
	for _, p := range pages {
		for _, item := range p.Items {
			k := t.id(item)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			items = append(items, item)
		}
	}
	return List[Q, T]{Pivot: t.pivot, Items: items, Pages: pages}
}
