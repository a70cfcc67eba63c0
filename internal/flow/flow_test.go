package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder collects emitted values for assertions.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
	notify chan struct{}
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{notify: make(chan struct{}, 1)}
}

func (r *recorder[T]) emit(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// waitLen blocks until at least n values were recorded.
func (r *recorder[T]) waitLen(t *testing.T, n int) []T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d values, got %v", n, r.snapshot())
		}
	}
}

// collectAsync runs f in the background and returns a stop function that
// cancels it and returns its error.
func collectAsync[T any](f Flow[T], emit func(T)) func() error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f(ctx, emit) }()
	return func() error {
		cancel()
		return <-done
	}
}

// manual is a hand-driven flow: values sent on ch are emitted until ch is
// closed. subscriptions counts active collections.
type manual[T any] struct {
	ch     chan T
	mu     sync.Mutex
	active int
	total  int
}

func newManual[T any]() *manual[T] {
	return &manual[T]{ch: make(chan T)}
}

func (m *manual[T]) flow() Flow[T] {
	return func(ctx context.Context, emit func(T)) error {
		m.mu.Lock()
		m.active++
		m.total++
		m.mu.Unlock()
		defer func() {
			m.mu.Lock()
			m.active--
			m.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-m.ch:
				if !ok {
					return nil
				}
				emit(v)
			}
		}
	}
}

func (m *manual[T]) counts() (active, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.total
}

// ---------------------------------------------------------------------------
// Basic operators
// ---------------------------------------------------------------------------

func TestOf_EmitsInOrder(t *testing.T) {
	var got []int
	err := Of(1, 2, 3).Collect(context.Background(), func(v int) { got = append(got, v) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestOf_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Of(1, 2).Collect(ctx, func(int) { calls++ })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("emitted %d values, want 0", calls)
	}
}

func TestMap(t *testing.T) {
	var got []string
	f := Map(Of(1, 2), func(v int) string { return string(rune('a' + v)) })
	if err := f.Collect(context.Background(), func(s string) { got = append(got, s) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("got %v, want [b c]", got)
	}
}

func TestDistinctUntilChanged(t *testing.T) {
	var got []int
	f := DistinctUntilChanged(Of(1, 1, 2, 2, 1), func(a, b int) bool { return a == b })
	if err := f.Collect(context.Background(), func(v int) { got = append(got, v) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFirst(t *testing.T) {
	v, err := First(context.Background(), Of(7, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Errorf("First = %d, want 7", v)
	}
}

func TestFirst_Empty(t *testing.T) {
	_, err := First(context.Background(), Of[int]())
	if !errors.Is(err, ErrNoValue) {
		t.Errorf("err = %v, want ErrNoValue", err)
	}
}

func TestFirst_CancelsInfiniteFlow(t *testing.T) {
	s := NewState(3)
	v, err := First(context.Background(), s.Flow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 3 {
		t.Errorf("First = %d, want 3", v)
	}
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

func TestState_ReplaysCurrentValue(t *testing.T) {
	s := NewState("idle")
	s.Set("running")

	rec := newRecorder[string]()
	stop := collectAsync(s.Flow(), rec.emit)
	defer stop()

	got := rec.waitLen(t, 1)
	if got[0] != "running" {
		t.Errorf("late subscriber saw %q, want %q", got[0], "running")
	}
}

func TestState_DeliversChanges(t *testing.T) {
	s := NewState(0)
	rec := newRecorder[int]()
	stop := collectAsync(s.Flow(), rec.emit)
	defer stop()

	rec.waitLen(t, 1)
	s.Set(1)
	got := rec.waitLen(t, 2)
	if got[len(got)-1] != 1 {
		t.Errorf("latest = %d, want 1", got[len(got)-1])
	}

	s.Update(func(v int) int { return v + 10 })
	got = rec.waitLen(t, 3)
	if got[len(got)-1] != 11 {
		t.Errorf("latest = %d, want 11", got[len(got)-1])
	}
	if s.Value() != 11 {
		t.Errorf("Value() = %d, want 11", s.Value())
	}
}

func TestState_FlowReturnsOnCancel(t *testing.T) {
	s := NewState(0)
	stop := collectAsync(s.Flow(), func(int) {})
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// SwitchMap
// ---------------------------------------------------------------------------

func TestSwitchMap_LatestWins(t *testing.T) {
	upstream := NewState("a")
	inners := map[string]*manual[string]{
		"a": newManual[string](),
		"b": newManual[string](),
	}

	rec := newRecorder[string]()
	f := SwitchMap(upstream.Flow(), func(key string) Flow[string] {
		return inners[key].flow()
	})
	stop := collectAsync(f, rec.emit)
	defer stop()

	inners["a"].ch <- "a1"
	rec.waitLen(t, 1)

	upstream.Set("b")
	// Once "b" is subscribed, "a" must already be cancelled.
	waitFor(t, func() bool {
		active, _ := inners["b"].counts()
		return active == 1
	})
	if active, _ := inners["a"].counts(); active != 0 {
		t.Errorf("previous inner still active: %d", active)
	}

	inners["b"].ch <- "b1"
	got := rec.waitLen(t, 2)
	if got[1] != "b1" {
		t.Errorf("got %v, want [a1 b1]", got)
	}
}

func TestSwitchMap_InnerErrorFailsFlow(t *testing.T) {
	boom := errors.New("boom")
	f := SwitchMap(Of(1), func(int) Flow[int] {
		return func(context.Context, func(int)) error { return boom }
	})
	err := f.Collect(context.Background(), func(int) {})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestSwitchMap_CompletesWithLastInner(t *testing.T) {
	var got []int
	f := SwitchMap(Of(1, 2), func(v int) Flow[int] { return Of(v*10, v*10+1) })
	if err := f.Collect(context.Background(), func(v int) { got = append(got, v) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 || got[len(got)-1] != 21 {
		t.Errorf("got %v, want it to end with 21", got)
	}
}

// ---------------------------------------------------------------------------
// CombineLatest
// ---------------------------------------------------------------------------

func TestCombineLatest_WaitsForAllInputs(t *testing.T) {
	a, b := newManual[int](), newManual[int]()
	rec := newRecorder[[]int]()
	stop := collectAsync(CombineLatest(a.flow(), b.flow()), rec.emit)
	defer stop()

	a.ch <- 1
	// Nothing yet: b has not emitted.
	b.ch <- 2
	got := rec.waitLen(t, 1)
	if len(got) != 1 || got[0][0] != 1 || got[0][1] != 2 {
		t.Fatalf("got %v, want [[1 2]]", got)
	}

	a.ch <- 3
	got = rec.waitLen(t, 2)
	if got[1][0] != 3 || got[1][1] != 2 {
		t.Errorf("got %v, want second snapshot [3 2]", got[1])
	}
}

func TestCombineLatest_Empty(t *testing.T) {
	var got [][]int
	if err := CombineLatest[int]().Collect(context.Background(), func(v []int) { got = append(got, v) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("got %v, want one empty snapshot", got)
	}
}

func TestCombineLatest_ErrorCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	sibling := newManual[int]()
	failing := func(context.Context, func(int)) error { return boom }

	err := CombineLatest(sibling.flow(), Flow[int](failing)).Collect(context.Background(), func([]int) {})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if active, _ := sibling.counts(); active != 0 {
		t.Errorf("sibling still active after failure")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
