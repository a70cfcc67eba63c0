// Package savedstate persists the browser's navigation state: the active
// stack and the route segments of every back stack. The state is stored as
// deterministic CBOR and replaced atomically on every save.
package savedstate

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tunjid/listingApp-sub001/internal/flow"
)

// Stack names of the default navigation state.
const (
	StackListings  = "listings"
	StackFavorites = "favorites"
)

// NavState is the persisted navigation state.
type NavState struct {
	CurrentIndex int        `cbor:"1,keyasint"`
	BackStacks   [][]string `cbor:"2,keyasint"`
}

// Default is the state used on first launch and when the file is corrupt.
func Default() NavState {
	return NavState{
		CurrentIndex: 0,
		BackStacks:   [][]string{{StackListings}, {StackFavorites}},
	}
}

// Valid reports whether s points at an existing, non-empty back stack.
func (s NavState) Valid() bool {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.BackStacks) {
		return false
	}
	return !slices.ContainsFunc(s.BackStacks, func(stack []string) bool { return len(stack) == 0 })
}

// Current returns the top route of the active back stack.
func (s NavState) Current() string {
	if !s.Valid() {
		return ""
	}
	stack := s.BackStacks[s.CurrentIndex]
	return stack[len(stack)-1]
}

// Push returns s with route pushed onto the active back stack. An invalid
// state is returned unchanged.
func (s NavState) Push(route string) NavState {
	if !s.Valid() {
		return s
	}
	out := s.clone()
	out.BackStacks[out.CurrentIndex] = append(out.BackStacks[out.CurrentIndex], route)
	return out
}

// Pop returns s with the top route of the active back stack removed. The
// root route is never popped.
func (s NavState) Pop() (NavState, bool) {
	if !s.Valid() {
		return s, false
	}
	stack := s.BackStacks[s.CurrentIndex]
	if len(stack) <= 1 {
		return s, false
	}
	out := s.clone()
	out.BackStacks[out.CurrentIndex] = out.BackStacks[out.CurrentIndex][:len(stack)-1]
	return out, true
}

// Switch returns s with the stack at index made active.
func (s NavState) Switch(index int) (NavState, bool) {
	if index < 0 || index >= len(s.BackStacks) {
		return s, false
	}
	out := s.clone()
	out.CurrentIndex = index
	return out, true
}

func (s NavState) clone() NavState {
	stacks := make([][]string, len(s.BackStacks))
	for i, stack := range s.BackStacks {
		stacks[i] = slices.Clone(stack)
	}
	return NavState{CurrentIndex: s.CurrentIndex, BackStacks: stacks}
}

// DefaultPath returns the default location of the state file:
// ~/.local/share/listingapp/navigation.cbor
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "listingapp", "navigation.cbor"), nil
}

// Store holds the navigation state in memory and on disk. Create one with
// [Open].
type Store struct {
	path  string
	log   *slog.Logger
	mu    sync.Mutex // serializes saves
	state *flow.State[NavState]
}

// Open loads the state at path. A missing or unreadable file yields
// [Default]; only a failure to create the directory is an error.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	s := &Store{path: path, log: logger}
	s.state = flow.NewState(s.Load())
	return s, nil
}

// Load reads the file, falling back to [Default] when it is missing or
// corrupt.
func (s *Store) Load() NavState {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	if err != nil {
		s.log.Warn("reading navigation state, using default", "path", s.path, "error", err)
		return Default()
	}

	st, err := Decode[NavState](data)
	if err != nil {
		s.log.Warn("navigation state is corrupt, using default", "path", s.path, "error", err)
		return Default()
	}
	if !st.Valid() {
		s.log.Warn("navigation state is invalid, using default", "path", s.path,
			"current_index", st.CurrentIndex, "stacks", len(st.BackStacks))
		return Default()
	}
	return st
}

// Current returns the in-memory state.
func (s *Store) Current() NavState {
	return s.state.Value()
}

// Flow observes the state, replaying the latest value first.
func (s *Store) Flow() flow.Flow[NavState] {
	return s.state.Flow()
}

// Save writes st atomically and publishes it.
func (s *Store) Save(st NavState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

// Update applies fn to the current state and saves the result.
func (s *Store) Update(fn func(NavState) NavState) (NavState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.state.Value())
	if err := s.save(next); err != nil {
		return s.state.Value(), err
	}
	return next, nil
}

func (s *Store) save(st NavState) error {
	if !st.Valid() {
		return fmt.Errorf("refusing to save invalid navigation state (index %d of %d stacks)",
			st.CurrentIndex, len(st.BackStacks))
	}
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("saving navigation state: %w", err)
	}
	s.state.Set(st.clone())
	return nil
}

// writeFileAtomic writes data to a temp file next to path, syncs it and
// renames it over path. Readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	// Persist the rename itself; not every platform supports syncing a
	// directory.
	if d, dirErr := os.Open(dir); dirErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
