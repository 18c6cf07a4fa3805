// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used in development/testing, or when durability is not required.
//
// Characteristics:
//   - Guess lists keyed by client|day, mode flags keyed by client|day|mode.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Values are copied on the way in and out, so callers cannot alias state.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"

	"github.com/robalobadob/tradle/internal/game"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex
	guesses map[string][]game.Guess
	modes   map[string]bool
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		guesses: make(map[string][]game.Guess),
		modes:   make(map[string]bool),
	}
}

// Load returns a copy of the stored guesses, or an empty list.
func (m *memory) Load(ctx context.Context, clientID, day string) ([]game.Guess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gs := m.guesses[key(clientID, day)]
	out := make([]game.Guess, len(gs))
	copy(out, gs)
	return out, nil
}

// Save replaces the stored guesses for the key.
func (m *memory) Save(ctx context.Context, clientID, day string, guesses []game.Guess) error {
	cp := make([]game.Guess, len(guesses))
	copy(cp, guesses)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guesses[key(clientID, day)] = cp
	return nil
}

// LoadMode returns the stored flag; found is false when never saved.
func (m *memory) LoadMode(ctx context.Context, clientID, day, mode string) (bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.modes[key(clientID, day, mode)]
	return v, ok, nil
}

// SaveMode stores a flag.
func (m *memory) SaveMode(ctx context.Context, clientID, day, mode string, enabled bool) error {
	if !ValidMode(mode) {
		return ErrUnknownMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[key(clientID, day, mode)] = enabled
	return nil
}
