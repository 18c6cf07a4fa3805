package game

import (
	"context"
	"fmt"
)

// GuessStore persists one ordered guess list per (client, day).
// Save overwrites whatever was stored for the key. Concurrent writers for the
// same key are not coordinated: the last write wins.
type GuessStore interface {
	Load(ctx context.Context, clientID, day string) ([]Guess, error)
	Save(ctx context.Context, clientID, day string, guesses []Guess) error
}

// History is the in-memory view of one day's guesses, written through to a
// GuessStore on every append.
type History struct {
	store    GuessStore
	clientID string
	day      string
	guesses  []Guess
}

// LoadHistory reads the stored guesses for (clientID, day).
func LoadHistory(ctx context.Context, st GuessStore, clientID, day string) (*History, error) {
	gs, err := st.Load(ctx, clientID, day)
	if err != nil {
		return nil, fmt.Errorf("load guesses %s: %w", day, err)
	}
	return &History{store: st, clientID: clientID, day: day, guesses: gs}, nil
}

// Guesses returns a copy of the history.
func (h *History) Guesses() []Guess {
	out := make([]Guess, len(h.guesses))
	copy(out, h.guesses)
	return out
}

// State derives ended/won from the history.
func (h *History) State() State { return StateOf(h.guesses) }

// Append persists the extended history and only then adopts it in memory.
// Appending to an ended game fails with ErrGameEnded.
func (h *History) Append(ctx context.Context, g Guess) ([]Guess, error) {
	if StateOf(h.guesses).Ended {
		return h.Guesses(), ErrGameEnded
	}
	next := make([]Guess, len(h.guesses), len(h.guesses)+1)
	copy(next, h.guesses)
	next = append(next, g)
	if err := h.store.Save(ctx, h.clientID, h.day, next); err != nil {
		return h.Guesses(), fmt.Errorf("save guesses %s: %w", h.day, err)
	}
	h.guesses = next
	return h.Guesses(), nil
}
