package store

import (
	"context"
	"errors"
	"strings"

	"github.com/robalobadob/tradle/internal/game"
)

// Display modes that can be toggled per day.
const (
	ModeHideImage = "hideImageMode"
	ModeRotation  = "rotationMode"
)

// ErrUnknownMode is returned for mode names outside the known set.
var ErrUnknownMode = errors.New("unknown mode")

// ModeStore persists one boolean per (client, day, mode).
type ModeStore interface {
	// LoadMode reports the stored flag; found is false when it was never saved.
	LoadMode(ctx context.Context, clientID, day, mode string) (enabled, found bool, err error)
	SaveMode(ctx context.Context, clientID, day, mode string, enabled bool) error
}

// Store defines the client-local persistence used by the game.
// Implementations may be backed by memory (memory.go) or SQLite (sqlite.go).
type Store interface {
	game.GuessStore
	ModeStore
}

// KnownModes lists the valid mode names in display order.
func KnownModes() []string { return []string{ModeHideImage, ModeRotation} }

// ValidMode reports whether name is a known mode.
func ValidMode(name string) bool {
	for _, m := range KnownModes() {
		if m == name {
			return true
		}
	}
	return false
}

func key(parts ...string) string { return strings.Join(parts, "|") }
