// internal/game/types.go
//
// Core type definitions for the game engine.
// Defines:
//   - Guess:  one scored attempt (immutable once created).
//   - State:  ended/won, always derived from the guess history.
//   - Report: the best-effort score report sent when a game ends.

package game

import (
	"encoding/json"
	"time"

	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/geo"
	"github.com/robalobadob/tradle/internal/handshake"
)

// MaxAttempts is the number of guesses allowed per day.
const MaxAttempts = 6

// Guess is one scored attempt. Its position in the history is the attempt number.
type Guess struct {
	Name      string            `json:"name"`      // raw text as typed
	Country   countries.Country `json:"country"`   // resolved entity
	Distance  int               `json:"distance"`  // metres to the answer
	Direction geo.Direction     `json:"direction"` // from the guess towards the answer
}

// State is derived from the history and never stored.
type State struct {
	Attempts int  `json:"attempts"`
	Ended    bool `json:"ended"`
	Won      bool `json:"won"`
}

// StateOf computes the game state for a history.
func StateOf(guesses []Guess) State {
	st := State{Attempts: len(guesses)}
	if len(guesses) == 0 {
		return st
	}
	last := guesses[len(guesses)-1]
	st.Won = last.Distance == 0
	st.Ended = st.Won || len(guesses) >= MaxAttempts
	return st
}

// Report is the telemetry body posted once a game ends.
type Report struct {
	ID          string              `json:"id"`
	Game        string              `json:"game"`
	Date        string              `json:"date"` // day key
	SubmittedAt time.Time           `json:"submittedAt"`
	Answer      countries.Country   `json:"answer"`
	Guesses     []Guess             `json:"guesses"`
	Won         bool                `json:"won"`
	IP          json.RawMessage     `json:"ip,omitempty"` // geolocation lookup result, consent only
	User        *handshake.Identity `json:"user,omitempty"`
}
