package handshake

import "encoding/json"

// Message types on the cross-frame channel.
const (
	TypeRequestSession = "requestSession" // game -> parent
	TypeSession        = "session"        // parent -> game
)

// Request asks the embedding page for its signed-in user.
type Request struct {
	Type    string `json:"type"`
	Game    string `json:"game"`
	History bool   `json:"history"`
}

// Response is the parent's reply. Session is an Identity object, or
// false/null when nobody is signed in.
type Response struct {
	Type    string          `json:"type"`
	Session json.RawMessage `json:"session,omitempty"`
}

// Identity is the user the parent page reports.
type Identity struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Image   string          `json:"image"`
	History json.RawMessage `json:"history,omitempty"`
}
