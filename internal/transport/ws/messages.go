package ws

import (
	"encoding/json"

	"github.com/robalobadob/tradle/internal/handshake"
)

// MessageType represents the type of bridge message.
type MessageType string

// Shell → host message types
const (
	MsgHello   MessageType = "hello"   // page loaded; carries document.referrer
	MsgMessage MessageType = "message" // a window "message" event relayed verbatim
	MsgPing    MessageType = "ping"
)

// Host → shell message types
const (
	MsgPostMessage MessageType = "postMessage" // post data to the parent at targetOrigin
	MsgIdentity    MessageType = "identity"    // handshake state changed
	MsgError       MessageType = "error"
	MsgPong        MessageType = "pong"
)

// ShellMessage is a message from the browser shell.
type ShellMessage struct {
	Type     MessageType     `json:"type"`
	Referrer string          `json:"referrer,omitempty"`
	Origin   string          `json:"origin,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// HostMessage is a message to the browser shell.
type HostMessage struct {
	Type         MessageType         `json:"type"`
	TargetOrigin string              `json:"targetOrigin,omitempty"`
	Data         any                 `json:"data,omitempty"`
	State        string              `json:"state,omitempty"`
	Identity     *handshake.Identity `json:"identity,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeUnknownType    = "UNKNOWN_TYPE"
)
