// internal/handshake/handshake.go
//
// Cross-frame identity handshake with the page embedding the game.
//
// State machine:
//
//	Unresolved --Start(trusted referrer)--> AwaitingParent
//	AwaitingParent|Identified|NoIdentity|Rejected --valid "session" reply--> Identified | NoIdentity | Rejected
//
// Rules:
//   - A request is only ever posted to the referrer's exact origin, and only
//     when that origin is in the trusted list. Otherwise nothing is sent and
//     the state stays Unresolved.
//   - Inbound messages are accepted only when the sender's hostname equals a
//     trusted root domain or is a subdomain of one. Anything else is dropped.
//   - There is no timeout. Close stops all further processing.

package handshake

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUntrustedOrigin is returned when a referrer or sender is not allow-listed.
var ErrUntrustedOrigin = errors.New("untrusted origin")

// State is the handshake progress.
type State int

const (
	Unresolved State = iota
	AwaitingParent
	Identified
	NoIdentity
	Rejected
)

func (s State) String() string {
	switch s {
	case AwaitingParent:
		return "awaiting_parent"
	case Identified:
		return "identified"
	case NoIdentity:
		return "no_identity"
	case Rejected:
		return "rejected"
	default:
		return "unresolved"
	}
}

// MarshalText renders the state as its string name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Poster delivers a message to the parent frame at exactly targetOrigin.
type Poster interface {
	PostMessage(targetOrigin string, msg any) error
}

// Config holds the allow lists and request parameters.
type Config struct {
	GameID             string
	WithHistory        bool
	TrustedOrigins     []string // exact origins a request may be sent to
	TrustedRootDomains []string // hostnames (and their subdomains) replies are accepted from
}

// Handshake is safe for concurrent use.
type Handshake struct {
	cfg    Config
	poster Poster
	log    zerolog.Logger

	mu       sync.Mutex
	state    State
	identity *Identity
	started  bool
	closed   bool
	onChange func(State, *Identity)
}

// New returns an Unresolved handshake.
func New(cfg Config, poster Poster, log zerolog.Logger) *Handshake {
	return &Handshake{cfg: cfg, poster: poster, log: log}
}

// OnChange registers a callback invoked after every state transition.
func (h *Handshake) OnChange(fn func(State, *Identity)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Start sends the session request to the referrer's origin if it is trusted.
// Repeated calls are no-ops.
func (h *Handshake) Start(referrer string) error {
	h.mu.Lock()
	if h.closed || h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	origin, ok := originOf(referrer)
	if !ok || !h.trustedTarget(origin) {
		h.log.Warn().Str("referrer", referrer).Msg("parent origin not allowed; session not requested")
		return ErrUntrustedOrigin
	}

	req := Request{Type: TypeRequestSession, Game: h.cfg.GameID, History: h.cfg.WithHistory}
	if err := h.poster.PostMessage(origin, req); err != nil {
		return err
	}
	h.transition(AwaitingParent, nil, true)
	return nil
}

// Receive processes one inbound message from origin.
// Messages from untrusted origins are dropped with ErrUntrustedOrigin;
// unknown message types are ignored.
func (h *Handshake) Receive(origin string, data []byte) error {
	if h.isClosed() {
		return nil
	}
	if !h.trustedSender(origin) {
		h.log.Warn().Str("origin", origin).Msg("origin not allowed; message dropped")
		return ErrUntrustedOrigin
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		h.log.Debug().Err(err).Str("origin", origin).Msg("ignoring non-object message")
		return nil
	}
	if resp.Type != TypeSession {
		return nil
	}

	raw := bytes.TrimSpace(resp.Session)
	switch {
	case bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("false")):
		h.transition(NoIdentity, nil, false)
	case len(raw) > 0 && raw[0] == '{':
		var id Identity
		if err := json.Unmarshal(raw, &id); err != nil || id.ID == "" {
			h.log.Warn().Str("origin", origin).Msg("malformed session payload")
			h.transition(Rejected, nil, false)
			return nil
		}
		h.transition(Identified, &id, false)
	default:
		h.log.Warn().Str("origin", origin).Msg("unrecognized session payload")
		h.transition(Rejected, nil, false)
	}
	return nil
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Identity returns the resolved user when the state is Identified.
func (h *Handshake) Identity() (*Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Identified || h.identity == nil {
		return nil, false
	}
	cp := *h.identity
	return &cp, true
}

// Close deregisters the handshake; later messages are ignored.
func (h *Handshake) Close() {
	h.mu.Lock()
	h.closed = true
	h.onChange = nil
	h.mu.Unlock()
}

func (h *Handshake) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// transition moves to next. fromStart guards the AwaitingParent step so a
// reply that raced ahead of the request is not overwritten.
func (h *Handshake) transition(next State, id *Identity, fromStart bool) {
	h.mu.Lock()
	if h.closed || (fromStart && h.state != Unresolved) {
		h.mu.Unlock()
		return
	}
	h.state, h.identity = next, id
	fn := h.onChange
	h.mu.Unlock()

	h.log.Debug().Stringer("state", next).Msg("handshake transition")
	if fn != nil {
		fn(next, id)
	}
}

// trustedTarget is an exact allow-list lookup on the full origin.
func (h *Handshake) trustedTarget(origin string) bool {
	for _, o := range h.cfg.TrustedOrigins {
		if c, ok := originOf(o); ok && c == origin {
			return true
		}
	}
	return false
}

// trustedSender accepts a root domain or any subdomain of it.
func (h *Handshake) trustedSender(origin string) bool {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, root := range h.cfg.TrustedRootDomains {
		root = strings.ToLower(strings.Trim(strings.TrimSpace(root), "."))
		if root == "" {
			continue
		}
		if host == root || strings.HasSuffix(host, "."+root) {
			return true
		}
	}
	return false
}

// originOf reduces a URL to scheme://host[:port].
func originOf(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
