// internal/hub/hub.go
//
// Registry of live game sessions, one per (client, day).
// Sessions are created lazily from the stored history and evicted after a
// period of inactivity; eviction closes the session, which waits for any
// in-flight score report and detaches its identity source.

package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/daily"
	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/handshake"
)

// StaleSessionTimeout is how long an untouched session is kept in memory.
const StaleSessionTimeout = 2 * time.Hour

// Options wires the hub's collaborators.
type Options struct {
	GameID        string
	Selector      *daily.Selector
	Real          *countries.Pool
	Fictional     *countries.Pool
	Store         game.GuessStore
	Reporter      game.Reporter  // optional
	Locator       game.IPLocator // optional
	ReportTimeout time.Duration
	Handshake     handshake.Config
	Logger        zerolog.Logger
}

type entry struct {
	session  *game.Session
	lastUsed time.Time
}

// Hub manages all active game sessions.
type Hub struct {
	opts      Options
	log       zerolog.Logger
	realEval  *game.Evaluator
	fictEval  *game.Evaluator
	mu        sync.Mutex
	sessions  map[string]*entry
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// New creates a hub and starts its cleanup loop.
func New(opts Options) *Hub {
	h := &Hub{
		opts:     opts,
		log:      opts.Logger,
		realEval: game.NewEvaluator(opts.Real),
		fictEval: game.NewEvaluator(opts.Fictional),
		sessions: make(map[string]*entry),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	go h.cleanupLoop()
	return h
}

// Session returns the live session for (clientID, day), creating it from the
// stored history when needed. consent is refreshed on every call.
func (h *Hub) Session(ctx context.Context, clientID, day string, consent bool) (*game.Session, error) {
	k := clientID + "|" + day

	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.sessions[k]; ok {
		e.lastUsed = h.now()
		e.session.SetConsent(consent)
		return e.session, nil
	}

	eval := h.realEval
	if daily.IsSpecialDay(day) {
		eval = h.fictEval
	}
	var target *countries.Country
	if t, ok := h.opts.Selector.Target(day); ok {
		target = &t
	}

	s, err := game.NewSession(ctx, game.Options{
		GameID:        h.opts.GameID,
		ClientID:      clientID,
		Day:           day,
		Target:        target,
		Evaluator:     eval,
		Store:         h.opts.Store,
		Consent:       consent,
		Reporter:      h.opts.Reporter,
		Locator:       h.opts.Locator,
		ReportTimeout: h.opts.ReportTimeout,
		Logger:        h.log,
	})
	if err != nil {
		return nil, err
	}
	h.sessions[k] = &entry{session: s, lastUsed: h.now()}
	h.log.Debug().Str("client", clientID).Str("day", day).Msg("session created")
	return s, nil
}

// NewHandshake builds an Unresolved handshake that posts through p.
func (h *Hub) NewHandshake(p handshake.Poster) *handshake.Handshake {
	return handshake.New(h.opts.Handshake, p, h.log)
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close shuts down the hub and all sessions.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*entry)
	h.mu.Unlock()

	for _, e := range sessions {
		e.session.Close()
	}
}

// cleanupLoop periodically evicts stale sessions.
func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.cleanupStale()
		}
	}
}

// cleanupStale removes sessions that have been idle for too long.
// A session with an attached bridge stays alive until the bridge closes.
func (h *Hub) cleanupStale() int {
	now := h.now()
	var stale []*game.Session

	h.mu.Lock()
	for k, e := range h.sessions {
		if now.Sub(e.lastUsed) > StaleSessionTimeout && !e.session.Attached() {
			stale = append(stale, e.session)
			delete(h.sessions, k)
		}
	}
	h.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		h.log.Info().Int("count", len(stale)).Msg("stale sessions cleaned up")
	}
	return len(stale)
}
