package ws

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/handshake"
)

// SessionResolver returns the caller's game session for a request.
type SessionResolver func(w http.ResponseWriter, r *http.Request) (*game.Session, error)

// HandshakeFactory builds a fresh handshake posting through p.
type HandshakeFactory func(p handshake.Poster) *handshake.Handshake

// Handler upgrades shell connections and bridges cross-frame messages into
// the page's handshake.
type Handler struct {
	resolve      SessionResolver
	newHandshake HandshakeFactory
	upgrader     websocket.Upgrader
	log          zerolog.Logger
}

// NewHandler creates a bridge handler. Upgrades are accepted from
// allowedOrigin, from the serving host itself, or without an Origin header.
func NewHandler(resolve SessionResolver, newHandshake HandshakeFactory, allowedOrigin string, log zerolog.Logger) *Handler {
	return &Handler{
		resolve:      resolve,
		newHandshake: newHandshake,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || strings.EqualFold(origin, allowedOrigin) {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && strings.EqualFold(u.Host, r.Host)
			},
		},
		log: log,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, err := h.resolve(w, r)
	if err != nil {
		h.log.Error().Err(err).Msg("resolve session for bridge")
		http.Error(w, `{"error":"session_unavailable"}`, http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, session, h.log.With().Str("day", session.Day()).Logger())
	client.SetHandshake(h.newHandshake(client))

	h.log.Debug().Str("day", session.Day()).Msg("frame bridge connected")
	client.Run()
	h.log.Debug().Str("day", session.Day()).Msg("frame bridge closed")
}
