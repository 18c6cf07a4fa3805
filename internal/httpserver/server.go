// internal/httpserver/server.go
//
// HTTP server wiring for the Tradle game host.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (client cookie): GET /api/game, POST /api/game/guess,
//     PUT /api/game/modes/{mode}, GET /ws/frame.
//   - Score collector: POST /tradle/score, GET /tradle/scores.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so the client cookie works).
//   - Every game request carries ?date= (puzzle override) and ?consent=.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/robalobadob/tradle/internal/config"
	"github.com/robalobadob/tradle/internal/daily"
	"github.com/robalobadob/tradle/internal/hub"
	"github.com/robalobadob/tradle/internal/scores"
	"github.com/robalobadob/tradle/internal/store"
	"github.com/robalobadob/tradle/internal/transport/ws"
)

// Server bundles router, session hub and persistence handles.
type Server struct {
	r      *chi.Mux
	srv    *http.Server
	cfg    *config.Config
	hub    *hub.Hub
	modes  store.ModeStore
	scores *scores.Store // nil disables the collector
	log    zerolog.Logger
	now    func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg *config.Config, h *hub.Hub, modes store.ModeStore, sc *scores.Store, log zerolog.Logger) *Server {
	s := &Server{r: chi.NewRouter(), cfg: cfg, hub: h, modes: modes, scores: sc, log: log, now: time.Now}

	// --- middleware ---
	s.r.Use(chimw.RequestID)  // add X-Request-ID
	s.r.Use(chimw.RealIP)     // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)  // recover from panics
	s.r.Use(s.corsFromConfig) // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"service":"tradle-go","endpoints":["/health","GET /api/game","POST /api/game/guess","PUT /api/game/modes/{mode}","GET /ws/frame","POST /tradle/score","GET /tradle/scores"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.hub.Count()})
	})

	// JSON API, bounded handler time
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.With(s.withClient).Get("/api/game", s.handleState)
		r.With(s.withClient).Post("/api/game/guess", s.handleGuess)
		r.With(s.withClient).Put("/api/game/modes/{mode}", s.handleSetMode)

		r.Post("/tradle/score", s.handleScore)
		r.Get("/tradle/scores", s.handleScores)
	})

	// Long-lived websocket: no timeout middleware.
	bridge := ws.NewHandler(s.sessionFor, s.hub.NewHandshake, cfg.Server.ClientOrigin, log)
	s.r.With(s.withClient).Get("/ws/frame", bridge.ServeHTTP)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start begins serving HTTP on addr. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for active handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// dayKey resolves the puzzle day for a request; a bad override is logged only.
func (s *Server) dayKey(r *http.Request) string {
	day, err := daily.DayKey(s.now(), r.URL.Query().Get("date"))
	if err != nil {
		s.log.Info().Str("date", r.URL.Query().Get("date")).Msg("invalid date parameter, using current date instead")
	}
	return day
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromConfig enables credentialed CORS for the configured shell origin.
func (s *Server) corsFromConfig(next http.Handler) http.Handler {
	origin := s.cfg.Server.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes {"error": code} with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
