package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/daily"
	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/handshake"
	"github.com/robalobadob/tradle/internal/report"
	"github.com/robalobadob/tradle/internal/store"
)

// gameStateRes is the JSON shape of GET /api/game.
type gameStateRes struct {
	Day         string              `json:"day"`
	Historical  bool                `json:"historical"`
	Special     bool                `json:"special"`
	MaxAttempts int                 `json:"maxAttempts"`
	Guesses     []game.Guess        `json:"guesses"`
	Attempts    int                 `json:"attempts"`
	Ended       bool                `json:"ended"`
	Won         bool                `json:"won"`
	Answer      *countries.Country  `json:"answer,omitempty"` // only once ended
	Modes       map[string]bool     `json:"modes"`
	Identity    *handshake.Identity `json:"identity,omitempty"`
}

type guessReq struct {
	Guess string `json:"guess"`
}

type guessRes struct {
	Guess  game.Guess         `json:"guess"`
	State  game.State         `json:"state"`
	Answer *countries.Country `json:"answer,omitempty"`
}

type modeReq struct {
	Enabled bool `json:"enabled"`
}

// sessionFor resolves the live session for the request's client and day,
// refreshing its consent flag and client address.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*game.Session, error) {
	sess, err := s.hub.Session(r.Context(), clientID(r), s.dayKey(r), report.Consent(r.URL.Query()))
	if err != nil {
		return nil, err
	}
	sess.SetClientIP(clientAddr(r))
	return sess, nil
}

// GET /api/game
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.log.Error().Err(err).Msg("load session")
		writeError(w, http.StatusInternalServerError, "session_unavailable")
		return
	}
	modes, err := s.loadModes(r, sess.Day())
	if err != nil {
		s.log.Error().Err(err).Msg("load modes")
		writeError(w, http.StatusInternalServerError, "modes_unavailable")
		return
	}

	st := sess.State()
	res := gameStateRes{
		Day:         sess.Day(),
		Historical:  daily.IsHistorical(sess.Day(), s.now()),
		Special:     daily.IsSpecialDay(sess.Day()),
		MaxAttempts: game.MaxAttempts,
		Guesses:     sess.Guesses(),
		Attempts:    st.Attempts,
		Ended:       st.Ended,
		Won:         st.Won,
		Modes:       modes,
	}
	if res.Guesses == nil {
		res.Guesses = []game.Guess{}
	}
	if st.Ended {
		if t, ok := sess.Target(); ok {
			res.Answer = &t
		}
	}
	if id, ok := sess.Identity(); ok {
		res.Identity = id
	}
	_ = json.NewEncoder(w).Encode(res)
}

// POST /api/game/guess
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Guess) == "" {
		writeError(w, http.StatusBadRequest, "empty_guess")
		return
	}

	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.log.Error().Err(err).Msg("load session")
		writeError(w, http.StatusInternalServerError, "session_unavailable")
		return
	}

	g, st, err := sess.Submit(r.Context(), req.Guess)
	switch {
	case errors.Is(err, game.ErrNoTarget):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, game.ErrUnknownEntity):
		writeError(w, http.StatusUnprocessableEntity, "unknown_country")
		return
	case errors.Is(err, game.ErrGameEnded):
		writeError(w, http.StatusConflict, "game_finished")
		return
	case err != nil:
		s.log.Error().Err(err).Str("day", sess.Day()).Msg("record guess")
		writeError(w, http.StatusInternalServerError, "guess_not_saved")
		return
	}

	res := guessRes{Guess: g, State: st}
	if st.Ended {
		if t, ok := sess.Target(); ok {
			res.Answer = &t
		}
	}
	_ = json.NewEncoder(w).Encode(res)
}

// PUT /api/game/modes/{mode}
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	mode := chi.URLParam(r, "mode")
	var req modeReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	day := s.dayKey(r)
	if err := s.modes.SaveMode(r.Context(), clientID(r), day, mode, req.Enabled); errors.Is(err, store.ErrUnknownMode) {
		writeError(w, http.StatusNotFound, "unknown_mode")
		return
	} else if err != nil {
		s.log.Error().Err(err).Str("mode", mode).Msg("save mode")
		writeError(w, http.StatusInternalServerError, "mode_not_saved")
		return
	}
	modes, err := s.loadModes(r, day)
	if err != nil {
		s.log.Error().Err(err).Msg("load modes")
		writeError(w, http.StatusInternalServerError, "modes_unavailable")
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"modes": modes})
}

// loadModes returns every known mode, falling back to the configured default.
func (s *Server) loadModes(r *http.Request, day string) (map[string]bool, error) {
	defaults := map[string]bool{
		store.ModeHideImage: s.cfg.Game.HideImageMode,
		store.ModeRotation:  s.cfg.Game.RotationMode,
	}
	out := make(map[string]bool, len(defaults))
	for _, m := range store.KnownModes() {
		enabled, found, err := s.modes.LoadMode(r.Context(), clientID(r), day, m)
		if err != nil {
			return nil, err
		}
		if !found {
			enabled = defaults[m]
		}
		out[m] = enabled
	}
	return out, nil
}
