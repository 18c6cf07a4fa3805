package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/robalobadob/tradle/internal/game"
	"github.com/robalobadob/tradle/internal/scores"
)

// POST /tradle/score
// Receives the end-of-game report. Duplicate ids are accepted and ignored.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		writeError(w, http.StatusServiceUnavailable, "collector_disabled")
		return
	}
	var rep game.Report
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&rep); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := s.scores.Insert(r.Context(), rep); errors.Is(err, scores.ErrArchive) {
		s.log.Warn().Err(err).Str("id", rep.ID).Msg("score stored but not archived")
	} else if err != nil {
		if errors.Is(err, scores.ErrInvalidReport) {
			writeError(w, http.StatusBadRequest, "invalid_report")
			return
		}
		s.log.Error().Err(err).Str("id", rep.ID).Msg("store score")
		writeError(w, http.StatusInternalServerError, "score_not_saved")
		return
	}
	s.log.Info().Str("id", rep.ID).Str("day", rep.Date).Bool("won", rep.Won).Int("attempts", len(rep.Guesses)).Msg("score received")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// GET /tradle/scores?date=YYYY-MM-DD
func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		writeError(w, http.StatusServiceUnavailable, "collector_disabled")
		return
	}
	day := s.dayKey(r)
	sum, err := s.scores.Summary(r.Context(), s.cfg.Game.ID, day)
	if err != nil {
		s.log.Error().Err(err).Str("day", day).Msg("score summary")
		writeError(w, http.StatusInternalServerError, "summary_unavailable")
		return
	}
	_ = json.NewEncoder(w).Encode(sum)
}
