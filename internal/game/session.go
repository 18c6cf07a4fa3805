// internal/game/session.go
//
// Game session orchestrator for one client and one puzzle day.
//
// Submit runs strictly in submission order (one mutex per session):
//   1. reject when the day's target is unknown or the game is over,
//   2. evaluate the text (unknown names consume no attempt),
//   3. append to the history (persisted before anything else happens),
//   4. on the transition into "ended", fire the score report once.
//
// The report is best effort: it runs in the background with its own timeout,
// is gated by consent, and its failure is only logged.

package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/handshake"
)

// Reporter delivers a score report.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// IPLocator looks up the network location of a client address.
type IPLocator interface {
	Lookup(ctx context.Context, ip string) (json.RawMessage, error)
}

// IdentitySource yields the signed-in user, if one has been confirmed.
type IdentitySource interface {
	Identity() (*handshake.Identity, bool)
}

// Options configures a Session.
type Options struct {
	GameID        string
	ClientID      string
	Day           string
	Target        *countries.Country // nil when the puzzle is not available
	Evaluator     *Evaluator
	Store         GuessStore
	Consent       bool
	ClientIP      string    // player's address; empty skips the IP lookup
	Reporter      Reporter  // optional
	Locator       IPLocator // optional
	ReportTimeout time.Duration
	Logger        zerolog.Logger
}

// Session is safe for concurrent use; submissions are serialized.
type Session struct {
	opts    Options
	log     zerolog.Logger
	history *History

	mu       sync.Mutex
	consent  bool
	clientIP string
	identity IdentitySource
	reported bool
	wg       sync.WaitGroup
}

// NewSession loads the stored history for the day.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	h, err := LoadHistory(ctx, opts.Store, opts.ClientID, opts.Day)
	if err != nil {
		return nil, err
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 10 * time.Second
	}
	return &Session{
		opts:     opts,
		log:      opts.Logger.With().Str("client", opts.ClientID).Str("day", opts.Day).Logger(),
		history:  h,
		consent:  opts.Consent,
		clientIP: opts.ClientIP,
	}, nil
}

// Day returns the session's day key.
func (s *Session) Day() string { return s.opts.Day }

// Target returns the day's answer, if available.
func (s *Session) Target() (countries.Country, bool) {
	if s.opts.Target == nil {
		return countries.Country{}, false
	}
	return *s.opts.Target, true
}

// Guesses returns a copy of the history.
func (s *Session) Guesses() []Guess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Guesses()
}

// State returns the derived game state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.State()
}

// SetConsent updates the network consent flag.
func (s *Session) SetConsent(ok bool) {
	s.mu.Lock()
	s.consent = ok
	s.mu.Unlock()
}

// SetClientIP records the player's latest network address.
func (s *Session) SetClientIP(ip string) {
	s.mu.Lock()
	s.clientIP = ip
	s.mu.Unlock()
}

// AttachIdentity sets the identity source used for reports; nil detaches.
func (s *Session) AttachIdentity(src IdentitySource) {
	s.mu.Lock()
	s.identity = src
	s.mu.Unlock()
}

// DetachIdentity clears the identity source if it is still src.
func (s *Session) DetachIdentity(src IdentitySource) {
	s.mu.Lock()
	if s.identity == src {
		s.identity = nil
	}
	s.mu.Unlock()
}

// Attached reports whether an identity source (an open frame bridge) is attached.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil
}

// Identity returns the attached identity, if resolved.
func (s *Session) Identity() (*handshake.Identity, bool) {
	s.mu.Lock()
	src := s.identity
	s.mu.Unlock()
	if src == nil {
		return nil, false
	}
	return src.Identity()
}

// Submit evaluates and records one guess.
// Errors: ErrNoTarget (silently ignorable), ErrGameEnded, ErrUnknownEntity,
// or a store failure. Only a nil error means an attempt was consumed.
func (s *Session) Submit(ctx context.Context, raw string) (Guess, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.Target == nil {
		return Guess{}, s.history.State(), ErrNoTarget
	}
	if s.history.State().Ended {
		return Guess{}, s.history.State(), ErrGameEnded
	}

	g, err := s.opts.Evaluator.Evaluate(raw, *s.opts.Target)
	if err != nil {
		return Guess{}, s.history.State(), err
	}
	guesses, err := s.history.Append(ctx, g)
	if err != nil {
		return Guess{}, s.history.State(), err
	}

	st := StateOf(guesses)
	s.log.Debug().Str("guess", g.Country.Code).Int("distance", g.Distance).Int("attempt", st.Attempts).Msg("guess recorded")
	if st.Ended {
		s.onEnded(guesses, st)
	}
	return g, st, nil
}

// onEnded fires the score report once. Called with s.mu held.
func (s *Session) onEnded(guesses []Guess, st State) {
	if s.reported {
		return
	}
	s.reported = true
	s.log.Info().Bool("won", st.Won).Int("attempts", st.Attempts).Msg("game ended")

	if !s.consent {
		s.log.Debug().Msg("consent withheld; score not reported")
		return
	}
	if s.opts.Reporter == nil {
		return
	}

	r := Report{
		ID:          uuid.NewString(),
		Game:        s.opts.GameID,
		Date:        s.opts.Day,
		SubmittedAt: time.Now().UTC(),
		Answer:      *s.opts.Target,
		Guesses:     guesses,
		Won:         st.Won,
	}
	if s.identity != nil {
		if id, ok := s.identity.Identity(); ok {
			r.User = id
		}
	}

	ip := s.clientIP

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReportTimeout)
		defer cancel()
		s.deliver(ctx, r, ip)
	}()
}

func (s *Session) deliver(ctx context.Context, r Report, clientIP string) {
	switch {
	case s.opts.Locator == nil:
	case clientIP == "":
		s.log.Debug().Msg("client address unknown; reporting without ip lookup")
	default:
		ip, err := s.opts.Locator.Lookup(ctx, clientIP)
		if err != nil {
			s.log.Warn().Err(err).Msg("ip lookup failed; reporting without it")
		} else {
			r.IP = ip
		}
	}
	if err := s.opts.Reporter.Report(ctx, r); err != nil {
		if !errors.Is(err, ErrReportDelivery) {
			err = errors.Join(ErrReportDelivery, err)
		}
		s.log.Warn().Err(err).Str("report", r.ID).Msg("unable to post score")
		return
	}
	s.log.Info().Str("report", r.ID).Msg("score reported")
}

// Close waits for an in-flight report and detaches the identity source.
func (s *Session) Close() {
	s.wg.Wait()
	s.AttachIdentity(nil)
}
