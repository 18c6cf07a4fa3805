// internal/scores/store.go
//
// Persistence for the score collector (POST /tradle/score).
//   - Insert: stores a report once per report id (duplicates are ignored).
//   - Summary: per-day plays, wins and the distribution of winning attempts.
//
// Raw IP addresses are never stored: the address found in the report's
// geolocation blob is replaced by a keyed BLAKE2b digest.

package scores

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/robalobadob/tradle/internal/game"
)

var (
	// ErrInvalidReport is returned for reports missing required fields.
	ErrInvalidReport = errors.New("invalid report")
	// ErrArchive marks a report that was stored locally but not archived.
	ErrArchive = errors.New("archive report")
)

// Store wraps the scores table.
type Store struct {
	db      *sql.DB
	ipKey   []byte
	archive Archive
}

// NewStore returns a Store; ipKey seeds the IP digest (at most 64 bytes are used).
func NewStore(db *sql.DB, ipKey string) *Store {
	k := []byte(ipKey)
	if len(k) > blake2b.Size {
		k = k[:blake2b.Size]
	}
	return &Store{db: db, ipKey: k}
}

// SetArchive installs an archive that receives every newly stored report.
func (s *Store) SetArchive(a Archive) { s.archive = a }

// Insert records a report. A repeated id is ignored and not archived again.
// An archive failure is returned joined with ErrArchive; the row is kept.
func (s *Store) Insert(ctx context.Context, r game.Report) error {
	if r.ID == "" || r.Game == "" || r.Date == "" || r.Answer.Code == "" {
		return ErrInvalidReport
	}
	if len(r.Guesses) == 0 || len(r.Guesses) > game.MaxAttempts {
		return ErrInvalidReport
	}

	var userID sql.NullString
	if r.User != nil && r.User.ID != "" {
		userID = sql.NullString{String: r.User.ID, Valid: true}
	}
	var ipHash sql.NullString
	if h := s.hashIP(r.IP); h != "" {
		ipHash = sql.NullString{String: h, Valid: true}
	}

	// The stored payload omits the raw geolocation and the user's profile.
	stored := r
	stored.IP = nil
	stored.User = nil
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO scores
            (id, game, day, answer, guesses, won, user_id, ip_hash, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Game, r.Date, r.Answer.Code, len(r.Guesses), r.Won, userID, ipHash, string(payload),
	)
	if err != nil {
		return err
	}
	if s.archive == nil {
		return nil
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil
	}
	if err := s.archive.Put(ctx, newRecord(r, ipHash.String)); err != nil {
		return errors.Join(ErrArchive, err)
	}
	return nil
}

// Summary aggregates one game day.
type Summary struct {
	Game  string `json:"game"`
	Date  string `json:"date"`
	Plays int    `json:"plays"`
	Wins  int    `json:"wins"`
	// Distribution maps attempts-to-win (1..6) to the number of wins.
	Distribution map[int]int `json:"distribution"`
}

// Summary returns the aggregate for (game, day).
func (s *Store) Summary(ctx context.Context, gameID, day string) (Summary, error) {
	out := Summary{Game: gameID, Date: day, Distribution: map[int]int{}}
	rows, err := s.db.QueryContext(ctx, `
        SELECT guesses, won, COUNT(1)
        FROM scores
        WHERE game=? AND day=?
        GROUP BY guesses, won`, gameID, day,
	)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var guesses, n int
		var won bool
		if err := rows.Scan(&guesses, &won, &n); err != nil {
			return out, err
		}
		out.Plays += n
		if won {
			out.Wins += n
			out.Distribution[guesses] += n
		}
	}
	return out, rows.Err()
}

// hashIP digests the address carried in a geolocation blob.
// Returns "" when no address is present.
func (s *Store) hashIP(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	var ip string
	for _, k := range []string{"IPv4", "IPv6", "ip", "query"} {
		if v, ok := fields[k].(string); ok && strings.TrimSpace(v) != "" {
			ip = strings.TrimSpace(v)
			break
		}
	}
	if ip == "" {
		return ""
	}
	h, err := blake2b.New256(s.ipKey)
	if err != nil {
		return ""
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}
