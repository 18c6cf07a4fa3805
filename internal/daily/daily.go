// internal/daily/daily.go
//
// Daily puzzle selection.
//   - DayKey:   YYYY-MM-DD for "now" in UTC, or for a valid ?date= override.
//   - Selector: maps a day key to the day's target country.
//
// Selection is HMAC(salt, dayKey) % poolSize, so every player gets the same
// target on the same day and a fresh process picks the same country again.
// On the special day (April 1) a fixed fictional target is used instead.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/geo"
)

// KeyLayout is the day-string format.
const KeyLayout = "2006-01-02"

// specialMonthDay is the calendar day that swaps in the fictional pool.
const specialMonthDay = "04-01"

// ErrInvalidOverrideDate is returned alongside the fallback key when the
// override cannot be parsed. Callers log it and carry on.
var ErrInvalidOverrideDate = errors.New("invalid override date")

// SpecialTarget is the fixed answer on the special day.
var SpecialTarget = countries.Country{
	Code:  "AJ",
	Name:  "Land of Oz",
	Point: geo.Point{Lat: 42.546245, Lng: 1.601554},
}

// overrideLayouts are the ISO forms accepted for the override parameter.
var overrideLayouts = []string{
	KeyLayout,
	"20060102",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(KeyLayout)
}

// DayKey returns the override formatted as YYYY-MM-DD when it parses, and
// today's UTC key otherwise. A non-empty override that fails to parse also
// yields ErrInvalidOverrideDate; the returned key is still usable.
func DayKey(now time.Time, override string) (string, error) {
	override = strings.TrimSpace(override)
	if override == "" {
		return DateKey(now), nil
	}
	for _, layout := range overrideLayouts {
		if t, err := time.Parse(layout, override); err == nil {
			// Keep the calendar date as written; do not shift zones.
			return t.Format(KeyLayout), nil
		}
	}
	return DateKey(now), ErrInvalidOverrideDate
}

// IsSpecialDay reports whether dayKey falls on the special calendar day.
func IsSpecialDay(dayKey string) bool {
	return strings.HasSuffix(dayKey, "-"+specialMonthDay)
}

// IsHistorical reports whether dayKey is not today's UTC day.
func IsHistorical(dayKey string, now time.Time) bool {
	return dayKey != DateKey(now)
}

// Index returns a deterministic index for a day key using
// HMAC(salt, dayKey) % n.
func Index(dayKey, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(dayKey))
	sum := h.Sum(nil)
	// take first 8 bytes to uint64 for modulus distribution
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// Selector resolves day keys to targets from a fixed pool.
type Selector struct {
	pool *countries.Pool
	salt string
}

// NewSelector returns a selector over pool.
func NewSelector(pool *countries.Pool, salt string) *Selector {
	return &Selector{pool: pool, salt: salt}
}

// Target returns the day's answer. ok is false only when the pool is empty.
func (s *Selector) Target(dayKey string) (countries.Country, bool) {
	if IsSpecialDay(dayKey) {
		return SpecialTarget, true
	}
	if s.pool == nil || s.pool.Len() == 0 {
		return countries.Country{}, false
	}
	return s.pool.At(Index(dayKey, s.salt, s.pool.Len())), true
}
