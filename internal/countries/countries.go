// internal/countries/countries.go
//
// Country reference data for the game.
//
// Responsibilities:
//   - Load the real and fictional pools from embedded CSV exactly once.
//   - Index every pool by a folded name so free-text guesses resolve
//     case-insensitively and ignore accents ("cote d'ivoire" == "Côte d'Ivoire").
//   - Expose lookups by name and by code.
//
// Pools are immutable after Init; callers share the same Country values.

package countries

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/robalobadob/tradle/assets"
	"github.com/robalobadob/tradle/internal/geo"
)

// Country is one guessable entity.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
	geo.Point
	OECCode string   `json:"oecCode,omitempty"` // trade classification code, when it differs from ISO3
	Aliases []string `json:"-"`
}

// Pool is an immutable, name-indexed list of countries.
type Pool struct {
	list   []Country
	byName map[string]int
	byCode map[string]int
}

// NewPool builds a pool and its name/code indexes.
// Later entries never shadow an earlier name.
func NewPool(list []Country) *Pool {
	p := &Pool{
		list:   list,
		byName: make(map[string]int, len(list)*2),
		byCode: make(map[string]int, len(list)),
	}
	for i, c := range list {
		p.byCode[strings.ToUpper(c.Code)] = i
		for _, n := range append([]string{c.Name}, c.Aliases...) {
			key := Normalize(n)
			if key == "" {
				continue
			}
			if _, taken := p.byName[key]; !taken {
				p.byName[key] = i
			}
		}
	}
	return p
}

// Lookup resolves free text to a country.
func (p *Pool) Lookup(name string) (Country, bool) {
	i, ok := p.byName[Normalize(name)]
	if !ok {
		return Country{}, false
	}
	return p.list[i], true
}

// ByCode returns the country with the given ISO code.
func (p *Pool) ByCode(code string) (Country, bool) {
	i, ok := p.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Country{}, false
	}
	return p.list[i], true
}

// At returns the i-th country.
func (p *Pool) At(i int) Country { return p.list[i] }

// Len returns the pool size.
func (p *Pool) Len() int { return len(p.list) }

// Normalize folds a country name for matching: trims, collapses spaces,
// strips diacritics, unifies apostrophes and applies Unicode case folding.
func Normalize(s string) string {
	s = apostrophes.Replace(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// --- embedded pools ---------------------------------------------------------

var (
	initOnce   sync.Once
	realPool   *Pool
	fictPool   *Pool
	initialErr error
)

// Init loads both pools exactly once.
// Returns an error if either CSV is malformed or the real pool is empty.
func Init() error {
	initOnce.Do(func() {
		rows, err := assets.CountryRecords()
		if err != nil {
			initialErr = fmt.Errorf("countries: read real pool: %w", err)
			return
		}
		list, err := parseRecords(rows)
		if err != nil {
			initialErr = fmt.Errorf("countries: real pool: %w", err)
			return
		}
		if len(list) == 0 {
			initialErr = errors.New("countries: real pool is empty")
			return
		}
		realPool = NewPool(list)

		rows, err = assets.FictionalRecords()
		if err != nil {
			initialErr = fmt.Errorf("countries: read fictional pool: %w", err)
			return
		}
		list, err = parseRecords(rows)
		if err != nil {
			initialErr = fmt.Errorf("countries: fictional pool: %w", err)
			return
		}
		fictPool = NewPool(list)
	})
	return initialErr
}

// Real returns the real-country pool. Init must have succeeded.
func Real() *Pool { return realPool }

// Fictional returns the special-day pool. Init must have succeeded.
func Fictional() *Pool { return fictPool }

// parseRecords converts CSV rows (code, lat, lng, name, oec_code, aliases).
func parseRecords(rows [][]string) ([]Country, error) {
	out := make([]Country, 0, len(rows))
	for n, rec := range rows {
		if len(rec) < 4 {
			return nil, fmt.Errorf("row %d: want at least 4 fields, got %d", n+1, len(rec))
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: latitude: %w", n+1, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: longitude: %w", n+1, err)
		}
		c := Country{
			Code:  strings.ToUpper(strings.TrimSpace(rec[0])),
			Name:  strings.TrimSpace(rec[3]),
			Point: geo.Point{Lat: lat, Lng: lng},
		}
		if len(rec) > 4 {
			c.OECCode = strings.TrimSpace(rec[4])
		}
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			for _, a := range strings.Split(rec[5], "|") {
				if a = strings.TrimSpace(a); a != "" {
					c.Aliases = append(c.Aliases, a)
				}
			}
		}
		out = append(out, c)
	}
	return out, nil
}
