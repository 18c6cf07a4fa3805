package game

import (
	"fmt"
	"strings"

	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/geo"
)

// Evaluator resolves guess text against one pool and scores it.
type Evaluator struct {
	pool *countries.Pool
}

// NewEvaluator returns an evaluator that resolves names in pool.
func NewEvaluator(pool *countries.Pool) *Evaluator {
	return &Evaluator{pool: pool}
}

// Evaluate resolves raw to a country and scores it against target.
// Unresolvable text yields ErrUnknownEntity and no Guess.
// The same text always produces the same score.
func (e *Evaluator) Evaluate(raw string, target countries.Country) (Guess, error) {
	guessed, ok := e.pool.Lookup(raw)
	if !ok {
		return Guess{}, fmt.Errorf("%w: %q", ErrUnknownEntity, strings.TrimSpace(raw))
	}
	return Guess{
		Name:      raw,
		Country:   guessed,
		Distance:  geo.Distance(guessed.Point, target.Point),
		Direction: geo.BearingClass(guessed.Point, target.Point),
	}, nil
}
