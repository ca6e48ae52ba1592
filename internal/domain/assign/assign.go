// Package assign picks the page variant a visitor sees in an A/B test.
//
// A visitor that already carries a marker keeps it; everyone else gets a
// weighted random draw over the experiment's variants. The Assignor holds no
// per-request state, so one instance serves all requests concurrently.
package assign

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/okian/openab/internal/domain/model"
)

// globalSource draws from the math/rand/v2 top-level generator, which is safe
// for concurrent use without a shared lock.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Assignor decides which variant to render.
type Assignor struct {
	src    Source
	policy MarkerPolicy
}

// New creates an Assignor. Defaults: process-wide random source, verbatim markers.
func New(opts ...Option) *Assignor {
	a := &Assignor{
		src:    globalSource{},
		policy: MarkerVerbatim,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAssignor = New()

// Assign runs the default Assignor.
func Assign(marker string, exp model.Experiment) (model.Decision, error) {
	return defaultAssignor.Assign(marker, exp)
}

// Policy returns the configured marker policy.
func (a *Assignor) Policy() MarkerPolicy { return a.policy }

// Assign returns the variant for a visitor holding marker ("" when absent).
// The experiment is validated on every call so a bad definition can never
// silently route traffic.
func (a *Assignor) Assign(marker string, exp model.Experiment) (model.Decision, error) {
	if err := Validate(exp); err != nil {
		return model.Decision{}, err
	}

	if marker != "" {
		if a.policy != MarkerStrict || exp.Has(marker) {
			return model.Decision{Variant: marker, Reused: true}, nil
		}
		return model.Decision{Variant: a.draw(exp), Replaced: true}, nil
	}
	return model.Decision{Variant: a.draw(exp)}, nil
}

// draw walks the cumulative weights and returns the first variant whose
// cumulative weight exceeds u. exp must already be validated.
func (a *Assignor) draw(exp model.Experiment) string {
	total := exp.TotalWeight()
	u := a.src.Float64() * total

	var cum float64
	last := ""
	for _, v := range exp.Variants {
		if v.Weight <= 0 {
			continue
		}
		cum += v.Weight
		if cum > u {
			return v.ID
		}
		last = v.ID
	}
	// u*total can round up to total; the last positive-weight variant owns that edge.
	return last
}

// Validate checks that exp is drawable: non-empty, every id set, every weight
// finite and non-negative, and at least one weight positive.
func Validate(exp model.Experiment) error {
	if len(exp.Variants) == 0 {
		return fmt.Errorf("%w: no variants", ErrInvalidConfiguration)
	}
	var total float64
	for i, v := range exp.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: variant %d has an empty id", ErrInvalidConfiguration, i)
		}
		if math.IsNaN(v.Weight) || math.IsInf(v.Weight, 0) {
			return fmt.Errorf("%w: variant %q has a non-finite weight", ErrInvalidConfiguration, v.ID)
		}
		if v.Weight < 0 {
			return fmt.Errorf("%w: variant %q has negative weight %v", ErrInvalidConfiguration, v.ID, v.Weight)
		}
		total += v.Weight
	}
	if total == 0 {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidConfiguration)
	}
	if math.IsInf(total, 0) {
		return fmt.Errorf("%w: weights overflow", ErrInvalidConfiguration)
	}
	return nil
}

// FromLists builds an experiment from parallel lists of variant ids and weights,
// the shape used by page/randomize style configuration.
func FromLists(pages []string, weights []float64) (model.Experiment, error) {
	if len(pages) != len(weights) {
		return model.Experiment{}, fmt.Errorf("%w: %d pages but %d weights",
			ErrInvalidConfiguration, len(pages), len(weights))
	}
	exp := model.Experiment{Variants: make([]model.Variant, len(pages))}
	for i := range pages {
		exp.Variants[i] = model.Variant{ID: pages[i], Weight: weights[i]}
	}
	if err := Validate(exp); err != nil {
		return model.Experiment{}, err
	}
	return exp, nil
}
