package assign

import "fmt"

// Source yields uniform values in [0, 1). Implementations used by a shared
// Assignor must be safe for concurrent use.
type Source interface {
	Float64() float64
}

// MarkerPolicy decides what happens to a marker that names no current variant.
type MarkerPolicy int

const (
	// MarkerVerbatim returns any present marker unchanged, known or not.
	MarkerVerbatim MarkerPolicy = iota
	// MarkerStrict treats an unknown marker as absent and draws again.
	MarkerStrict
)

// String implements fmt.Stringer.
func (p MarkerPolicy) String() string {
	switch p {
	case MarkerVerbatim:
		return "verbatim"
	case MarkerStrict:
		return "strict"
	default:
		return fmt.Sprintf("MarkerPolicy(%d)", int(p))
	}
}

// ParseMarkerPolicy maps a config value to a MarkerPolicy. Empty means verbatim.
func ParseMarkerPolicy(s string) (MarkerPolicy, error) {
	switch s {
	case "", "verbatim":
		return MarkerVerbatim, nil
	case "strict":
		return MarkerStrict, nil
	default:
		return MarkerVerbatim, fmt.Errorf("unknown marker policy %q", s)
	}
}

// Option applies a configuration option to the Assignor.
type Option func(*Assignor)

// WithSource sets the random source used for fresh draws.
func WithSource(src Source) Option {
	return func(a *Assignor) {
		if src != nil {
			a.src = src
		}
	}
}

// WithMarkerPolicy sets how unknown markers are handled.
func WithMarkerPolicy(p MarkerPolicy) Option {
	return func(a *Assignor) {
		a.policy = p
	}
}
