// Package model contains domain models passed between layers.
package model

// Variant is one experience a visitor may be shown, e.g. a page template.
type Variant struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// Experiment is an ordered set of variants with relative selection weights.
// Weights need not sum to 1. The order is significant for the cumulative walk.
type Experiment struct {
	Variants []Variant `json:"variants"`
}

// IDs returns the variant identifiers in declared order.
func (e Experiment) IDs() []string {
	ids := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		ids[i] = v.ID
	}
	return ids
}

// Has reports whether id names a variant of the experiment.
func (e Experiment) Has(id string) bool {
	for _, v := range e.Variants {
		if v.ID == id {
			return true
		}
	}
	return false
}

// TotalWeight sums the variant weights.
func (e Experiment) TotalWeight() float64 {
	var total float64
	for _, v := range e.Variants {
		total += v.Weight
	}
	return total
}

// Probabilities returns each variant's normalized selection probability keyed by id.
// A zero total yields an empty map.
func (e Experiment) Probabilities() map[string]float64 {
	total := e.TotalWeight()
	out := make(map[string]float64, len(e.Variants))
	if total <= 0 {
		return out
	}
	for _, v := range e.Variants {
		out[v.ID] += v.Weight / total
	}
	return out
}

// Decision is the outcome of a single assignment.
type Decision struct {
	// Variant is the identifier to render.
	Variant string `json:"variant"`
	// Reused is true when Variant came from an existing marker.
	Reused bool `json:"reused"`
	// Replaced is true when a stale marker was discarded and a fresh draw made.
	Replaced bool `json:"replaced,omitempty"`
}

// NeedsPersist reports whether the caller should store Variant as the client's marker.
func (d Decision) NeedsPersist() bool {
	return !d.Reused
}

// Kind labels the decision for logs and metrics.
func (d Decision) Kind() string {
	switch {
	case d.Reused:
		return "reused"
	case d.Replaced:
		return "replaced"
	default:
		return "new"
	}
}
