// Package types contains common types used across the application
package types

// VariantView describes one configured variant for read endpoints.
type VariantView struct {
	ID          string  `json:"id"`
	Weight      float64 `json:"weight"`
	Probability float64 `json:"probability"`
}

// ExperimentView is the read shape of GET /experiment.
type ExperimentView struct {
	Route        string        `json:"route"`
	CookieName   string        `json:"cookie_name"`
	CookieMaxAge int           `json:"cookie_max_age_seconds"`
	Persist      bool          `json:"persist_assignment"`
	MarkerPolicy string        `json:"marker_policy"`
	Variants     []VariantView `json:"variants"`
}

// VariantCount holds assignment counters for a single variant.
type VariantCount struct {
	New      int64 `json:"new"`
	Reused   int64 `json:"reused"`
	Replaced int64 `json:"replaced"`
}

// Total sums every kind of assignment.
func (c VariantCount) Total() int64 {
	return c.New + c.Reused + c.Replaced
}
