package simulate

import (
	"errors"
	"time"
)

// Config holds configuration for a traffic simulation.
type Config struct {
	BaseURL          string        // Base URL of the service
	Route            string        // Path of the A/B page; empty asks /experiment
	Visitors         int           // Number of distinct visitors
	VisitsPerVisitor int           // Page loads per visitor
	Workers          int           // Number of concurrent workers
	Timeout          time.Duration // HTTP request timeout
	Cookies          bool          // Keep a cookie jar per visitor
	Verbose          bool          // Log every visit
}

// ErrInvalidConfig is returned for simulation settings that cannot run.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Validate checks the simulation settings.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url must not be empty"))
	}
	if c.Visitors <= 0 {
		errs = append(errs, errors.New("visitors must be > 0"))
	}
	if c.VisitsPerVisitor <= 0 {
		errs = append(errs, errors.New("visits per visitor must be > 0"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be > 0"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// Visit is the outcome of one page load.
type Visit struct {
	VisitorID  string
	Variant    string
	Assignment string
	Status     int
}

// VariantShare compares the observed share of first visits with the configured probability.
type VariantShare struct {
	Variant   string
	Visitors  int64
	Share     float64
	Expected  float64
	Deviation float64
}

// Report summarizes a simulation run.
type Report struct {
	Visits    int64
	Failed    int64
	Reused    int64
	Switched  int64 // visitors that saw more than one variant
	Shares    []VariantShare
	StartTime time.Time
	Duration  time.Duration
}

// MaxDeviation is the largest absolute gap between observed and expected share.
func (r *Report) MaxDeviation() float64 {
	var maxDev float64
	for _, s := range r.Shares {
		if s.Deviation > maxDev {
			maxDev = s.Deviation
		}
	}
	return maxDev
}
