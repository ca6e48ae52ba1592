// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/openab/internal/domain/assign"
	"github.com/okian/openab/internal/domain/model"
)

// Default values.
const (
	DefaultAddr         = ":9080"
	DefaultRoute        = "/open-ab"
	DefaultCookieName   = "assigned_ab_page"
	DefaultCookieMaxAge = 30 * 24 * time.Hour
)

// Variant configures one variant: the template name and its relative weight.
type Variant struct {
	Name   string  `koanf:"name"`
	Weight float64 `koanf:"weight"`
}

// Experiment accepts either a list of variants or the parallel
// pages/randomize lists. Variants wins when both are set.
type Experiment struct {
	Variants  []Variant `koanf:"variants"`
	Pages     []string  `koanf:"pages"`
	Randomize []float64 `koanf:"randomize"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Route is the path of the A/B test page.
	Route string `koanf:"route"`

	// CookieName names the cookie holding the assignment marker.
	CookieName string `koanf:"cookie_name"`

	// CookieMaxAge is how long a persisted marker lives on the client.
	CookieMaxAge time.Duration `koanf:"cookie_max_age"`

	// PersistAssignment makes the server set the marker cookie on new assignments.
	// Off by default: every visit draws again unless the client already has a marker.
	PersistAssignment bool `koanf:"persist_assignment"`

	// MarkerPolicy is verbatim or strict; see assign.MarkerPolicy.
	MarkerPolicy string `koanf:"marker_policy"`

	// TemplateDir loads variant templates from disk instead of the embedded ones.
	TemplateDir string `koanf:"template_dir"`

	// MetricsEnabled toggles business metrics recording.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// Experiment is the single experiment served on Route.
	Experiment Experiment `koanf:"experiment"`
}

// defaultExperiment is the three-way A/B/C split served out of the box.
func defaultExperiment() Experiment {
	return Experiment{
		Pages:     []string{"variationA.html", "variationB.html", "variationC.html"},
		Randomize: []float64{0.34, 0.33, 0.33},
	}
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              DefaultAddr,
		Route:             DefaultRoute,
		CookieName:        DefaultCookieName,
		CookieMaxAge:      DefaultCookieMaxAge,
		PersistAssignment: false,
		MarkerPolicy:      assign.MarkerVerbatim.String(),
		MetricsEnabled:    true,
		Experiment:        defaultExperiment(),
	}
}

// BuildExperiment converts the configured experiment into the domain model.
func (c *Config) BuildExperiment() (model.Experiment, error) {
	if len(c.Experiment.Variants) > 0 {
		exp := model.Experiment{Variants: make([]model.Variant, len(c.Experiment.Variants))}
		for i, v := range c.Experiment.Variants {
			exp.Variants[i] = model.Variant{ID: v.Name, Weight: v.Weight}
		}
		if err := assign.Validate(exp); err != nil {
			return model.Experiment{}, err
		}
		return exp, nil
	}
	return assign.FromLists(c.Experiment.Pages, c.Experiment.Randomize)
}

// Policy parses MarkerPolicy.
func (c *Config) Policy() (assign.MarkerPolicy, error) {
	return assign.ParseMarkerPolicy(strings.ToLower(strings.TrimSpace(c.MarkerPolicy)))
}

// ReservedRoutes are served by the process itself and cannot host the A/B page.
var ReservedRoutes = []string{"/", "/healthz", "/stats", "/experiment", "/api-docs", "/openapi.yaml"}

// validateRoute accepts a literal path usable as a ServeMux pattern.
func validateRoute(route string) error {
	if !strings.HasPrefix(route, "/") {
		return fmt.Errorf("route %q must start with /", route)
	}
	if strings.ContainsAny(route, "{} \t\r\n") {
		return fmt.Errorf("route %q must be a literal path without wildcards or whitespace", route)
	}
	if slices.Contains(ReservedRoutes, route) {
		return fmt.Errorf("route %q is reserved", route)
	}
	return nil
}

// Validate checks the configuration, returning every problem joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if err := validateRoute(c.Route); err != nil {
		errs = append(errs, err)
	}
	if c.CookieName == "" {
		errs = append(errs, errors.New("cookie_name must not be empty"))
	}
	if c.CookieMaxAge < time.Second {
		errs = append(errs, fmt.Errorf("cookie_max_age %s must be at least 1s", c.CookieMaxAge))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BuildExperiment(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
