// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/openab/internal/domain/assign"
	"github.com/okian/openab/internal/domain/model"
	"github.com/okian/openab/internal/domain/types"
	"github.com/okian/openab/pkg/logger"
	"github.com/okian/openab/pkg/metrics"
	"github.com/puzpuzpuz/xsync/v4"
)

// UnknownVariant buckets stats for markers that name no configured variant.
// Markers are client controlled, so they never become map keys or metric labels.
const UnknownVariant = "unknown"

// variantCounters tracks assignments of one variant by kind.
type variantCounters struct {
	fresh    *xsync.Counter
	reused   *xsync.Counter
	replaced *xsync.Counter
}

func newVariantCounters() *variantCounters {
	return &variantCounters{
		fresh:    xsync.NewCounter(),
		reused:   xsync.NewCounter(),
		replaced: xsync.NewCounter(),
	}
}

func (c *variantCounters) record(d model.Decision) {
	switch d.Kind() {
	case "reused":
		c.reused.Inc()
	case "replaced":
		c.replaced.Inc()
	default:
		c.fresh.Inc()
	}
}

func (c *variantCounters) snapshot() types.VariantCount {
	return types.VariantCount{
		New:      c.fresh.Value(),
		Reused:   c.reused.Value(),
		Replaced: c.replaced.Value(),
	}
}

// Service serves assignments for a single experiment.
type Service struct {
	mu sync.RWMutex

	// Configuration
	experiment model.Experiment
	policy     assign.MarkerPolicy
	source     assign.Source

	// Components
	assignor *assign.Assignor
	counters *xsync.Map[string, *variantCounters]

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		policy: assign.MarkerVerbatim,
		logger: nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start validates the experiment and prepares the assignor. A bad experiment
// is a deployment error and fails Start with assign.ErrInvalidConfiguration.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	if err := assign.Validate(s.experiment); err != nil {
		metrics.RecordInvalidConfiguration()
		return fmt.Errorf("start assignment service: %w", err)
	}

	opts := []assign.Option{assign.WithMarkerPolicy(s.policy)}
	if s.source != nil {
		opts = append(opts, assign.WithSource(s.source))
	}
	s.assignor = assign.New(opts...)

	s.counters = xsync.NewMap[string, *variantCounters]()
	for _, id := range s.experiment.IDs() {
		s.counters.Store(id, newVariantCounters())
	}
	s.counters.Store(UnknownVariant, newVariantCounters())

	metrics.UpdateExperiment(s.experiment.Probabilities())

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "assignment service started",
		logger.Int("variants", len(s.experiment.Variants)),
		logger.Any("ids", s.experiment.IDs()),
		logger.String("markerPolicy", s.policy.String()),
	)

	return nil
}

// Stop marks the service stopped. Counters survive until the next Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "assignment service stopped")
}

// Assign decides which variant the visitor holding marker sees.
func (s *Service) Assign(ctx context.Context, marker string) (model.Decision, error) {
	s.mu.RLock()
	started, assignor, exp, counters := s.started, s.assignor, s.experiment, s.counters
	s.mu.RUnlock()

	if !started {
		return model.Decision{}, ErrNotStarted
	}

	begin := time.Now()
	d, err := assignor.Assign(marker, exp)
	metrics.RecordAssignmentLatency(float64(time.Since(begin).Nanoseconds()) / 1e3)
	if err != nil {
		if errors.Is(err, assign.ErrInvalidConfiguration) {
			metrics.RecordInvalidConfiguration()
		}
		s.logger.Error(ctx, "assignment failed", logger.Error(err))
		return model.Decision{}, err
	}

	label := d.Variant
	if !exp.Has(label) {
		label = UnknownVariant
		s.logger.Debug(ctx, "marker names no configured variant", logger.String("marker", d.Variant))
	}
	if c, ok := counters.Load(label); ok {
		c.record(d)
	}
	metrics.RecordAssignment(label, d.Kind())

	s.logger.Debug(ctx, "variant assigned",
		logger.String("variant", d.Variant),
		logger.String("kind", d.Kind()),
		logger.Bool("markerPresent", marker != ""),
	)
	return d, nil
}

// Experiment returns the served experiment.
func (s *Service) Experiment() model.Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.experiment
}

// Policy returns the marker policy.
func (s *Service) Policy() assign.MarkerPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Counts returns assignment counters per variant, including UnknownVariant.
func (s *Service) Counts() map[string]types.VariantCount {
	s.mu.RLock()
	counters := s.counters
	s.mu.RUnlock()

	out := make(map[string]types.VariantCount)
	if counters == nil {
		return out
	}
	counters.Range(func(id string, c *variantCounters) bool {
		out[id] = c.snapshot()
		return true
	})
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	stats := map[string]interface{}{
		"started":      s.started,
		"variants":     len(s.experiment.Variants),
		"markerPolicy": s.policy.String(),
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	}
	s.mu.RUnlock()

	counts := s.Counts()
	var total int64
	for _, c := range counts {
		total += c.Total()
	}
	stats["assignments"] = counts
	stats["totalAssignments"] = total
	return stats
}
