// Package simulate drives simulated visitors against a running A/B page and
// compares the observed split with the configured weights.
package simulate

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/openab/pkg/logger"
	"github.com/puzpuzpuz/xsync/v4"
)

// workerChannelMultiplier sizes the visitor queue relative to the worker count.
const workerChannelMultiplier = 2

// tally aggregates visit outcomes across workers.
type tally struct {
	visits   *xsync.Counter
	failed   *xsync.Counter
	reused   *xsync.Counter
	switched *xsync.Counter
	first    *xsync.Map[string, *xsync.Counter]
}

func newTally() *tally {
	return &tally{
		visits:   xsync.NewCounter(),
		failed:   xsync.NewCounter(),
		reused:   xsync.NewCounter(),
		switched: xsync.NewCounter(),
		first:    xsync.NewMap[string, *xsync.Counter](),
	}
}

// Run executes the simulation and returns its report.
func Run(ctx context.Context, config *Config) (*Report, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get()
	start := time.Now()

	log.Info(ctx, "starting openab traffic simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("visitors", config.Visitors),
		logger.Int("visitsPerVisitor", config.VisitsPerVisitor),
		logger.Int("workers", config.Workers),
		logger.Bool("cookies", config.Cookies))

	client, err := newHTTPClient(config.Timeout, false)
	if err != nil {
		return nil, err
	}
	if err := checkServiceHealth(ctx, client, config.BaseURL); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	view, err := fetchExperiment(ctx, client, config.BaseURL)
	if err != nil {
		return nil, err
	}
	route := config.Route
	if route == "" {
		route = view.Route
	}
	expected := make(map[string]float64, len(view.Variants))
	for _, v := range view.Variants {
		expected[v.ID] = v.Probability
	}

	t := newTally()
	url := config.BaseURL + route
	each := func(ctx context.Context, id string) error {
		return runVisitor(ctx, config, url, id, t)
	}
	if err := runVisitors(ctx, config, each); err != nil {
		return nil, err
	}

	report := buildReport(t, expected)
	report.StartTime = start
	report.Duration = time.Since(start)
	displayReport(ctx, report)
	return report, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// runVisitors feeds visitor ids to a worker pool. Each visitor is handled by
// one worker so its visits stay sequential. The first worker error stops the
// run, and the producer is always released before runVisitors returns.
func runVisitors(ctx context.Context, config *Config, each func(ctx context.Context, id string) error) error {
	visitors := make(chan string, config.Workers*workerChannelMultiplier)
	done := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, config.Workers)

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range visitors {
				if err := each(ctx, id); err != nil {
					select {
					case errs <- err:
					default:
					}
					return
				}
			}
		}()
	}

	produced := make(chan struct{})
	go func() {
		defer close(produced)
		defer close(visitors)
		for i := 0; i < config.Visitors; i++ {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case visitors <- uuid.NewString():
			}
		}
	}()

	wg.Wait()
	close(done)
	<-produced
	close(errs)
	if err := <-errs; err != nil {
		return err
	}
	return ctx.Err()
}

func runVisitor(ctx context.Context, config *Config, url, id string, t *tally) error {
	client, err := newHTTPClient(config.Timeout, config.Cookies)
	if err != nil {
		return err
	}
	seen := ""
	switched := false
	for n := 0; n < config.VisitsPerVisitor; n++ {
		if ctx.Err() != nil {
			return nil
		}
		v := visit(ctx, client, url, id)
		t.visits.Inc()
		if v.Status != http.StatusOK {
			t.failed.Inc()
			continue
		}
		if v.Assignment == "reused" {
			t.reused.Inc()
		}
		if config.Verbose {
			logger.Get().Debug(ctx, "visit",
				logger.String("visitor", id),
				logger.String("variant", v.Variant),
				logger.String("assignment", v.Assignment))
		}
		if seen == "" {
			seen = v.Variant
			c, _ := t.first.LoadOrStore(v.Variant, xsync.NewCounter())
			c.Inc()
			continue
		}
		if v.Variant != seen {
			switched = true
		}
	}
	if switched {
		t.switched.Inc()
	}
	return nil
}

// buildReport turns the tally into shares over first visits.
func buildReport(t *tally, expected map[string]float64) *Report {
	r := &Report{
		Visits:   t.visits.Value(),
		Failed:   t.failed.Value(),
		Reused:   t.reused.Value(),
		Switched: t.switched.Value(),
	}

	observed := make(map[string]int64)
	var total int64
	t.first.Range(func(id string, c *xsync.Counter) bool {
		observed[id] = c.Value()
		total += c.Value()
		return true
	})

	ids := make(map[string]struct{}, len(expected)+len(observed))
	for id := range expected {
		ids[id] = struct{}{}
	}
	for id := range observed {
		ids[id] = struct{}{}
	}
	for id := range ids {
		s := VariantShare{Variant: id, Visitors: observed[id], Expected: expected[id]}
		if total > 0 {
			s.Share = float64(observed[id]) / float64(total)
		}
		s.Deviation = math.Abs(s.Share - s.Expected)
		r.Shares = append(r.Shares, s)
	}
	sort.Slice(r.Shares, func(i, j int) bool { return r.Shares[i].Variant < r.Shares[j].Variant })
	return r
}

// displayReport logs the final statistics.
func displayReport(ctx context.Context, r *Report) {
	log := logger.Get()
	for _, s := range r.Shares {
		log.Info(ctx, "variant share",
			logger.String("variant", s.Variant),
			logger.Int64("visitors", s.Visitors),
			logger.Float64("share", s.Share),
			logger.Float64("expected", s.Expected),
			logger.Float64("deviation", s.Deviation))
	}
	var visitsPerSecond float64
	if r.Duration > 0 {
		visitsPerSecond = float64(r.Visits) / r.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int64("visits", r.Visits),
		logger.Int64("failed", r.Failed),
		logger.Int64("reused", r.Reused),
		logger.Int64("switchedVisitors", r.Switched),
		logger.Float64("maxDeviation", r.MaxDeviation()),
		logger.Duration("duration", r.Duration),
		logger.Float64("visitsPerSecond", visitsPerSecond))
}
