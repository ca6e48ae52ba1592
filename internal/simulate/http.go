package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/okian/openab/internal/domain/types"
)

// Response headers set by the A/B page.
const (
	headerVariant    = "X-AB-Variant"
	headerAssignment = "X-AB-Assignment"
	headerRequestID  = "X-Request-ID"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout and, when cookies is
// set, a private cookie jar so the client behaves like one browser.
func newHTTPClient(timeout time.Duration, cookies bool) (*HTTPClient, error) {
	c := &http.Client{Timeout: timeout}
	if cookies {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.Jar = jar
	}
	return &HTTPClient{client: c}, nil
}

// Get performs a GET request tagged with a fresh request id.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	return c.client.Do(req)
}

// getJSON fetches url and decodes the JSON body into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// fetchExperiment reads the served experiment description.
func fetchExperiment(ctx context.Context, client *HTTPClient, baseURL string) (types.ExperimentView, error) {
	var view types.ExperimentView
	if err := client.getJSON(ctx, baseURL+"/experiment", &view); err != nil {
		return types.ExperimentView{}, fmt.Errorf("failed to fetch experiment: %w", err)
	}
	return view, nil
}

// visit loads the A/B page once and reads the decision headers.
func visit(ctx context.Context, client *HTTPClient, url, visitorID string) Visit {
	v := Visit{VisitorID: visitorID}
	resp, err := client.Get(ctx, url)
	if err != nil {
		return v
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	v.Status = resp.StatusCode
	if resp.StatusCode == http.StatusOK {
		v.Variant = resp.Header.Get(headerVariant)
		v.Assignment = resp.Header.Get(headerAssignment)
	}
	return v
}
