package risk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for map fetches.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultRetryInterval is the fixed delay between map acquisition attempts.
	DefaultRetryInterval = time.Second

	// maxResponseBytes limits the response body to 50 MB to prevent OOM.
	maxResponseBytes = 50 << 20
)

// MapSource supplies the static occupancy grid
type MapSource interface {
	FetchGrid(ctx context.Context) (*OccupancyGrid, error)
}

// FileMapSource reads the grid from a JSON (or zlib JSON) file on disk
type FileMapSource struct {
	Path string
}

// FetchGrid reads and decodes the grid file
func (s FileMapSource) FetchGrid(ctx context.Context) (*OccupancyGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseGridFile(s.Path)
}

// FetchOption configures an HTTPMapSource.
type FetchOption func(*HTTPMapSource)

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(s *HTTPMapSource) {
		s.timeout = d
	}
}

// WithHTTPClient overrides the default HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) FetchOption {
	return func(s *HTTPMapSource) {
		s.client = client
	}
}

// HTTPMapSource fetches the grid from a map server over HTTP
type HTTPMapSource struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPMapSource creates a source for the given map URL
func NewHTTPMapSource(url string, opts ...FetchOption) *HTTPMapSource {
	s := &HTTPMapSource{url: url, timeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}
	return s
}

// FetchGrid performs a single GET and decodes the response body
func (s *HTTPMapSource) FetchGrid(ctx context.Context) (*OccupancyGrid, error) {
	if s.url == "" {
		return nil, fmt.Errorf("fetch map: URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", s.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP GET %s: status %d", s.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", s.url, err)
	}

	return DecodeGridData(body)
}

// AcquireMap blocks until src returns a grid. Failures are logged and retried
// at a fixed interval with no attempt limit; only ctx ends the wait, so the
// caller decides how long a missing map server may stall startup.
func AcquireMap(ctx context.Context, src MapSource, interval time.Duration, logger *slog.Logger) (*OccupancyGrid, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	logger.Info("requesting the map")
	for attempt := 1; ; attempt++ {
		g, err := src.FetchGrid(ctx)
		if err == nil {
			logger.Info("map acquired",
				"attempt", attempt,
				"width", g.Info.Width,
				"height", g.Info.Height,
				"resolution", g.Info.Resolution)
			return g, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire map: %w", ctx.Err())
		}
		logger.Warn("request for map failed; trying again", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire map: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}
