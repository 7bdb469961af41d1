// Package windborne fetches super observations from the WindBorne Data API.
package windborne

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/config"
	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const (
	observationsPath = "/super_observations.json"

	defaultMaxAttempts = 4
	defaultBackoff     = time.Second
	defaultMaxBackoff  = 8 * time.Second
)

// errRejected marks a response the API will not change its mind about.
var errRejected = errors.New("request rejected")

// Client implements pipeline.Fetcher against the WindBorne Data API.
type Client struct {
	baseURL    string
	clientID   string
	apiKey     string
	maxPages   int
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
}

// NewClient creates a Data API client from the run configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		maxPages:    cfg.MaxPages,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     metrics,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
}

// Fetch returns every observation in [start, end], following pagination.
// Observations without a mission name are dropped. Errors wrap
// domain.ErrAuth, domain.ErrServiceUnavailable or domain.ErrEmptyResult.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]domain.Observation, error) {
	began := c.clock.Now()
	defer func() { c.metrics.FetchDuration.Observe(c.clock.Since(began).Seconds()) }()

	next, err := c.pageURL(c.baseURL+observationsPath, start, end)
	if err != nil {
		return nil, err
	}

	var out []domain.Observation
	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, fmt.Errorf("%w: more than %d pages for window", domain.ErrServiceUnavailable, c.maxPages)
		}

		c.logger.Debug("fetching observations page", "page", page, "url", redact(next))
		resp, err := c.getPage(ctx, next)
		if err != nil {
			return nil, err
		}

		c.logger.Info("fetched observations page", "page", page, "observations", len(resp.Observations))
		for _, raw := range resp.Observations {
			if raw.MissionName == "" {
				c.logger.Warn("dropping observation without mission name", "observation_id", raw.ID)
				c.metrics.ObservationsDropped.WithLabelValues("no_mission").Inc()
				continue
			}
			out = append(out, raw.toDomain())
		}

		if !resp.HasNextPage || resp.NextPage == "" {
			break
		}
		if next, err = c.pageURL(resp.NextPage, start, end); err != nil {
			return nil, err
		}
	}

	c.metrics.ObservationsFetched.Add(float64(len(out)))
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no observations between %s and %s",
			domain.ErrEmptyResult, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	return out, nil
}

// pageURL resolves ref against the base URL and re-applies the window query,
// which next_page links do not carry.
func (c *Client) pageURL(ref string, start, end time.Time) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: bad page url %q: %w", domain.ErrServiceUnavailable, ref, err)
	}
	q := u.Query()
	q.Set("min_time", strconv.FormatInt(start.Unix(), 10))
	q.Set("max_time", strconv.FormatInt(end.Unix(), 10))
	q.Set("include_mission_name", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// getPage performs one page request, retrying timeouts, rate limiting and
// server errors with exponential backoff.
func (c *Client) getPage(ctx context.Context, pageURL string) (*pageResponse, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, pageURL)
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues("success").Inc()
			return resp, nil
		}
		if errors.Is(err, domain.ErrAuth) {
			c.metrics.FetchRequests.WithLabelValues("auth_error").Inc()
			return nil, err
		}
		if errors.Is(err, errRejected) {
			c.metrics.FetchRequests.WithLabelValues("rejected").Inc()
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		c.metrics.FetchRequests.WithLabelValues("retry").Inc()
		c.logger.Warn("observations request failed, retrying",
			"error", err, "attempt", attempt, "backoff", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}

	c.metrics.FetchRequests.WithLabelValues("unavailable").Inc()
	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, pageURL string) (*pageResponse, error) {
	token, err := c.token()
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %w", domain.ErrAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.clientID, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrAuth, resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK && retryable(resp.StatusCode):
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrServiceUnavailable, resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %w: status %d: %s", domain.ErrServiceUnavailable, errRejected, resp.StatusCode, body)
	}

	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrServiceUnavailable, err)
	}
	return &page, nil
}

// token signs a short-lived HS256 JWT with the API key. The API takes it as
// the basic-auth password.
func (c *Client) token() (string, error) {
	claims := jwt.MapClaims{
		"client_id": c.clientID,
		"iat":       c.clock.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.apiKey))
}

// redact strips the query string for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}

// retryable reports whether a failed status may succeed on a later attempt.
func retryable(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}
