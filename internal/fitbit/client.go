package fitbit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/metrics"
)

// TokenSource provides the stored tracker capability for a user.
// Empty token means the user is not linked.
type TokenSource interface {
	TrackerToken(userID string) (token, secret string, err error)
}

// Client is a Fitbit API client. All read calls fail soft: a non-success
// response yields absent/empty results rather than an error, so callers
// treat missing data as "try again later".
type Client struct {
	httpClient   *http.Client
	baseURL      string
	subscriberID string
	tokens       TokenSource
	logger       *slog.Logger
}

// NewClient creates a new Fitbit API client
func NewClient(cfg *config.Config, tokens TokenSource) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      cfg.FitbitBaseURL,
		subscriberID: cfg.FitbitSubscriberID,
		tokens:       tokens,
		logger:       slog.Default(),
	}
}

// IsReady reports whether a usable tracker capability exists for the user
func (c *Client) IsReady(userID string) bool {
	token, _, err := c.tokens.TrackerToken(userID)
	if err != nil {
		c.logger.Error("Failed to load tracker token", "user_id", userID, "error", err)
		return false
	}
	return token != ""
}

// doRequest performs an authenticated request against the Fitbit API.
// Returns the response body and status; err is set only for request
// construction or transport failures.
func (c *Client) doRequest(ctx context.Context, method, path, operation, userID string) ([]byte, int, error) {
	token, _, err := c.tokens.TrackerToken(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load tracker token: %w", err)
	}
	if token == "" {
		return nil, 0, fmt.Errorf("no tracker capability for user %s", userID)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues(metrics.ServiceFitbit, operation, "error").Observe(duration.Seconds())
		return nil, 0, fmt.Errorf("fitbit request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestDuration.WithLabelValues(metrics.ServiceFitbit, operation, strconv.Itoa(resp.StatusCode)).Observe(duration.Seconds())

	c.logger.Debug("fitbit_api_request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"user_id", userID)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
