package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"mdistance-sync/internal/config"
	"mdistance-sync/internal/metrics"
)

// ErrNotLinked is returned when the user has no display capability
var ErrNotLinked = errors.New("mirror: no display capability for user")

// HTTPError represents a non-success response from the display service
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("mirror: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err means the user's display grant is
// missing, expired or revoked. This is the AuthRevoked condition that
// disables further notifications for the user.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotLinked) {
		return true
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// TokenStore persists per-user display-service tokens
type TokenStore interface {
	DisplayToken(userID string) (string, error)
	SaveDisplayToken(userID, tokenJSON string) error
}

// Client pushes timeline cards to the wearable display service,
// authenticated with a per-user OAuth2 capability
type Client struct {
	httpClient *http.Client
	baseURL    string
	oauthCfg   *oauth2.Config
	tokens     TokenStore
	logger     *slog.Logger
}

// OAuthConfig builds the display service OAuth2 configuration
func OAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.MirrorClientID,
		ClientSecret: cfg.MirrorClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/glass.timeline"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		RedirectURL: fmt.Sprintf("https://%s/oauth2callback", cfg.Domain),
	}
}

// NewClient creates a new display service client
func NewClient(cfg *config.Config, tokens TokenStore) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.MirrorBaseURL,
		oauthCfg:   OAuthConfig(cfg),
		tokens:     tokens,
		logger:     slog.Default(),
	}
}

// token loads the stored token for a user, refreshing and re-persisting
// it when expired
func (c *Client) token(ctx context.Context, userID string) (*oauth2.Token, error) {
	tokenJSON, err := c.tokens.DisplayToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load display token: %w", err)
	}
	if tokenJSON == "" {
		return nil, ErrNotLinked
	}

	var stored oauth2.Token
	if err := json.Unmarshal([]byte(tokenJSON), &stored); err != nil {
		return nil, fmt.Errorf("failed to parse display token: %w", err)
	}

	tok, err := c.oauthCfg.TokenSource(ctx, &stored).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh display token: %w", err)
	}

	if tok.AccessToken != stored.AccessToken {
		refreshed, err := json.Marshal(tok)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal refreshed token: %w", err)
		}
		if err := c.tokens.SaveDisplayToken(userID, string(refreshed)); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		c.logger.Info("Refreshed display token", "user_id", userID)
	}

	return tok, nil
}

// InsertCard renders a card and inserts it into the user's timeline.
// Returns the inserted item id.
func (c *Client) InsertCard(ctx context.Context, userID string, card Card) (string, error) {
	tok, err := c.token(ctx, userID)
	if err != nil {
		return "", err
	}

	item, err := Render(card)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal timeline item: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/timeline", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues(metrics.ServiceMirror, "insert_card", "error").Observe(duration.Seconds())
		return "", fmt.Errorf("timeline insert failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestDuration.WithLabelValues(metrics.ServiceMirror, "insert_card", strconv.Itoa(resp.StatusCode)).Observe(duration.Seconds())

	c.logger.Debug("mirror_api_request",
		"operation", "insert_card",
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"user_id", userID,
		"card_kind", card.Kind())

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var inserted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &inserted); err != nil {
		return "", fmt.Errorf("failed to decode timeline response: %w", err)
	}

	return inserted.ID, nil
}
