// Package rest is the thin HTTP client for the platform's static data:
// the game catalog, the current season and the session probe. Credentials
// travel in the cookie jar, plus a bearer header when a token is present.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Game is one entry in the platform's game catalog.
type Game struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Description string  `json:"description,omitempty"`
	MinPlayers  int     `json:"minPlayers"`
	MaxPlayers  int     `json:"maxPlayers"`
	MinEntryFee float64 `json:"minEntryFee"`
}

// Season is the active competitive season.
type Season struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Active   bool      `json:"active"`
}

// Session is the authenticated user, as reported by the session probe.
type Session struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Address  string `json:"address"`
}

// APIError is a non-2xx response body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Token is an optional bearer token added to every request.
	Token string
	// HTTPClient overrides the default client (tests, custom transports).
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the platform REST surface.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	log   *zap.Logger
}

// New builds a Client. A cookie jar is installed unless the caller supplies
// an http.Client of their own.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		jar, jarErr := cookiejar.New(nil)
		if jarErr != nil {
			return nil, jarErr
		}
		hc = &http.Client{Timeout: defaultTimeout, Jar: jar}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{base: base, token: cfg.Token, http: hc, log: log.Named("rest")}, nil
}

// Games fetches the game catalog.
func (c *Client) Games(ctx context.Context) ([]Game, error) {
	var games []Game
	if err := c.get(ctx, "/api/games", &games); err != nil {
		return nil, err
	}
	return games, nil
}

// Season fetches the current season.
func (c *Client) Season(ctx context.Context) (*Season, error) {
	var season Season
	if err := c.get(ctx, "/api/season", &season); err != nil {
		return nil, err
	}
	return &season, nil
}

// Me probes the session. An unauthenticated probe surfaces as *APIError
// with status 401.
func (c *Client) Me(ctx context.Context) (*Session, error) {
	var session Session
	if err := c.get(ctx, "/api/me", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		// Error bodies are best-effort JSON; a decode failure keeps the status.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		c.log.Debug("request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
