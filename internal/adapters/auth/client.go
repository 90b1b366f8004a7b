// Package auth is the external identity-check collaborator. Session
// authentication itself is delegated to the auth service over the network.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aisuru/score-server/internal/domain/user"
	"github.com/aisuru/score-server/pkg/metrics"
)

// Sentinel kinds for identity-check errors.
var (
	// ErrAuthFailed means the credentials were rejected.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrUnavailable means the auth service could not be reached.
	ErrUnavailable = errors.New("auth service unavailable")
)

// Client queries the auth service's user-auth endpoint.
type Client struct {
	endpoint string
	key      string
	http     *http.Client
}

// New creates an identity-check client.
func New(endpoint, key string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		key:      key,
		http:     &http.Client{Timeout: timeout},
	}
}

type authResponse struct {
	Status string    `json:"status"`
	User   user.User `json:"user"`
}

// Authenticate looks up the user snapshot for a name + password hash.
// Returns ErrAuthFailed when the credentials are rejected.
func (c *Client) Authenticate(ctx context.Context, name, passwordMD5 string) (*user.User, error) {
	params := url.Values{
		"name":     {name},
		"password": {passwordMD5},
		"key":      {c.key},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordExternalError("auth")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordExternalError("auth")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.RecordExternalError("auth")
		return nil, fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}
	if body.Status != "ok" {
		return nil, ErrAuthFailed
	}
	return &body.User, nil
}
