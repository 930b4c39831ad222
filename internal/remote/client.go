package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nhle/remindme/internal/model"
)

const (
	pathFetchNotifications   = "/notifications/get"
	pathUploadNotifications  = "/notifications/put"
	pathDeleteManually       = "/notifications/delete/manually"
	pathDeleteAsSuperuser    = "/notifications/delete/superuser"
	pathUserStatus           = "/users/status"
	pathRegisterUser         = "/users/add/manually"
	pathRegisterAsSuperuser  = "/users/add/superuser"
	pathDeleteUsersSuperuser = "/users/delete/superuser"
)

// Client is a thin HTTP client for the reminder service.
// It handles Basic authentication, JSON marshaling, and
// retry with exponential backoff on HTTP 429.
//
// Credentials may be swapped at runtime with SetCredentials; a Client is
// safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int

	mu       sync.RWMutex
	username string
	password string
}

var _ Service = (*Client)(nil)

// NewClient creates a new client for the service at baseURL
// (e.g., http://127.0.0.1:1488).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
	}
}

// SetCredentials replaces the Basic auth credentials used for every request.
func (c *Client) SetCredentials(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.password = password
}

// Username returns the configured username, if any.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) credentials() (string, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username, c.password, c.username != ""
}

// FetchAll returns every notification the authenticated user owns, with
// fire times normalized to milliseconds.
func (c *Client) FetchAll(ctx context.Context) ([]model.Notification, error) {
	var dtos []notificationDTO
	if err := c.do(ctx, http.MethodGet, pathFetchNotifications, nil, &dtos, true); err != nil {
		return nil, err
	}

	out := make([]model.Notification, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toModel())
	}
	return out, nil
}

// Delete removes the given remote notifications. An empty ids slice is a no-op.
func (c *Client) Delete(ctx context.Context, ids []int64, privileged bool) error {
	if len(ids) == 0 {
		return nil
	}

	body := make([]deleteNotificationDTO, len(ids))
	for i, id := range ids {
		body[i] = deleteNotificationDTO{NotificationID: id}
	}

	path := pathDeleteManually
	if privileged {
		path = pathDeleteAsSuperuser
	}
	return c.do(ctx, http.MethodDelete, path, body, nil, true)
}

// FetchAdminStatus asks the service whether the authenticated user is an
// administrator. A body without a boolean isAdmin yields ErrUndetermined.
func (c *Client) FetchAdminStatus(ctx context.Context) (bool, error) {
	var status adminStatusDTO
	if err := c.do(ctx, http.MethodGet, pathUserStatus, nil, &status, true); err != nil {
		return false, err
	}
	if status.IsAdmin == nil {
		return false, fmt.Errorf("admin status: isAdmin missing: %w", ErrUndetermined)
	}
	return *status.IsAdmin, nil
}

// ValidateCredentials checks the configured credentials against the
// service. It returns nil when they are accepted.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	_, err := c.FetchAdminStatus(ctx)
	if errors.Is(err, ErrUndetermined) {
		return nil
	}
	return err
}

// Register creates a new regular account. The request is unauthenticated.
func (c *Client) Register(ctx context.Context, username, password string) error {
	body := userDTO{Username: username, Password: password}
	return c.do(ctx, http.MethodPost, pathRegisterUser, body, nil, false)
}

// RegisterUser creates an account on behalf of an administrator.
func (c *Client) RegisterUser(ctx context.Context, username, password string, admin bool) error {
	body := userDTO{Username: username, Password: password}
	if admin {
		body.IsAdmin = 1
	}
	return c.do(ctx, http.MethodPost, pathRegisterAsSuperuser, body, nil, true)
}

// DeleteUsers removes accounts by username. Requires an administrator.
func (c *Client) DeleteUsers(ctx context.Context, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	body := make([]deleteUserDTO, len(usernames))
	for i, u := range usernames {
		body[i] = deleteUserDTO{Username: u}
	}
	return c.do(ctx, http.MethodDelete, pathDeleteUsersSuperuser, body, nil, true)
}

// Upload sends notifications to the service. The returned WebIDs are in
// the same order as the input.
func (c *Client) Upload(ctx context.Context, notifications []model.Notification) (UploadResult, error) {
	body := make([]notificationDTO, len(notifications))
	for i, n := range notifications {
		body[i] = dtoFromModel(n)
	}

	var result UploadResult
	if err := c.do(ctx, http.MethodPut, pathUploadNotifications, body, &result, true); err != nil {
		return UploadResult{}, err
	}
	if len(result.WebIDs) != len(notifications) {
		return result, fmt.Errorf(
			"upload returned %d ids for %d notifications: %w",
			len(result.WebIDs), len(notifications), ErrUndetermined,
		)
	}
	return result, nil
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	authenticated bool,
) error {
	url := c.baseURL + path

	username, password, ok := c.credentials()
	if authenticated && !ok {
		return fmt.Errorf("%s %s: credentials are not configured: %w", method, path, ErrUnavailable)
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		if authenticated {
			req.SetBasicAuth(username, password)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w: %v", method, path, ErrUnavailable, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w: %v", ErrUnavailable, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Method: method, Path: path}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{StatusCode: resp.StatusCode, Path: path}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       path,
				Body:       strings.TrimSpace(string(respBody)),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w: %v",
				method, path, ErrUndetermined, err,
			)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
