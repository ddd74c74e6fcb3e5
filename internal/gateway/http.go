package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ncn914491/groupsync/internal/logging"
	"github.com/Ncn914491/groupsync/internal/models"
)

const maxResponseBytes = 8 << 20

// HTTPClientConfig contains settings for the HTTP gateway.
type HTTPClientConfig struct {
	// BaseURL is the portal API base URL.
	BaseURL string

	// Timeout is the per-request timeout.
	// Default: 15s
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// HTTPClient implements Client against the portal's JSON API.
type HTTPClient struct {
	baseURL string
	creds   Credentials
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient creates an HTTP gateway client.
func NewHTTPClient(cfg HTTPClientConfig, creds Credentials) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if creds == nil {
		return nil, fmt.Errorf("credentials required")
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPClient{
		baseURL: base,
		creds:   creds,
		client:  client,
		logger:  logging.Component("gateway"),
	}, nil
}

// ListGroups implements Client.
func (c *HTTPClient) ListGroups(ctx context.Context) ([]models.Group, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/groups", nil)
	if err != nil {
		return nil, err
	}

	var groups []models.Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, &PayloadError{Operation: "group list", Cause: err}
	}
	for i := range groups {
		if err := groups[i].Validate(); err != nil {
			return nil, &PayloadError{Operation: "group list", Cause: err}
		}
	}
	return groups, nil
}

// JoinGroup implements Client.
func (c *HTTPClient) JoinGroup(ctx context.Context, groupID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/join", nil)
	return err
}

// LeaveGroup implements Client.
func (c *HTTPClient) LeaveGroup(ctx context.Context, groupID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/leave", nil)
	return err
}

// ListMessages implements Client.
func (c *HTTPClient) ListMessages(ctx context.Context, groupID string, opts ListOptions) ([]models.Message, error) {
	path := "/api/groups/" + url.PathEscape(groupID) + "/messages"
	if opts.AfterID != "" {
		path += "?after=" + url.QueryEscape(opts.AfterID)
	}

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, &PayloadError{Operation: "message list", Cause: err}
	}
	for i := range messages {
		if err := messages[i].Validate(); err != nil {
			return nil, &PayloadError{Operation: "message list", Cause: err}
		}
	}
	return messages, nil
}

// CreateMessage implements Client.
func (c *HTTPClient) CreateMessage(ctx context.Context, groupID, content string) (models.Message, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to encode message: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/messages", body)
	if err != nil {
		return models.Message{}, err
	}

	var message models.Message
	if err := json.Unmarshal(data, &message); err != nil {
		return models.Message{}, &PayloadError{Operation: "create message", Cause: err}
	}
	if err := message.Validate(); err != nil {
		return models.Message{}, &PayloadError{Operation: "create message", Cause: err}
	}
	return message, nil
}

// do issues a request with the bearer credential attached and returns the
// response body. A 401 marks the session expired.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	token, err := c.creds.Token()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("path", path).Msg("credential rejected by portal")
		c.creds.MarkExpired()
		if _, err := c.creds.Token(); err != nil {
			return nil, err
		}
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}

	return data, nil
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(data []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ""
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return parsed.Message
}
