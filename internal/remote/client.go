// Package remote implements the server API over HTTP and JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nuclight.org/groupsync/internal/groups"
	"nuclight.org/groupsync/internal/session"
)

const defaultTimeout = 15 * time.Second

// Client is a groups.Gateway. The bearer token of every request is taken
// from the session stored in the request context.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ groups.Gateway = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse api url: unsupported scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// do sends one request. in is encoded as the JSON body when non-nil and the
// response body is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path, resource string, in, out any) error {
	sess, ok := session.FromContext(ctx)
	if !ok {
		return session.ErrNoSession
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", resource, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return groups.NewRemoteError(resource, 0, groups.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 300 {
		return responseError(resource, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return groups.NewRemoteError(resource, resp.StatusCode, groups.ErrUnreachable, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// responseError maps an unsuccessful response onto the rejection kinds.
func responseError(resource string, resp *http.Response) error {
	var apiErr errorDTO
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &apiErr)

	var cause error
	if apiErr.Message != "" {
		cause = errors.New(apiErr.Message)
	}
	return groups.NewRemoteError(resource, resp.StatusCode, kindOf(resp.StatusCode, apiErr.Code), cause)
}

func kindOf(status int, code string) error {
	switch {
	case status == http.StatusNotFound:
		return groups.ErrNotFound
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return groups.ErrForbidden
	case status == http.StatusConflict && code == "already_voted":
		return groups.ErrAlreadyVoted
	case status == http.StatusConflict:
		return groups.ErrConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return groups.ErrValidationRejected
	default:
		return groups.ErrUnreachable
	}
}

func groupPath(groupID int64) string {
	return fmt.Sprintf("/groups/%d", groupID)
}

func conversationPath(groupID, conversationID int64) string {
	return fmt.Sprintf("/groups/%d/conversations/%d", groupID, conversationID)
}

func ballotPath(groupID, ballotID int64) string {
	return fmt.Sprintf("/groups/%d/ballots/%d", groupID, ballotID)
}
