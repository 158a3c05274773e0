// Package slack is a minimal Slack Web API client covering the calls
// the gallery sync needs: identity, channel lookup, history, thread
// replies, and user info.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"drawma-gallery/pager"
	"drawma-gallery/pkg/gallery"
)

// DefaultBaseURL is the production Slack Web API endpoint.
const DefaultBaseURL = "https://slack.com/api"

const pageLimit = 200

// ErrChannelNotFound is returned when no public channel matches the
// requested name.
var ErrChannelNotFound = errors.New("channel not found")

// APIError is a Slack API-level failure (ok:false in the response
// envelope). Code is the Slack error string, e.g. "invalid_auth".
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// IsAuthError checks if an error indicates an invalid or revoked credential.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "token_expired":
		return true
	}
	return false
}

// IsUserNotFound checks if an error is a users.info miss.
func IsUserNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "user_not_found"
}

// Client calls the Slack Web API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string
	baseURL    string
}

// New creates a new Slack client authenticated with a bot token.
func New(httpClient *http.Client, token string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		token:      token,
		baseURL:    DefaultBaseURL,
	}
}

type envelope struct {
	OK      bool   `json:"ok"`
	ErrCode string `json:"error"`
}

func (e envelope) apiOK() (bool, string) { return e.OK, e.ErrCode }

type apiResponse interface {
	apiOK() (ok bool, code string)
}

type metadata struct {
	NextCursor string `json:"next_cursor"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out apiResponse) error {
	endpoint := c.baseURL + "/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "method", method, "error", closeErr)
		}
	}()

	c.logger.Debug("Slack API call completed",
		"method", method,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: HTTP %d", method, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if ok, code := out.apiOK(); !ok {
		return &APIError{Method: method, Code: code}
	}
	return nil
}

// OwnIdentity resolves the bot's own user ID via auth.test.
func (c *Client) OwnIdentity(ctx context.Context) (string, error) {
	var resp struct {
		envelope
		UserID string `json:"user_id"`
	}
	if err := c.call(ctx, "auth.test", nil, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

type channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FindChannel resolves a public channel ID by name. A leading "#" in
// the name is ignored. Returns ErrChannelNotFound when no channel
// matches.
func (c *Client) FindChannel(ctx context.Context, name string) (string, error) {
	name = strings.TrimPrefix(name, "#")

	channels, err := pager.Collect(func(cursor string) (pager.Page[channel], error) {
		params := url.Values{
			"types": {"public_channel"},
			"limit": {strconv.Itoa(pageLimit)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp struct {
			envelope
			Channels []channel `json:"channels"`
			Metadata metadata  `json:"response_metadata"`
		}
		if err := c.call(ctx, "conversations.list", params, &resp); err != nil {
			return pager.Page[channel]{}, err
		}
		next := resp.Metadata.NextCursor
		return pager.Page[channel]{Items: resp.Channels, HasMore: next != "", NextCursor: next}, nil
	})
	if err != nil {
		return "", err
	}

	for _, ch := range channels {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return "", ErrChannelNotFound
}

type historyResponse struct {
	envelope
	Messages []gallery.Message `json:"messages"`
	HasMore  bool              `json:"has_more"`
	Metadata metadata          `json:"response_metadata"`
}

// History fetches channel messages via conversations.history. With an
// empty oldest bound it walks the full history; otherwise oldest is an
// epoch-seconds lower bound passed to Slack and enforced client-side as
// a paging stop.
func (c *Client) History(ctx context.Context, channelID, oldest string) ([]gallery.Message, error) {
	fetch := func(cursor string) (pager.Page[gallery.Message], error) {
		params := url.Values{
			"channel": {channelID},
			"limit":   {strconv.Itoa(pageLimit)},
		}
		if oldest != "" {
			params.Set("oldest", oldest)
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp historyResponse
		if err := c.call(ctx, "conversations.history", params, &resp); err != nil {
			return pager.Page[gallery.Message]{}, err
		}
		return pager.Page[gallery.Message]{
			Items:      resp.Messages,
			HasMore:    resp.HasMore,
			NextCursor: resp.Metadata.NextCursor,
		}, nil
	}

	if oldest == "" {
		return pager.Collect(fetch)
	}
	return pager.CollectWhile(fetch, func(m gallery.Message) bool {
		return tsInWindow(m.Timestamp, oldest)
	})
}

// Replies fetches all replies in a message thread, excluding the parent
// message that conversations.replies re-delivers as the first record.
func (c *Client) Replies(ctx context.Context, channelID, parentTS string) ([]gallery.Message, error) {
	msgs, err := pager.Collect(func(cursor string) (pager.Page[gallery.Message], error) {
		params := url.Values{
			"channel": {channelID},
			"ts":      {parentTS},
			"limit":   {strconv.Itoa(pageLimit)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp historyResponse
		if err := c.call(ctx, "conversations.replies", params, &resp); err != nil {
			return pager.Page[gallery.Message]{}, err
		}
		return pager.Page[gallery.Message]{
			Items:      resp.Messages,
			HasMore:    resp.HasMore,
			NextCursor: resp.Metadata.NextCursor,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[1:], nil
}

// DisplayName looks up a user's display name, falling back to their
// real name and then the raw ID.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	var resp struct {
		envelope
		User struct {
			Profile struct {
				DisplayName string `json:"display_name"`
				RealName    string `json:"real_name"`
			} `json:"profile"`
		} `json:"user"`
	}
	params := url.Values{"user": {userID}}
	if err := c.call(ctx, "users.info", params, &resp); err != nil {
		return "", err
	}
	if name := resp.User.Profile.DisplayName; name != "" {
		return name, nil
	}
	if name := resp.User.Profile.RealName; name != "" {
		return name, nil
	}
	return userID, nil
}

// tsInWindow reports whether a message timestamp is at or after the
// oldest bound. Unparseable timestamps fall outside the window.
func tsInWindow(ts, oldest string) bool {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return false
	}
	bound, err := strconv.ParseFloat(oldest, 64)
	if err != nil {
		return true
	}
	return v >= bound
}
