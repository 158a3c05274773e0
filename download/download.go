// Package download fetches image bytes from Slack file URLs, following
// redirects by hand so the Authorization header survives every hop.
//
// Slack's url_private_download redirects to a CDN on a different host.
// Go's http.Client strips the Authorization header on cross-origin
// redirects (a security feature), which turns the download into an
// HTML login page. The explicit hop loop keeps the credential attached
// and keeps the redirect chain bounded and auditable.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxRedirects = 5

// StatusError is a terminal non-2xx, non-redirect response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// ContentTypeError indicates the terminal response was not an image.
// This usually means an expired or invalid credential manifesting as an
// HTML error page rather than a network problem.
type ContentTypeError struct {
	URL         string
	ContentType string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("expected image content, got %q: %s", e.ContentType, e.URL)
}

// TooManyRedirectsError indicates the redirect chain never resolved
// within the hop bound.
type TooManyRedirectsError struct {
	URL string
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("too many redirects: %s", e.URL)
}

// IsContentTypeError checks if an error is a content-integrity failure.
func IsContentTypeError(err error) bool {
	var ctErr *ContentTypeError
	return errors.As(err, &ctErr)
}

// IsTooManyRedirects checks if an error is a redirect-loop failure.
func IsTooManyRedirects(err error) bool {
	var loopErr *TooManyRedirectsError
	return errors.As(err, &loopErr)
}

// Downloader fetches authenticated binary content.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a downloader with redirect-following disabled at the
// client level; Fetch follows redirects itself.
func New(logger *slog.Logger, timeout time.Duration) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Fetch downloads the URL with a bearer token, re-issuing the request
// with the same Authorization header on each redirect hop. The terminal
// response must be 2xx with an image content type.
func (d *Downloader) Fetch(ctx context.Context, rawURL, token string) ([]byte, error) {
	target := rawURL

	for hop := 0; hop <= maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", target, err)
		}

		switch resp.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
			http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
			loc, locErr := resp.Location()
			closeBody(resp, d.logger)
			if locErr != nil {
				return nil, fmt.Errorf("redirect without location: %s", target)
			}
			d.logger.Debug("Following redirect",
				"from", target,
				"to", loc.String(),
				"hop", hop+1)
			target = loc.String()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			closeBody(resp, d.logger)
			return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
		}

		contentType := resp.Header.Get("Content-Type")
		if !strings.Contains(contentType, "image") {
			closeBody(resp, d.logger)
			return nil, &ContentTypeError{URL: target, ContentType: contentType}
		}

		data, err := io.ReadAll(resp.Body)
		closeBody(resp, d.logger)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return data, nil
	}

	return nil, &TooManyRedirectsError{URL: rawURL}
}

func closeBody(resp *http.Response, logger *slog.Logger) {
	if err := resp.Body.Close(); err != nil {
		logger.Warn("Failed to close response body", "error", err)
	}
}
