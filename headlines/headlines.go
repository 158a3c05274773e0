// Package headlines fetches news-site headlines that feed the daily
// prompt generator.
package headlines

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
)

const (
	maxPerSource = 5
	userAgent    = "Mozilla/5.0 (compatible; DrawmaGalleryBot/1.0)"
)

type source struct {
	url      string
	selector string
	minLen   int
}

var sources = map[string]source{
	"reuters":   {"https://www.reuters.com/", "h3, [data-testid='Heading']", 10},
	"bbc":       {"https://www.bbc.com/news", "h2, h3", 15},
	"cnn":       {"https://www.cnn.com/", "span.container__headline-text, h3", 10},
	"foxnews":   {"https://www.foxnews.com/", "h2.title, h3.title, .title a", 10},
	"ft":        {"https://www.ft.com/", "a.js-teaser-heading-link, h3", 10},
	"npr":       {"https://www.npr.org/", "h2.title, h3.title, .title a, .story-text a", 10},
	"guardian":  {"https://www.theguardian.com/us", "h3, .fc-item__title", 10},
	"breitbart": {"https://www.breitbart.com/", "h2 a, h3 a, .title a", 10},
}

// Scraper fetches and parses news homepages.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a new headline scraper.
func New(client *http.Client, logger *slog.Logger) *Scraper {
	return &Scraper{
		client: client,
		logger: logger,
	}
}

// Source scrapes headlines from a single named source.
func (s *Scraper) Source(ctx context.Context, name string) ([]string, error) {
	src, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}

	var headlines []string
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("User-Agent", userAgent)

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					s.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			doc, err := goquery.NewDocumentFromReader(resp.Body)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			headlines = parseHeadlines(doc, src)
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying headline fetch after error", "source", name, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", name, err)
	}
	return headlines, nil
}

// All scrapes every named source in order. A source that fails is
// logged and contributes nothing; the rest still run.
func (s *Scraper) All(ctx context.Context, names []string) []string {
	var all []string
	for _, name := range names {
		got, err := s.Source(ctx, name)
		if err != nil {
			s.logger.Warn("Failed to scrape source", "source", name, "error", err)
			continue
		}
		s.logger.Info("Scraped headlines", "source", name, "count", len(got))
		all = append(all, got...)
	}
	return all
}

func parseHeadlines(doc *goquery.Document, src source) []string {
	var headlines []string
	doc.Find(src.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) > src.minLen {
			headlines = append(headlines, text)
		}
		return len(headlines) < maxPerSource
	})
	return headlines
}
