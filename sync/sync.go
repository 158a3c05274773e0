// Package sync orchestrates one gallery synchronization run: walk the
// channel history, extract and associate images, dedup against the
// manifest, download what's new, and persist the results.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"drawma-gallery/pkg/gallery"
	"drawma-gallery/storage"
)

// DefaultLookback is how far back image discovery reaches. Prompts are
// indexed across all time, but images are expected shortly after their
// prompt, so the discovery window stays small.
const DefaultLookback = 7 * 24 * time.Hour

// Chat interface for the channel history source.
type Chat interface {
	OwnIdentity(ctx context.Context) (string, error)
	FindChannel(ctx context.Context, name string) (string, error)
	History(ctx context.Context, channelID, oldest string) ([]gallery.Message, error)
	Replies(ctx context.Context, channelID, parentTS string) ([]gallery.Message, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Store interface for gallery persistence.
type Store interface {
	LoadManifest(ctx context.Context) ([]gallery.ManifestEntry, error)
	SaveManifest(ctx context.Context, manifest []gallery.ManifestEntry) error
	SavePrompts(ctx context.Context, texts []string) error
	SaveImage(ctx context.Context, filename string, data []byte) error
}

// Downloader interface for authenticated image fetches.
type Downloader interface {
	Fetch(ctx context.Context, url, token string) ([]byte, error)
}

// Config holds the per-run settings.
type Config struct {
	Channel  string
	Token    string
	Lookback time.Duration
}

// Summary reports what a run did.
type Summary struct {
	Prompts    int
	Discovered int
	New        int
	Downloaded int
	Failed     int
}

// Syncer runs the gallery synchronization.
type Syncer struct {
	chat       Chat
	store      Store
	downloader Downloader
	logger     *slog.Logger
	cfg        Config
}

// New creates a syncer.
func New(chat Chat, store Store, downloader Downloader, cfg Config, logger *slog.Logger) *Syncer {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &Syncer{
		chat:       chat,
		store:      store,
		downloader: downloader,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run performs a single synchronization pass. Identity and channel
// resolution failures abort the run; per-image download failures are
// logged and skipped so one bad image can't block the batch, and the
// skipped image stays a retry candidate for the next run.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	botID, err := s.chat.OwnIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve own identity: %w", err)
	}
	s.logger.Info("Resolved bot identity", "user_id", botID)

	channelID, err := s.chat.FindChannel(ctx, s.cfg.Channel)
	if err != nil {
		return nil, fmt.Errorf("find channel %s: %w", s.cfg.Channel, err)
	}
	s.logger.Info("Found channel", "channel", s.cfg.Channel, "channel_id", channelID)

	// Full history for prompts: a re-run processing backlog needs every
	// prompt ever posted for correct date association.
	allMessages, err := s.chat.History(ctx, channelID, "")
	if err != nil {
		return nil, fmt.Errorf("fetch channel history: %w", err)
	}
	s.logger.Info("Fetched full channel history", "messages", len(allMessages))

	var prompts []gallery.PromptRecord
	for _, m := range allMessages {
		if m.User == botID || m.Automated() {
			prompts = append(prompts, gallery.PromptRecord{Text: m.Text, Timestamp: m.Timestamp})
		}
	}
	s.logger.Info("Found bot prompts", "count", len(prompts))

	promptTexts := durablePromptTexts(prompts)
	if err := s.store.SavePrompts(ctx, promptTexts); err != nil {
		return nil, fmt.Errorf("save prompts: %w", err)
	}

	// Recent window for image discovery.
	oldest := strconv.FormatInt(time.Now().Add(-s.cfg.Lookback).Unix(), 10)
	recent, err := s.chat.History(ctx, channelID, oldest)
	if err != nil {
		return nil, fmt.Errorf("fetch recent history: %w", err)
	}
	s.logger.Info("Fetched recent messages", "messages", len(recent), "oldest", oldest)

	images := gallery.ExtractImages(recent)

	// Drawings are often posted as thread replies to the prompt.
	for _, m := range recent {
		if m.ReplyCount == 0 {
			continue
		}
		replies, err := s.chat.Replies(ctx, channelID, m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("fetch thread replies for %s: %w", m.Timestamp, err)
		}
		images = append(images, gallery.ExtractImages(replies)...)
	}
	s.logger.Info("Found images", "count", len(images))

	images = gallery.AssociatePrompts(images, prompts)

	manifest, err := s.store.LoadManifest(ctx)
	if err != nil {
		return nil, err
	}
	newImages := storage.FilterNew(images, manifest)

	summary := &Summary{
		Prompts:    len(promptTexts),
		Discovered: len(images),
		New:        len(newImages),
	}

	if len(newImages) == 0 {
		s.logger.Info("No new images to download")
		return summary, nil
	}
	s.logger.Info("New images to download", "count", len(newImages))

	s.resolveArtists(ctx, newImages)

	var newEntries []gallery.ManifestEntry
	for _, img := range newImages {
		entry, err := s.downloadOne(ctx, img)
		if err != nil {
			s.logger.Error("Failed to download image", "file_id", img.FileID, "error", err)
			summary.Failed++
			continue
		}
		newEntries = append(newEntries, *entry)
		summary.Downloaded++
	}

	manifest = append(manifest, newEntries...)
	if err := s.store.SaveManifest(ctx, manifest); err != nil {
		return nil, err
	}

	s.logger.Info("Sync completed",
		"discovered", summary.Discovered,
		"new", summary.New,
		"downloaded", summary.Downloaded,
		"failed", summary.Failed)

	return summary, nil
}

// resolveArtists fills in a display name per unique author, resolving
// each ID at most once. A lookup failure degrades to the raw ID rather
// than aborting the run.
func (s *Syncer) resolveArtists(ctx context.Context, images []gallery.ImageRef) {
	names := make(map[string]string)
	for i := range images {
		img := &images[i]
		if img.Author == "" {
			continue
		}
		name, ok := names[img.Author]
		if !ok {
			var err error
			name, err = s.chat.DisplayName(ctx, img.Author)
			if err != nil {
				s.logger.Warn("Could not resolve username", "user_id", img.Author, "error", err)
				name = img.Author
			}
			names[img.Author] = name
		}
		img.Artist = name
	}
}

func (s *Syncer) downloadOne(ctx context.Context, img gallery.ImageRef) (*gallery.ManifestEntry, error) {
	filename, err := img.Filename()
	if err != nil {
		return nil, err
	}
	date, err := gallery.TimestampDate(img.MessageTS)
	if err != nil {
		return nil, err
	}

	data, err := s.downloader.Fetch(ctx, img.URL, s.cfg.Token)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveImage(ctx, filename, data); err != nil {
		return nil, err
	}
	s.logger.Info("Downloaded image", "filename", filename, "bytes", len(data), "artist", img.Artist)

	return &gallery.ManifestEntry{
		ID:       img.FileID,
		Filename: filename,
		Date:     date,
		Prompt:   img.Prompt,
		Artist:   img.Artist,
		Width:    img.Width,
		Height:   img.Height,
	}, nil
}

// durablePromptTexts filters the all-time prompt list down to what the
// gallery page consumes: non-empty text, minus channel-join system
// noise.
func durablePromptTexts(prompts []gallery.PromptRecord) []string {
	var texts []string
	for _, p := range prompts {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if strings.Contains(p.Text, "has joined the channel") {
			continue
		}
		texts = append(texts, p.Text)
	}
	return texts
}
