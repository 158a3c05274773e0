// Package storage persists the gallery manifest, the all-time prompt
// list, and the downloaded image files, either in a local directory or
// a Cloud Storage bucket.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"

	"drawma-gallery/pkg/gallery"
)

const (
	manifestKey = "manifest.json"
	promptsKey  = "prompts.json"
)

// Store handles gallery persistence. When localDir is set it wins over
// the bucket; otherwise all objects live in Cloud Storage.
type Store struct {
	client   *storage.Client
	logger   *slog.Logger
	localDir string
	bucket   string
}

// New creates a storage handler.
func New(client *storage.Client, bucket, localDir string, logger *slog.Logger) *Store {
	return &Store{
		client:   client,
		logger:   logger,
		localDir: localDir,
		bucket:   bucket,
	}
}

// LoadManifest reads the manifest of already-downloaded images. A
// missing manifest is not an error: the first run starts empty.
func (s *Store) LoadManifest(ctx context.Context) ([]gallery.ManifestEntry, error) {
	data, err := s.read(ctx, manifestKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	var manifest []gallery.ManifestEntry
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return manifest, nil
}

// SaveManifest rewrites the whole manifest, sorted by date descending.
// The date format is zero-padded, so lexicographic ordering is
// chronological.
func (s *Store) SaveManifest(ctx context.Context, manifest []gallery.ManifestEntry) error {
	sort.SliceStable(manifest, func(i, j int) bool {
		return manifest[i].Date > manifest[j].Date
	})

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	if err := s.write(ctx, manifestKey, data); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	s.logger.Info("Manifest saved", "entries", len(manifest))
	return nil
}

// SavePrompts rewrites the flat list of all-time prompt texts consumed
// by the gallery page.
func (s *Store) SavePrompts(ctx context.Context, texts []string) error {
	if texts == nil {
		texts = []string{}
	}
	data, err := json.MarshalIndent(texts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prompts: %w", err)
	}
	data = append(data, '\n')

	if err := s.write(ctx, promptsKey, data); err != nil {
		return fmt.Errorf("save prompts: %w", err)
	}
	s.logger.Info("Prompts saved", "count", len(texts))
	return nil
}

// SaveImage stores downloaded image bytes under the given filename.
func (s *Store) SaveImage(ctx context.Context, filename string, data []byte) error {
	if err := s.write(ctx, filename, data); err != nil {
		return fmt.Errorf("save image %s: %w", filename, err)
	}
	s.logger.Info("Image saved", "filename", filename, "bytes", len(data))
	return nil
}

// FilterNew keeps only images whose file ID is absent from the
// manifest. The manifest is the single source of truth for "already
// processed" regardless of what files exist on disk.
func FilterNew(images []gallery.ImageRef, manifest []gallery.ManifestEntry) []gallery.ImageRef {
	existing := make(map[string]struct{}, len(manifest))
	for _, entry := range manifest {
		existing[entry.ID] = struct{}{}
	}

	var fresh []gallery.ImageRef
	for _, img := range images {
		if _, ok := existing[img.FileID]; !ok {
			fresh = append(fresh, img)
		}
	}
	return fresh
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	// Local filesystem storage
	if s.localDir != "" {
		data, err := os.ReadFile(filepath.Join(s.localDir, key))
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(openErr)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying read operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read after retries: %w", err)
	}
	return data, nil
}

func (s *Store) write(ctx context.Context, key string, data []byte) error {
	// Local filesystem storage. Write to a temp file and rename so a
	// crash mid-write can't truncate the previous version.
	if s.localDir != "" {
		if err := os.MkdirAll(s.localDir, 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
		tmp, err := os.CreateTemp(s.localDir, key+".tmp-*")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write temp file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("close temp file: %w", err)
		}
		if err := os.Rename(tmp.Name(), filepath.Join(s.localDir, key)); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("rename temp file: %w", err)
		}
		return nil
	}

	// Cloud Storage with retry logic for reliability
	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying write operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("write after retries: %w", err)
	}
	return nil
}
