// Package gallery defines the domain types shared between the Slack
// client, the manifest store, and the sync orchestrator.
package gallery

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Message is a Slack channel message with the fields the sync cares about.
type Message struct {
	Timestamp  string `json:"ts"`
	User       string `json:"user"`
	BotID      string `json:"bot_id"`
	Text       string `json:"text"`
	ReplyCount int    `json:"reply_count"`
	Files      []File `json:"files"`
}

// Automated reports whether the message was posted by a bot rather than
// a human sender.
func (m Message) Automated() bool {
	return m.BotID != ""
}

// File is a message attachment descriptor. Width and Height are nil when
// Slack does not report original dimensions.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Mimetype string `json:"mimetype"`
	URL      string `json:"url_private_download"`
	Width    *int   `json:"original_w"`
	Height   *int   `json:"original_h"`
}

// ImageRef is a single image attachment paired with its source message.
// Prompt and Artist are filled in later by association and attribution.
type ImageRef struct {
	FileID    string
	Name      string
	Mimetype  string
	URL       string
	Width     *int
	Height    *int
	MessageTS string
	Author    string
	Prompt    *string
	Artist    string
}

// Filename derives the deterministic on-disk name for the image:
// {date}-{file_id}.{ext}, where date is the UTC calendar date of the
// source message and ext comes from the original attachment name.
func (img ImageRef) Filename() (string, error) {
	date, err := TimestampDate(img.MessageTS)
	if err != nil {
		return "", err
	}
	ext := strings.TrimPrefix(path.Ext(img.Name), ".")
	if ext == "" {
		return date + "-" + img.FileID, nil
	}
	return date + "-" + img.FileID + "." + ext, nil
}

// PromptRecord is one automation-account message retained from the full
// history scan.
type PromptRecord struct {
	Text      string `json:"text"`
	Timestamp string `json:"ts"`
}

// ManifestEntry is one downloaded image in the durable manifest. ID is
// the Slack file id and is the dedup key across runs. Entries are never
// updated after creation.
type ManifestEntry struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Date     string  `json:"date"`
	Prompt   *string `json:"prompt"`
	Artist   string  `json:"artist"`
	Width    *int    `json:"width"`
	Height   *int    `json:"height"`
}

// TimestampDate converts a Slack timestamp ("seconds.fraction" since
// epoch) to its UTC calendar date in YYYY-MM-DD form.
func TimestampDate(ts string) (string, error) {
	whole, _, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	return time.Unix(sec, 0).UTC().Format("2006-01-02"), nil
}
