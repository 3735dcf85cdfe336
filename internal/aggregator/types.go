// Package aggregator builds the "recent uploads from my subscriptions" feed.
//
// This package enables subfeed to:
// - Fetch the newest uploads of every subscribed channel
// - Drop duplicates and uploads older than the lookback window
// - Merge everything newest first and slice it into pages
package aggregator

import (
	"fmt"
	"time"
)

const (
	DefaultWindowDays            = 7
	DefaultItemsPerChannel int64 = 2
	DefaultPageSize              = 50
)

// VideoItem is one upload in the feed. ID is the dedup key.
type VideoItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	ChannelTitle string    `json:"channel_title"`
	ChannelID    string    `json:"channel_id"`
	URL          string    `json:"url"`
}

// WatchURL returns the public watch page of a video.
func WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// Result is the output of one pipeline run. Items are sorted by
// PublishedAt, newest first.
type Result struct {
	Items      []VideoItem     `json:"items"`
	TotalCount int             `json:"total_count"`
	Failures   []*ChannelError `json:"-"`
}

func emptyResult() Result {
	return Result{Items: []VideoItem{}}
}

// Page is a window onto a Result.
type Page struct {
	Items      []VideoItem `json:"items"`
	PageIndex  int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalCount int         `json:"total_count"`
}

// TotalPages is the number of non-empty pages in the underlying result.
func (p Page) TotalPages() int {
	if p.PageSize <= 0 || p.TotalCount == 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

// HasNext reports whether a later page holds items.
func (p Page) HasNext() bool {
	return p.PageIndex < p.TotalPages()
}

// SeenSet holds the video IDs already emitted during a run.
type SeenSet map[string]struct{}

// Add records id and reports whether it was new.
func (s SeenSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s SeenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Stages reported by ChannelError.
const (
	StageUploadsPlaylist = "uploads_playlist"
	StagePlaylistItems   = "playlist_items"
)

// ChannelError records a channel whose uploads could not be fetched. The run
// carries on without it.
type ChannelError struct {
	ChannelID string
	Stage     string
	Err       error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %s: %v", e.ChannelID, e.Stage, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
