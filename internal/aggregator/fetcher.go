package aggregator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// UploadsSource is the part of the YouTube client the fetcher needs.
type UploadsSource interface {
	GetChannelUploadsPlaylistID(ctx context.Context, channelID string) (string, error)
	ListPlaylistItems(ctx context.Context, playlistID string, maxResults int64) ([]youtube.PlaylistItem, error)
}

// Fetcher reads the newest uploads of a single channel.
type Fetcher struct {
	uploads UploadsSource
	logger  log.FieldLogger
}

func NewFetcher(uploads UploadsSource, logger log.FieldLogger) *Fetcher {
	return &Fetcher{
		uploads: uploads,
		logger:  logging.Component(logger, "fetcher"),
	}
}

// FetchRecent returns up to maxItems uploads of the channel published at or
// after windowStart and not already in seen. Emitted IDs are added to seen.
//
// Failures never propagate: they are logged and the channel contributes
// nothing. The returned error, always a *ChannelError, is informational.
func (f *Fetcher) FetchRecent(ctx context.Context, channelID string, maxItems int64, windowStart time.Time, seen SeenSet) ([]VideoItem, error) {
	if maxItems <= 0 {
		maxItems = DefaultItemsPerChannel
	}
	entry := f.logger.WithField("channel_id", channelID)

	playlistID, err := f.uploads.GetChannelUploadsPlaylistID(ctx, channelID)
	if err != nil {
		return f.fail(entry, channelID, StageUploadsPlaylist, err)
	}
	if playlistID == "" {
		entry.Debug("channel has no uploads playlist")
		return []VideoItem{}, nil
	}

	uploads, err := f.uploads.ListPlaylistItems(ctx, playlistID, maxItems)
	if err != nil {
		return f.fail(entry, channelID, StagePlaylistItems, err)
	}

	items := make([]VideoItem, 0, len(uploads))
	for _, u := range uploads {
		if u.PublishedAt.Before(windowStart) {
			continue
		}
		if !seen.Add(u.VideoID) {
			continue
		}
		items = append(items, videoFromUpload(channelID, u))
	}

	entry.WithField("count", len(items)).Debug("channel fetched")
	return items, nil
}

func (f *Fetcher) fail(entry log.FieldLogger, channelID, stage string, err error) ([]VideoItem, error) {
	cerr := &ChannelError{ChannelID: channelID, Stage: stage, Err: err}
	entry.WithError(err).WithField("stage", stage).Warn("skipping channel")
	return []VideoItem{}, cerr
}

func videoFromUpload(channelID string, u youtube.PlaylistItem) VideoItem {
	if u.ChannelID != "" {
		channelID = u.ChannelID
	}
	return VideoItem{
		ID:           u.VideoID,
		Title:        u.Title,
		Description:  u.Description,
		Thumbnail:    u.Thumbnail,
		PublishedAt:  u.PublishedAt,
		ChannelTitle: u.ChannelTitle,
		ChannelID:    channelID,
		URL:          WatchURL(u.VideoID),
	}
}
