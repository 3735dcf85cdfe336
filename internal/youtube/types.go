// Package youtube provides a client for the three YouTube Data API v3 reads
// subfeed needs:
// - the authenticated user's subscriptions
// - a channel's uploads playlist
// - the most recent items of a playlist
package youtube

import (
	"time"

	ytapi "google.golang.org/api/youtube/v3"
)

// Subscription is a channel the user follows.
type Subscription struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Thumbnail    string    `json:"thumbnail"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// PlaylistItem is one entry of a playlist, typically a channel upload.
type PlaylistItem struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Thumbnail    string    `json:"thumbnail"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at"`
}

func subscriptionFromAPI(item *ytapi.Subscription) (Subscription, bool) {
	if item == nil || item.Snippet == nil || item.Snippet.ResourceId == nil || item.Snippet.ResourceId.ChannelId == "" {
		return Subscription{}, false
	}
	sn := item.Snippet
	return Subscription{
		ID:           item.Id,
		ChannelID:    sn.ResourceId.ChannelId,
		Title:        sn.Title,
		Description:  sn.Description,
		Thumbnail:    thumbnailURL(sn.Thumbnails, false),
		SubscribedAt: parseTime(sn.PublishedAt),
	}, true
}

func playlistItemFromAPI(item *ytapi.PlaylistItem) (PlaylistItem, bool) {
	if item == nil || item.Snippet == nil {
		return PlaylistItem{}, false
	}
	sn := item.Snippet

	videoID := ""
	if sn.ResourceId != nil {
		videoID = sn.ResourceId.VideoId
	}
	if videoID == "" && item.ContentDetails != nil {
		videoID = item.ContentDetails.VideoId
	}
	if videoID == "" {
		return PlaylistItem{}, false
	}

	channelID := sn.VideoOwnerChannelId
	if channelID == "" {
		channelID = sn.ChannelId
	}

	return PlaylistItem{
		VideoID:      videoID,
		Title:        sn.Title,
		Description:  sn.Description,
		Thumbnail:    thumbnailURL(sn.Thumbnails, true),
		ChannelID:    channelID,
		ChannelTitle: sn.ChannelTitle,
		PublishedAt:  parseTime(sn.PublishedAt),
	}, true
}

// thumbnailURL picks the medium rendition for videos and the default one for
// channels, falling back to whatever is present.
func thumbnailURL(t *ytapi.ThumbnailDetails, preferMedium bool) string {
	if t == nil {
		return ""
	}
	order := []*ytapi.Thumbnail{t.Default, t.Medium, t.High, t.Standard, t.Maxres}
	if preferMedium {
		order = []*ytapi.Thumbnail{t.Medium, t.High, t.Default, t.Standard, t.Maxres}
	}
	for _, th := range order {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// parseTime returns the zero time for missing or malformed timestamps.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
