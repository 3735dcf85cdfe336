// Package contracts holds canned YouTube Data API v3 payloads and a fake
// API server built from them. Tests across the module share these so the
// client, the pipeline and the CLI all agree on what the API looks like.
package contracts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	ytapi "google.golang.org/api/youtube/v3"
)

// SubscriptionListContract is a subscriptions.list response with part=snippet.
const SubscriptionListContract = `{
  "kind": "youtube#subscriptionListResponse",
  "etag": "abc",
  "pageInfo": {"totalResults": 2, "resultsPerPage": 25},
  "items": [
    {
      "kind": "youtube#subscription",
      "id": "sub-1",
      "snippet": {
        "publishedAt": "2023-05-01T08:00:00Z",
        "title": "Test Channel",
        "description": "A test channel description",
        "resourceId": {"kind": "youtube#channel", "channelId": "UC123abc"},
        "channelId": "UCme",
        "thumbnails": {
          "default": {"url": "https://yt3.example.com/UC123abc/default.jpg"},
          "medium": {"url": "https://yt3.example.com/UC123abc/medium.jpg"}
        }
      }
    },
    {
      "kind": "youtube#subscription",
      "id": "sub-2",
      "snippet": {
        "publishedAt": "2022-11-20T17:30:00Z",
        "title": "Second Channel",
        "resourceId": {"kind": "youtube#channel", "channelId": "UC456def"},
        "channelId": "UCme"
      }
    }
  ]
}`

// ChannelListContract is a channels.list response with part=contentDetails.
const ChannelListContract = `{
  "kind": "youtube#channelListResponse",
  "items": [
    {
      "kind": "youtube#channel",
      "id": "UC123abc",
      "contentDetails": {
        "relatedPlaylists": {"likes": "", "uploads": "UU123abc"}
      }
    }
  ]
}`

// PlaylistItemListContract is a playlistItems.list response with part=snippet.
const PlaylistItemListContract = `{
  "kind": "youtube#playlistItemListResponse",
  "items": [
    {
      "kind": "youtube#playlistItem",
      "id": "pli-1",
      "snippet": {
        "publishedAt": "2024-01-15T10:00:00Z",
        "channelId": "UC123abc",
        "title": "Newest upload",
        "description": "Fresh video",
        "channelTitle": "Test Channel",
        "playlistId": "UU123abc",
        "position": 0,
        "resourceId": {"kind": "youtube#video", "videoId": "vid-new"},
        "videoOwnerChannelId": "UC123abc",
        "videoOwnerChannelTitle": "Test Channel",
        "thumbnails": {
          "default": {"url": "https://i.example.com/vid-new/default.jpg"},
          "medium": {"url": "https://i.example.com/vid-new/mqdefault.jpg"},
          "high": {"url": "https://i.example.com/vid-new/hqdefault.jpg"}
        }
      }
    },
    {
      "kind": "youtube#playlistItem",
      "id": "pli-2",
      "snippet": {
        "publishedAt": "2024-01-10T09:00:00Z",
        "channelId": "UC123abc",
        "title": "Older upload",
        "channelTitle": "Test Channel",
        "playlistId": "UU123abc",
        "position": 1,
        "resourceId": {"kind": "youtube#video", "videoId": "vid-old"},
        "thumbnails": {
          "default": {"url": "https://i.example.com/vid-old/default.jpg"}
        }
      }
    }
  ]
}`

// QuotaExceededContract is the 403 body returned once the daily quota is used.
const QuotaExceededContract = `{
  "error": {
    "code": 403,
    "message": "The request cannot be completed because you have exceeded your <a href=\"/youtube/v3/getting-started#quota\">quota</a>.",
    "errors": [
      {"message": "The request cannot be completed because you have exceeded your quota.", "domain": "youtube.quota", "reason": "quotaExceeded"}
    ]
  }
}`

// InvalidCredentialsContract is the 401 body for a revoked or expired token.
const InvalidCredentialsContract = `{
  "error": {
    "code": 401,
    "message": "Request had invalid authentication credentials. Expected OAuth 2 access token, login cookie or other valid authentication credential.",
    "errors": [
      {"message": "Invalid Credentials", "domain": "global", "reason": "authError", "location": "Authorization", "locationType": "header"}
    ],
    "status": "UNAUTHENTICATED"
  }
}`

// InsufficientScopeContract is a 403 that is not about quota.
const InsufficientScopeContract = `{
  "error": {
    "code": 403,
    "message": "Request had insufficient authentication scopes.",
    "errors": [
      {"message": "Insufficient Permission", "domain": "global", "reason": "insufficientPermissions"}
    ],
    "status": "PERMISSION_DENIED"
  }
}`

// ErrorBody renders an API error document.
func ErrorBody(code int, reason, message string) string {
	doc := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"errors": []map[string]string{
				{"message": message, "domain": "global", "reason": reason},
			},
		},
	}
	data, _ := json.Marshal(doc)
	return string(data)
}

// Video is an upload served by FakeAPI.
type Video struct {
	ID          string
	Title       string
	PublishedAt time.Time
}

// Channel is a subscribed channel served by FakeAPI.
//
// ChannelStatus and PlaylistStatus, when non-zero, make the matching
// endpoint fail for this channel with ErrorBody.
type Channel struct {
	ID              string
	Title           string
	UploadsPlaylist string
	Videos          []Video

	ChannelStatus  int
	PlaylistStatus int
	ErrorBody      string
}

// FakeAPI is an http.Handler speaking the three endpoints the client uses.
type FakeAPI struct {
	mu sync.Mutex

	Channels []Channel

	// SubscriptionsStatus and SubscriptionsBody make subscriptions.list fail.
	SubscriptionsStatus int
	SubscriptionsBody   string

	calls       map[string]int
	authHeaders []string
}

func NewFakeAPI(channels ...Channel) *FakeAPI {
	return &FakeAPI{Channels: channels, calls: map[string]int{}}
}

// Calls returns how many requests hit the endpoint ("subscriptions",
// "channels" or "playlistItems").
func (f *FakeAPI) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// TotalCalls returns the number of requests served.
func (f *FakeAPI) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// AuthHeaders returns the Authorization headers seen, in order.
func (f *FakeAPI) AuthHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *FakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))

	q := r.URL.Query()
	switch r.URL.Path {
	case "/youtube/v3/subscriptions":
		f.calls["subscriptions"]++
		if f.SubscriptionsStatus != 0 {
			writeError(w, f.SubscriptionsStatus, f.SubscriptionsBody)
			return
		}
		writeJSON(w, f.subscriptions(maxResults(q.Get("maxResults"), 25)))

	case "/youtube/v3/channels":
		f.calls["channels"]++
		ch, ok := f.channel(q.Get("id"))
		if ok && ch.ChannelStatus != 0 {
			writeError(w, ch.ChannelStatus, ch.ErrorBody)
			return
		}
		resp := &ytapi.ChannelListResponse{Kind: "youtube#channelListResponse"}
		if ok && ch.UploadsPlaylist != "" {
			resp.Items = []*ytapi.Channel{{
				Id: ch.ID,
				ContentDetails: &ytapi.ChannelContentDetails{
					RelatedPlaylists: &ytapi.ChannelContentDetailsRelatedPlaylists{Uploads: ch.UploadsPlaylist},
				},
			}}
		}
		writeJSON(w, resp)

	case "/youtube/v3/playlistItems":
		f.calls["playlistItems"]++
		ch, ok := f.playlistOwner(q.Get("playlistId"))
		if ok && ch.PlaylistStatus != 0 {
			writeError(w, ch.PlaylistStatus, ch.ErrorBody)
			return
		}
		resp := &ytapi.PlaylistItemListResponse{Kind: "youtube#playlistItemListResponse"}
		if ok {
			resp.Items = playlistItems(ch, maxResults(q.Get("maxResults"), 5))
		}
		writeJSON(w, resp)

	default:
		writeError(w, http.StatusNotFound, ErrorBody(http.StatusNotFound, "notFound", "Not Found"))
	}
}

func (f *FakeAPI) subscriptions(limit int) *ytapi.SubscriptionListResponse {
	resp := &ytapi.SubscriptionListResponse{Kind: "youtube#subscriptionListResponse"}
	for i, ch := range f.Channels {
		if i >= limit {
			break
		}
		resp.Items = append(resp.Items, &ytapi.Subscription{
			Id: "sub-" + ch.ID,
			Snippet: &ytapi.SubscriptionSnippet{
				Title:       ch.Title,
				PublishedAt: "2023-01-01T00:00:00Z",
				ResourceId:  &ytapi.ResourceId{Kind: "youtube#channel", ChannelId: ch.ID},
				Thumbnails: &ytapi.ThumbnailDetails{
					Default: &ytapi.Thumbnail{Url: fmt.Sprintf("https://yt3.example.com/%s/default.jpg", ch.ID)},
				},
			},
		})
	}
	return resp
}

func (f *FakeAPI) channel(id string) (Channel, bool) {
	for _, ch := range f.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return Channel{}, false
}

func (f *FakeAPI) playlistOwner(playlistID string) (Channel, bool) {
	for _, ch := range f.Channels {
		if ch.UploadsPlaylist != "" && ch.UploadsPlaylist == playlistID {
			return ch, true
		}
	}
	return Channel{}, false
}

func playlistItems(ch Channel, limit int) []*ytapi.PlaylistItem {
	videos := append([]Video(nil), ch.Videos...)
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].PublishedAt.After(videos[j].PublishedAt)
	})
	if len(videos) > limit {
		videos = videos[:limit]
	}

	items := make([]*ytapi.PlaylistItem, 0, len(videos))
	for i, v := range videos {
		items = append(items, &ytapi.PlaylistItem{
			Id: "pli-" + v.ID,
			Snippet: &ytapi.PlaylistItemSnippet{
				Title:        v.Title,
				PublishedAt:  v.PublishedAt.UTC().Format(time.RFC3339),
				ChannelId:    ch.ID,
				ChannelTitle: ch.Title,
				PlaylistId:   ch.UploadsPlaylist,
				Position:     int64(i),
				ResourceId:   &ytapi.ResourceId{Kind: "youtube#video", VideoId: v.ID},
				Thumbnails: &ytapi.ThumbnailDetails{
					Default: &ytapi.Thumbnail{Url: fmt.Sprintf("https://i.example.com/%s/default.jpg", v.ID)},
					Medium:  &ytapi.Thumbnail{Url: fmt.Sprintf("https://i.example.com/%s/mqdefault.jpg", v.ID)},
				},
			},
		})
	}
	return items
}

func maxResults(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body string) {
	if body == "" {
		body = ErrorBody(status, "backendError", http.StatusText(status))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
