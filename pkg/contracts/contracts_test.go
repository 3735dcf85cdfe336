package contracts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	ytapi "google.golang.org/api/youtube/v3"
)

// TestSubscriptionListContract_DecodesIntoGoogleTypes checks the fixture
// against the generated API types rather than a hand-written mirror.
func TestSubscriptionListContract_DecodesIntoGoogleTypes(t *testing.T) {
	var resp ytapi.SubscriptionListResponse
	require.NoError(t, json.Unmarshal([]byte(SubscriptionListContract), &resp))

	require.Len(t, resp.Items, 2)
	sn := resp.Items[0].Snippet
	require.NotNil(t, sn)
	assert.Equal(t, "UC123abc", sn.ResourceId.ChannelId)
	assert.Equal(t, "Test Channel", sn.Title)
	_, err := time.Parse(time.RFC3339, sn.PublishedAt)
	assert.NoError(t, err, "publishedAt should be RFC 3339")
}

func TestChannelListContract_CarriesUploadsPlaylist(t *testing.T) {
	var resp ytapi.ChannelListResponse
	require.NoError(t, json.Unmarshal([]byte(ChannelListContract), &resp))

	require.Len(t, resp.Items, 1)
	assert.Equal(t, "UU123abc", resp.Items[0].ContentDetails.RelatedPlaylists.Uploads)
}

func TestPlaylistItemListContract_DecodesIntoGoogleTypes(t *testing.T) {
	var resp ytapi.PlaylistItemListResponse
	require.NoError(t, json.Unmarshal([]byte(PlaylistItemListContract), &resp))

	require.Len(t, resp.Items, 2)
	assert.Equal(t, "vid-new", resp.Items[0].Snippet.ResourceId.VideoId)
	assert.Equal(t, "https://i.example.com/vid-new/mqdefault.jpg", resp.Items[0].Snippet.Thumbnails.Medium.Url)
	assert.Nil(t, resp.Items[1].Snippet.Thumbnails.Medium)
}

func TestErrorContracts_ParseWithGoogleAPI(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason string
	}{
		{"quota", http.StatusForbidden, QuotaExceededContract, "quotaExceeded"},
		{"invalid credentials", http.StatusUnauthorized, InvalidCredentialsContract, "authError"},
		{"insufficient scope", http.StatusForbidden, InsufficientScopeContract, "insufficientPermissions"},
		{"rendered", http.StatusForbidden, ErrorBody(403, "dailyLimitExceeded", "Daily Limit Exceeded"), "dailyLimitExceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.status, tt.body)

			err := googleapi.CheckResponse(rec.Result())
			var gerr *googleapi.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.status, gerr.Code)
			require.NotEmpty(t, gerr.Errors)
			assert.Equal(t, tt.reason, gerr.Errors[0].Reason)
		})
	}
}

func TestFakeAPI_ServesUploadsNewestFirst(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	api := NewFakeAPI(Channel{
		ID: "UC1", Title: "One", UploadsPlaylist: "UU1",
		Videos: []Video{
			{ID: "a", Title: "old", PublishedAt: now.Add(-48 * time.Hour)},
			{ID: "b", Title: "new", PublishedAt: now.Add(-time.Hour)},
			{ID: "c", Title: "mid", PublishedAt: now.Add(-24 * time.Hour)},
		},
	})
	server := httptest.NewServer(api)
	defer server.Close()

	res, err := http.Get(server.URL + "/youtube/v3/playlistItems?part=snippet&playlistId=UU1&maxResults=2")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var resp ytapi.PlaylistItemListResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "b", resp.Items[0].Snippet.ResourceId.VideoId)
	assert.Equal(t, "c", resp.Items[1].Snippet.ResourceId.VideoId)
	assert.Equal(t, 1, api.Calls("playlistItems"))
}

func TestFakeAPI_FailsConfiguredEndpoint(t *testing.T) {
	api := NewFakeAPI(Channel{ID: "UC1", UploadsPlaylist: "UU1", ChannelStatus: http.StatusInternalServerError})
	server := httptest.NewServer(api)
	defer server.Close()

	res, err := http.Get(server.URL + "/youtube/v3/channels?part=contentDetails&id=UC1")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}
