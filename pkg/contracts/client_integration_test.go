// Package contracts integration tests verify that the real client
// correctly parses API responses matching the defined contracts.
package contracts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

type staticToken struct {
	invalidated int
}

func (s *staticToken) AccessToken(context.Context) string { return "test-token" }
func (s *staticToken) Invalidate(context.Context)         { s.invalidated++ }

func contractServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

// TestYouTubeClient_ParsesSubscriptionContract verifies the client
// correctly parses responses matching the contract schema.
func TestYouTubeClient_ParsesSubscriptionContract(t *testing.T) {
	server := contractServer(t, http.StatusOK, SubscriptionListContract)
	client := youtube.NewClient(&staticToken{}, youtube.WithBaseURL(server.URL))

	subs, err := client.ListMySubscriptions(context.Background(), 25)
	if err != nil {
		t.Fatalf("client should parse contract response: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subs))
	}

	sub := subs[0]
	if sub.ChannelID != "UC123abc" {
		t.Errorf("expected channelId 'UC123abc', got %q", sub.ChannelID)
	}
	if sub.Title != "Test Channel" {
		t.Errorf("expected title 'Test Channel', got %q", sub.Title)
	}
	if sub.Description != "A test channel description" {
		t.Errorf("expected description 'A test channel description', got %q", sub.Description)
	}
	if sub.Thumbnail != "https://yt3.example.com/UC123abc/default.jpg" {
		t.Errorf("channel thumbnail should use the default rendition, got %q", sub.Thumbnail)
	}
	if subs[1].Thumbnail != "" {
		t.Errorf("missing thumbnails should stay empty, got %q", subs[1].Thumbnail)
	}
}

func TestYouTubeClient_ParsesChannelContract(t *testing.T) {
	server := contractServer(t, http.StatusOK, ChannelListContract)
	client := youtube.NewClient(&staticToken{}, youtube.WithBaseURL(server.URL))

	id, err := client.GetChannelUploadsPlaylistID(context.Background(), "UC123abc")
	if err != nil {
		t.Fatalf("client should parse contract response: %v", err)
	}
	if id != "UU123abc" {
		t.Errorf("expected uploads playlist 'UU123abc', got %q", id)
	}
}

func TestYouTubeClient_ParsesPlaylistItemContract(t *testing.T) {
	server := contractServer(t, http.StatusOK, PlaylistItemListContract)
	client := youtube.NewClient(&staticToken{}, youtube.WithBaseURL(server.URL))

	items, err := client.ListPlaylistItems(context.Background(), "UU123abc", 2)
	if err != nil {
		t.Fatalf("client should parse contract response: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	if items[0].VideoID != "vid-new" || items[0].ChannelTitle != "Test Channel" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[0].Thumbnail != "https://i.example.com/vid-new/mqdefault.jpg" {
		t.Errorf("video thumbnail should prefer the medium rendition, got %q", items[0].Thumbnail)
	}
	if items[1].Thumbnail != "https://i.example.com/vid-old/default.jpg" {
		t.Errorf("video thumbnail should fall back to the default rendition, got %q", items[1].Thumbnail)
	}
	if items[0].PublishedAt.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("publishedAt should be parsed, got %v", items[0].PublishedAt)
	}
}

// TestYouTubeClient_ClassifiesErrorContracts verifies the error documents
// map onto the client's error kinds and credential handling.
func TestYouTubeClient_ClassifiesErrorContracts(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		want            error
		wantInvalidated int
	}{
		{"quota", http.StatusForbidden, QuotaExceededContract, youtube.ErrQuotaExceeded, 0},
		{"invalid credentials", http.StatusUnauthorized, InvalidCredentialsContract, youtube.ErrCredentialInvalid, 1},
		{"insufficient scope", http.StatusForbidden, InsufficientScopeContract, youtube.ErrCredentialInvalid, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := contractServer(t, tt.status, tt.body)
			creds := &staticToken{}
			client := youtube.NewClient(creds, youtube.WithBaseURL(server.URL))

			_, err := client.ListMySubscriptions(context.Background(), 25)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if creds.invalidated != tt.wantInvalidated {
				t.Errorf("expected %d invalidations, got %d", tt.wantInvalidated, creds.invalidated)
			}
		})
	}
}

// TestYouTubeClient_AgainstFakeAPI runs the whole read path against FakeAPI.
func TestYouTubeClient_AgainstFakeAPI(t *testing.T) {
	api := NewFakeAPI(Channel{
		ID:              "UC123abc",
		Title:           "Test Channel",
		UploadsPlaylist: "UU123abc",
		Videos:          []Video{{ID: "vid-1", Title: "One"}},
	})
	server := httptest.NewServer(api)
	defer server.Close()

	client := youtube.NewClient(&staticToken{}, youtube.WithBaseURL(server.URL))
	ctx := context.Background()

	subs, err := client.ListMySubscriptions(ctx, 25)
	if err != nil || len(subs) != 1 {
		t.Fatalf("expected one subscription, got %v (err %v)", subs, err)
	}
	playlist, err := client.GetChannelUploadsPlaylistID(ctx, subs[0].ChannelID)
	if err != nil || playlist != "UU123abc" {
		t.Fatalf("expected uploads playlist, got %q (err %v)", playlist, err)
	}
	items, err := client.ListPlaylistItems(ctx, playlist, 2)
	if err != nil || len(items) != 1 || items[0].VideoID != "vid-1" {
		t.Fatalf("expected one upload, got %v (err %v)", items, err)
	}

	if api.TotalCalls() != 3 {
		t.Errorf("expected 3 API calls, got %d", api.TotalCalls())
	}
	for _, h := range api.AuthHeaders() {
		if h != "Bearer test-token" {
			t.Errorf("expected bearer header, got %q", h)
		}
	}
}
