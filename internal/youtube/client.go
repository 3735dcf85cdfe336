package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-querystring/query"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/gauthierbraillon/subfeed/internal/logging"
)

const defaultBaseURL = "https://www.googleapis.com"

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials supplies the bearer token and is told when the API rejects it.
type Credentials interface {
	AccessToken(ctx context.Context) string
	Invalidate(ctx context.Context)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithAPIKey adds the developer key to every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithRateLimiter paces outgoing requests. A nil limiter disables pacing.
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

func WithLogger(logger log.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is a YouTube Data API client.
type Client struct {
	creds      Credentials
	apiKey     string
	baseURL    string
	httpClient HTTPClient
	limiter    *rate.Limiter
	logger     log.FieldLogger
}

// NewClient creates a client that reads its bearer token from creds on
// every request. creds may be nil, in which case requests carry only the
// API key.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		creds:      creds,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component(c.logger, "youtube")

	return c
}

type subscriptionsQuery struct {
	Part       string `url:"part"`
	Mine       bool   `url:"mine"`
	MaxResults int64  `url:"maxResults"`
	Key        string `url:"key,omitempty"`
}

type channelsQuery struct {
	Part string `url:"part"`
	ID   string `url:"id"`
	Key  string `url:"key,omitempty"`
}

type playlistItemsQuery struct {
	Part       string `url:"part"`
	PlaylistID string `url:"playlistId"`
	MaxResults int64  `url:"maxResults"`
	Key        string `url:"key,omitempty"`
}

// ListMySubscriptions returns one page of the authenticated user's
// subscriptions.
func (c *Client) ListMySubscriptions(ctx context.Context, maxResults int64) ([]Subscription, error) {
	var resp ytapi.SubscriptionListResponse
	q := subscriptionsQuery{Part: "snippet", Mine: true, MaxResults: maxResults, Key: c.apiKey}
	if err := c.get(ctx, "/youtube/v3/subscriptions", q, &resp); err != nil {
		return nil, err
	}

	subs := make([]Subscription, 0, len(resp.Items))
	for _, item := range resp.Items {
		if sub, ok := subscriptionFromAPI(item); ok {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// GetChannelUploadsPlaylistID returns the id of the channel's uploads
// playlist, or "" when the channel is unknown or has none.
func (c *Client) GetChannelUploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	var resp ytapi.ChannelListResponse
	q := channelsQuery{Part: "contentDetails", ID: channelID, Key: c.apiKey}
	if err := c.get(ctx, "/youtube/v3/channels", q, &resp); err != nil {
		return "", err
	}

	for _, ch := range resp.Items {
		if ch == nil || ch.ContentDetails == nil || ch.ContentDetails.RelatedPlaylists == nil {
			continue
		}
		if id := ch.ContentDetails.RelatedPlaylists.Uploads; id != "" {
			return id, nil
		}
	}
	return "", nil
}

// ListPlaylistItems returns up to maxResults items of a playlist, most
// recent first as served by the API.
func (c *Client) ListPlaylistItems(ctx context.Context, playlistID string, maxResults int64) ([]PlaylistItem, error) {
	var resp ytapi.PlaylistItemListResponse
	q := playlistItemsQuery{Part: "snippet", PlaylistID: playlistID, MaxResults: maxResults, Key: c.apiKey}
	if err := c.get(ctx, "/youtube/v3/playlistItems", q, &resp); err != nil {
		return nil, err
	}

	items := make([]PlaylistItem, 0, len(resp.Items))
	for _, item := range resp.Items {
		if it, ok := playlistItemFromAPI(item); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, params interface{}, out interface{}) error {
	values, err := query.Values(params)
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	body, err := c.doRequest(ctx, c.baseURL+path+"?"+values.Encode())
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.creds != nil {
		if token := c.creds.AccessToken(ctx); token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	entry := c.logger.WithFields(log.Fields{"path": req.URL.Path, "status": resp.StatusCode})
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry.Debug("youtube request ok")
		return body, nil
	}

	apiErr := classify(resp, body)
	entry.WithFields(log.Fields{"kind": apiErr.Kind.String(), "reason": apiErr.Reason}).Warn(apiErr.Message)
	if errors.Is(apiErr, ErrCredentialInvalid) && c.creds != nil {
		c.creds.Invalidate(ctx)
	}
	return nil, apiErr
}
