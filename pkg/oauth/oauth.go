// Package oauth implements the browser side of the OAuth 2.0 implicit grant
// used to obtain a YouTube access token.
package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	ytapi "google.golang.org/api/youtube/v3"
)

const googleAuthURL = "https://accounts.google.com/o/oauth2/auth"

var (
	ErrInvalidState = errors.New("oauth: state mismatch")
	ErrMissingToken = errors.New("oauth: authorization response has no access token")
)

type Config struct {
	ClientID    string
	AuthURL     string
	RedirectURL string
	Scopes      []string
}

func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return errors.New("oauth: client ID is required")
	case c.AuthURL == "":
		return errors.New("oauth: authorization URL is required")
	case c.RedirectURL == "":
		return errors.New("oauth: redirect URL is required")
	case len(c.Scopes) == 0:
		return errors.New("oauth: at least one scope is required")
	}
	return nil
}

// YouTubeOAuthConfig requests read access plus force-ssl, which the Data
// API wants for subscription listing.
func YouTubeOAuthConfig(clientID, redirectURL string) Config {
	return Config{ // #nosec G101 -- OAuth URLs are public API endpoints, not hardcoded credentials
		ClientID:    clientID,
		AuthURL:     googleAuthURL,
		RedirectURL: redirectURL,
		Scopes:      []string{ytapi.YoutubeReadonlyScope, ytapi.YoutubeForceSslScope},
	}
}

type Flow struct {
	config   Config
	newState func() string
}

type FlowOption func(*Flow)

// WithStateGenerator replaces the random state source.
func WithStateGenerator(gen func() string) FlowOption {
	return func(f *Flow) { f.newState = gen }
}

func NewFlow(config Config, opts ...FlowOption) *Flow {
	f := &Flow{config: config, newState: uuid.NewString}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GenerateAuthURL returns the URL to open in the browser and the state
// value the callback must echo back.
func (f *Flow) GenerateAuthURL() (string, string) {
	state := f.newState()
	cfg := &oauth2.Config{
		ClientID:    f.config.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: f.config.AuthURL},
		RedirectURL: f.config.RedirectURL,
		Scopes:      f.config.Scopes,
	}
	authURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return authURL, state
}

// Grant is what the authorization server hands back in the redirect
// fragment. ExpiresIn is 0 when the server did not say.
type Grant struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	Scope       string
	State       string
}

// AuthError is an error reported by the authorization server, such as the
// user denying access.
type AuthError struct {
	Code        string
	Description string
	State       string
}

func (e *AuthError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("authorization failed: %s", e.Code)
	}
	return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
}

// ParseFragment reads the URL fragment of an implicit-grant redirect, with
// or without its leading '#'.
func ParseFragment(fragment string) (*Grant, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization response: %w", err)
	}

	if code := values.Get("error"); code != "" {
		return nil, &AuthError{Code: code, Description: values.Get("error_description"), State: values.Get("state")}
	}

	token := values.Get("access_token")
	if token == "" {
		return nil, ErrMissingToken
	}

	expiresIn, err := strconv.ParseInt(values.Get("expires_in"), 10, 64)
	if err != nil || expiresIn < 0 {
		expiresIn = 0
	}

	return &Grant{
		AccessToken: token,
		TokenType:   values.Get("token_type"),
		ExpiresIn:   expiresIn,
		Scope:       values.Get("scope"),
		State:       values.Get("state"),
	}, nil
}
