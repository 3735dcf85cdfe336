// Package credential tracks the short-lived bearer token that gates every
// YouTube API call.
//
// The token comes from an implicit-grant login and cannot be refreshed:
// once it expires or is rejected, the user has to log in again.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/state"
)

const (
	// ExpiryMargin is subtracted from the recorded expiry before comparing
	// with the current time.
	ExpiryMargin = 5 * time.Minute

	// DefaultTTL is used when the authorization server omits expires_in.
	DefaultTTL int64 = 3600
)

var (
	ErrNoCredential      = errors.New("no credential: run 'subfeed auth' to log in")
	ErrCredentialExpired = errors.New("credential expired: run 'subfeed auth' to log in again")
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for backend failures.
func WithLogger(logger log.FieldLogger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store reads and writes the credential through a state.Store. It keeps no
// copy of its own, so every check sees the latest persisted value.
type Store struct {
	backend state.Store
	now     func() time.Time
	logger  log.FieldLogger
}

func NewStore(backend state.Store, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(s.logger, "credential")
	return s
}

// Check reports why the credential is unusable, or nil when it is usable.
//
// A token without a recorded expiry is treated as usable. The token may
// still be rejected upstream, in which case the client invalidates it.
func (s *Store) Check(ctx context.Context) error {
	tok, err := s.load(ctx)
	if err != nil {
		return err
	}
	if tok.Expiry.IsZero() {
		s.logger.Debug("credential has no recorded expiry, assuming usable")
		return nil
	}
	if !s.now().Before(tok.Expiry.Add(-ExpiryMargin)) {
		return ErrCredentialExpired
	}
	return nil
}

// IsUsable reports whether a call made now could carry a valid credential.
func (s *Store) IsUsable(ctx context.Context) bool {
	return s.Check(ctx) == nil
}

// AccessToken returns the stored token, or "" when none is stored. It does
// not check expiry.
func (s *Store) AccessToken(ctx context.Context) string {
	tok, err := s.load(ctx)
	if err != nil {
		return ""
	}
	return tok.AccessToken
}

// Expiry returns the recorded expiry, if any.
func (s *Store) Expiry(ctx context.Context) (time.Time, bool) {
	tok, err := s.load(ctx)
	if err != nil || tok.Expiry.IsZero() {
		return time.Time{}, false
	}
	return tok.Expiry, true
}

// Save persists a freshly issued token. ttlSeconds <= 0 means the server
// did not say, and DefaultTTL applies.
func (s *Store) Save(ctx context.Context, accessToken string, ttlSeconds int64) error {
	if accessToken == "" {
		return errors.New("refusing to store an empty access token")
	}
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultTTL
	}

	tok := oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	data, err := json.Marshal(&tok)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := s.backend.Write(ctx, state.KeyCredential, data); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	s.logger.WithField("expiry", tok.Expiry.Format(time.RFC3339)).Info("credential stored")
	return nil
}

// Invalidate forgets the token and its expiry. It is safe to call any
// number of times.
func (s *Store) Invalidate(ctx context.Context) {
	if err := s.backend.Clear(ctx, state.KeyCredential); err != nil {
		s.logger.WithError(err).Error("failed to clear credential")
		return
	}
	s.logger.Info("credential invalidated")
}

func (s *Store) load(ctx context.Context) (*oauth2.Token, error) {
	data, err := s.backend.Read(ctx, state.KeyCredential)
	if errors.Is(err, state.ErrNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		s.logger.WithError(err).Warn("failed to read credential, treating as absent")
		return nil, ErrNoCredential
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		s.logger.WithError(err).Warn("stored credential is corrupt, treating as absent")
		return nil, ErrNoCredential
	}
	if tok.AccessToken == "" {
		return nil, ErrNoCredential
	}
	return &tok, nil
}
