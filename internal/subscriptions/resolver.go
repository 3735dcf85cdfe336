// Package subscriptions resolves the list of channels the user follows,
// caching it in the persisted state between runs.
package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/state"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// PageSize is the number of subscriptions requested. Only the first page is
// ever read.
const PageSize int64 = 25

// Lister is the part of the YouTube client the resolver needs.
type Lister interface {
	ListMySubscriptions(ctx context.Context, maxResults int64) ([]youtube.Subscription, error)
}

type snapshot struct {
	Subscriptions []youtube.Subscription `json:"subscriptions"`
	FetchedAt     time.Time              `json:"fetched_at"`
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithLogger(logger log.FieldLogger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMaxAge makes snapshots older than d count as missing. Zero keeps them
// forever.
func WithMaxAge(d time.Duration) Option {
	return func(r *Resolver) { r.maxAge = d }
}

// Resolver returns the cached subscription snapshot, or fetches and caches
// a fresh one.
type Resolver struct {
	lister Lister
	store  state.Store
	now    func() time.Time
	maxAge time.Duration
	logger log.FieldLogger
}

func NewResolver(lister Lister, store state.Store, opts ...Option) *Resolver {
	r := &Resolver{
		lister: lister,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Component(r.logger, "subscriptions")
	return r
}

// Resolve returns the user's subscriptions. A cached snapshot is returned
// as-is unless forceRefresh is set. Upstream errors are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, forceRefresh bool) ([]youtube.Subscription, error) {
	if !forceRefresh {
		if subs, ok := r.cached(ctx); ok {
			r.logger.WithField("count", len(subs)).Debug("using cached subscriptions")
			return subs, nil
		}
	}

	subs, err := r.lister.ListMySubscriptions(ctx, PageSize)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []youtube.Subscription{}
	}

	data, err := json.Marshal(snapshot{Subscriptions: subs, FetchedAt: r.now()})
	if err == nil {
		err = r.store.Write(ctx, state.KeySubscriptions, data)
	}
	if err != nil {
		r.logger.WithError(err).Warn("failed to cache subscriptions")
	}

	r.logger.WithField("count", len(subs)).Info("subscriptions fetched")
	return subs, nil
}

// Bust drops the cached snapshot.
func (r *Resolver) Bust(ctx context.Context) error {
	if err := r.store.Clear(ctx, state.KeySubscriptions); err != nil {
		return fmt.Errorf("failed to clear subscription cache: %w", err)
	}
	return nil
}

// CachedAt reports when the current snapshot was fetched.
func (r *Resolver) CachedAt(ctx context.Context) (time.Time, bool) {
	snap, ok := r.load(ctx)
	if !ok {
		return time.Time{}, false
	}
	return snap.FetchedAt, true
}

func (r *Resolver) cached(ctx context.Context) ([]youtube.Subscription, bool) {
	snap, ok := r.load(ctx)
	if !ok {
		return nil, false
	}
	if r.maxAge > 0 && r.now().Sub(snap.FetchedAt) > r.maxAge {
		r.logger.WithField("fetched_at", snap.FetchedAt.Format(time.RFC3339)).Debug("subscription cache is stale")
		return nil, false
	}
	return snap.Subscriptions, true
}

func (r *Resolver) load(ctx context.Context) (*snapshot, bool) {
	data, err := r.store.Read(ctx, state.KeySubscriptions)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			r.logger.WithError(err).Warn("failed to read subscription cache")
		}
		return nil, false
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Subscriptions == nil {
		r.logger.Warn("subscription cache is corrupt, refetching")
		return nil, false
	}
	return &snap, true
}
