package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// Gate reports whether upstream calls may be made right now.
type Gate interface {
	IsUsable(ctx context.Context) bool
}

// SubscriptionSource returns the channels to aggregate.
type SubscriptionSource interface {
	Resolve(ctx context.Context, forceRefresh bool) ([]youtube.Subscription, error)
}

type Option func(*Pipeline)

// WithConcurrency fetches up to n channels at once. n <= 1 keeps the
// fetches sequential.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithSubscriptionRefresh bypasses the subscription cache.
func WithSubscriptionRefresh(refresh bool) Option {
	return func(p *Pipeline) { p.refresh = refresh }
}

func WithItemsPerChannel(n int64) Option {
	return func(p *Pipeline) { p.itemsPerChannel = n }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithLogger(logger log.FieldLogger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// Pipeline turns the user's subscriptions into one merged, deduplicated,
// newest-first list of recent uploads.
type Pipeline struct {
	gate     Gate
	resolver SubscriptionSource
	fetcher  *Fetcher

	concurrency     int
	refresh         bool
	itemsPerChannel int64
	now             func() time.Time
	logger          log.FieldLogger
}

func NewPipeline(gate Gate, resolver SubscriptionSource, fetcher *Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:            gate,
		resolver:        resolver,
		fetcher:         fetcher,
		concurrency:     1,
		itemsPerChannel: DefaultItemsPerChannel,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.Component(p.logger, "pipeline")
	return p
}

// Run aggregates uploads published in the last windowDays days (7 when
// windowDays <= 0).
//
// An unusable credential, before the run, before any channel or after the
// last one, yields an empty Result and no error: the caller has to re-authenticate. Failures
// resolving subscriptions are returned. Failures on a single channel are
// recorded in Result.Failures and otherwise ignored.
func (p *Pipeline) Run(ctx context.Context, windowDays int) (Result, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	if !p.gate.IsUsable(ctx) {
		p.logger.Info("no usable credential, skipping run")
		return emptyResult(), nil
	}

	subs, err := p.resolver.Resolve(ctx, p.refresh)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return emptyResult(), nil
	}

	windowStart := p.now().Add(-time.Duration(windowDays) * 24 * time.Hour)
	entry := p.logger.WithFields(log.Fields{
		"channels":     len(subs),
		"window_start": windowStart.Format(time.RFC3339),
	})
	entry.Debug("aggregating uploads")

	var (
		items    []VideoItem
		failures []*ChannelError
		usable   bool
	)
	if p.concurrency > 1 {
		items, failures, usable, err = p.fetchConcurrent(ctx, subs, windowStart)
	} else {
		items, failures, usable, err = p.fetchSequential(ctx, subs, windowStart)
	}
	if err != nil {
		return Result{}, err
	}
	if !usable || !p.gate.IsUsable(ctx) {
		p.logger.Warn("credential became unusable during the run, discarding results")
		return emptyResult(), nil
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	entry.WithFields(log.Fields{"items": len(items), "failed_channels": len(failures)}).Info("feed aggregated")
	return Result{Items: items, TotalCount: len(items), Failures: failures}, nil
}

func (p *Pipeline) fetchSequential(ctx context.Context, subs []youtube.Subscription, windowStart time.Time) ([]VideoItem, []*ChannelError, bool, error) {
	seen := SeenSet{}
	items := []VideoItem{}
	var failures []*ChannelError

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return nil, nil, false, err
		}
		if !p.gate.IsUsable(ctx) {
			return nil, nil, false, nil
		}

		got, err := p.fetcher.FetchRecent(ctx, sub.ChannelID, p.itemsPerChannel, windowStart, seen)
		if cerr, ok := err.(*ChannelError); ok {
			failures = append(failures, cerr)
		}
		items = append(items, got...)
	}
	return items, failures, true, nil
}

// fetchConcurrent gives every channel a private seen set and merges in
// subscription order afterwards, so dedup matches the sequential path.
func (p *Pipeline) fetchConcurrent(ctx context.Context, subs []youtube.Subscription, windowStart time.Time) ([]VideoItem, []*ChannelError, bool, error) {
	perChannel := make([][]VideoItem, len(subs))
	errs := make([]*ChannelError, len(subs))
	var unusable atomic.Bool

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			if ctx.Err() != nil || unusable.Load() {
				return nil
			}
			if !p.gate.IsUsable(ctx) {
				unusable.Store(true)
				return nil
			}
			got, err := p.fetcher.FetchRecent(ctx, sub.ChannelID, p.itemsPerChannel, windowStart, SeenSet{})
			perChannel[i] = got
			if cerr, ok := err.(*ChannelError); ok {
				errs[i] = cerr
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}
	if unusable.Load() {
		return nil, nil, false, nil
	}

	seen := SeenSet{}
	items := []VideoItem{}
	var failures []*ChannelError
	for i := range subs {
		if errs[i] != nil {
			failures = append(failures, errs[i])
		}
		for _, it := range perChannel[i] {
			if seen.Add(it.ID) {
				items = append(items, it)
			}
		}
	}
	return items, failures, true, nil
}
