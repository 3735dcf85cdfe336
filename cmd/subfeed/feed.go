package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gauthierbraillon/subfeed/internal/aggregator"
	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/display"
)

const feedTimeout = 2 * time.Minute

// errNeedAuth is returned when the credential became unusable during a run.
var errNeedAuth = errors.New("YouTube rejected or expired the stored token: run 'subfeed auth' to log in again")

// newFeedCmd creates the feed subcommand.
func newFeedCmd(v *viper.Viper) *cobra.Command {
	var (
		page    int
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show recent uploads from your subscriptions",
		Long: "Show uploads published in the last few days by the channels you subscribe to, newest first.\n" +
			"Subscriptions are cached between runs; pass --refresh to fetch them again.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be at least 1, got %d", page)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), feedTimeout)
			defer cancel()

			a, err := newApp(ctx, cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.creds.Check(ctx); err != nil {
				return err
			}

			pipeline := aggregator.NewPipeline(a.creds, a.resolver,
				aggregator.NewFetcher(a.client, a.logger),
				aggregator.WithConcurrency(a.cfg.Concurrency),
				aggregator.WithItemsPerChannel(a.cfg.ItemsPerChannel),
				aggregator.WithSubscriptionRefresh(refresh),
				aggregator.WithLogger(a.logger),
			)

			result, err := pipeline.Run(ctx, a.cfg.WindowDays)
			if err != nil {
				return err
			}
			if !a.creds.IsUsable(ctx) {
				return errNeedAuth
			}

			if n := len(result.Failures); n > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %d %s that could not be fetched (%s)\n",
					n, plural(n, "channel"), failedChannels(result.Failures))
			}

			formatter := display.NewTerminalFormatter()
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPage(aggregator.Paginate(result, page, a.cfg.PageSize)))
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page to show, starting at 1")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch subscriptions again instead of using the cache")
	cmd.Flags().Int("page-size", 50, "Uploads per page")
	cmd.Flags().Int("window-days", 7, "How many days back to look for uploads")
	bindFlag(v, config.KeyPageSize, cmd.Flags().Lookup("page-size"))
	bindFlag(v, config.KeyWindowDays, cmd.Flags().Lookup("window-days"))

	return cmd
}

// newSubscriptionsCmd creates the subscriptions subcommand.
func newSubscriptionsCmd(v *viper.Viper) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "List the channels you subscribe to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), feedTimeout)
			defer cancel()

			a, err := newApp(ctx, cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.creds.Check(ctx); err != nil {
				return err
			}

			subs, err := a.resolver.Resolve(ctx, refresh)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatSubscriptions(subs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch subscriptions again instead of using the cache")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: "Show the configuration after applying flags, SUBFEED_* environment variables,\n" +
			".env files and subfeed.yaml in the config directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config directory: %s\n", cfg.ConfigDir)
			fmt.Fprintf(out, "State backend: %s\n", cfg.StateBackend)
			fmt.Fprintf(out, "API base URL: %s\n", cfg.APIBaseURL)
			fmt.Fprintf(out, "API key: %s\n", mask(cfg.APIKey))
			fmt.Fprintf(out, "Client ID: %s\n", orUnset(cfg.ClientID))
			fmt.Fprintf(out, "Window: %d days\n", cfg.WindowDays)
			fmt.Fprintf(out, "Page size: %d\n", cfg.PageSize)
			fmt.Fprintf(out, "Uploads per channel: %d\n", cfg.ItemsPerChannel)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Subscription cache TTL: %s\n", ttlString(cfg.SubscriptionCacheTTL))
			return nil
		},
	}
}

func failedChannels(failures []*aggregator.ChannelError) string {
	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.ChannelID)
	}
	return strings.Join(ids, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func ttlString(d time.Duration) string {
	if d == 0 {
		return "never expires"
	}
	return d.String()
}
