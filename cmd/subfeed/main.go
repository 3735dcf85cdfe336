// Package main provides the subfeed CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/credential"
	"github.com/gauthierbraillon/subfeed/internal/logging"
	"github.com/gauthierbraillon/subfeed/internal/state"
	"github.com/gauthierbraillon/subfeed/internal/subscriptions"
	"github.com/gauthierbraillon/subfeed/internal/youtube"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags value, then the module version
// recorded by go install.
func resolveVersion(v string, info *debug.BuildInfo) string {
	if v != "dev" && v != "" {
		return v
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

func buildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// newRootCmd creates the root command for subfeed CLI.
func newRootCmd() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:           "subfeed",
		Short:         "Recent uploads from your YouTube subscriptions",
		Long:          "Subfeed lists the latest uploads of the channels you subscribe to on YouTube, newest first.",
		Version:       resolveVersion(version, buildInfo()),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.SetVersionTemplate("subfeed version {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.String("config-dir", "", "Configuration and state directory (default ~/.config/subfeed)")
	flags.String("state-backend", "", "Where to keep the credential and caches: file, sqlite, redis or memory")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	bindFlag(v, config.KeyConfigDir, flags.Lookup("config-dir"))
	bindFlag(v, config.KeyStateBackend, flags.Lookup("state-backend"))
	bindFlag(v, config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(v, config.KeyLogFormat, flags.Lookup("log-format"))

	rootCmd.AddCommand(newAuthCmd(v))
	rootCmd.AddCommand(newLogoutCmd(v))
	rootCmd.AddCommand(newStatusCmd(v))
	rootCmd.AddCommand(newFeedCmd(v))
	rootCmd.AddCommand(newSubscriptionsCmd(v))
	rootCmd.AddCommand(newConfigCmd(v))

	return rootCmd
}

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	state    state.Store
	creds    *credential.Store
	client   *youtube.Client
	resolver *subscriptions.Resolver
}

func newApp(ctx context.Context, cmd *cobra.Command, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	store, err := state.Open(ctx, cfg.StateOptions())
	if err != nil {
		return nil, err
	}

	creds := credential.NewStore(store, credential.WithLogger(logger))

	clientOpts := []youtube.ClientOption{
		youtube.WithBaseURL(cfg.APIBaseURL),
		youtube.WithAPIKey(cfg.APIKey),
		youtube.WithLogger(logger),
	}
	if cfg.RequestsPerSecond > 0 {
		clientOpts = append(clientOpts, youtube.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)))
	}
	client := youtube.NewClient(creds, clientOpts...)

	resolver := subscriptions.NewResolver(client, store,
		subscriptions.WithLogger(logger),
		subscriptions.WithMaxAge(cfg.SubscriptionCacheTTL),
	)

	logger.WithFields(log.Fields{
		"config_dir":    cfg.ConfigDir,
		"state_backend": cfg.StateBackend,
	}).Debug("configuration loaded")

	return &app{
		cfg:      cfg,
		logger:   logger,
		state:    store,
		creds:    creds,
		client:   client,
		resolver: resolver,
	}, nil
}

func (a *app) Close() {
	if err := a.state.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close state")
	}
}

// bindFlag lets a flag override the matching config key when set.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag for %s: %v", key, err))
	}
}
