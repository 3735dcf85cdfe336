package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gauthierbraillon/subfeed/internal/config"
	"github.com/gauthierbraillon/subfeed/internal/credential"
	"github.com/gauthierbraillon/subfeed/internal/display"
	"github.com/gauthierbraillon/subfeed/pkg/browser"
	"github.com/gauthierbraillon/subfeed/pkg/oauth"
)

const authTimeout = 5 * time.Minute

// newAuthCmd creates the auth subcommand.
func newAuthCmd(v *viper.Viper) *cobra.Command {
	var (
		token     string
		expiresIn int64
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in to YouTube",
		Long: "Log in to YouTube through the browser and store the resulting access token.\n" +
			"Tokens last about an hour and cannot be refreshed: run auth again once it expires.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
			defer cancel()

			a, err := newApp(ctx, cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			if token != "" {
				if err := a.creds.Save(ctx, token, expiresIn); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Access token stored.")
				return nil
			}

			if a.cfg.ClientID == "" {
				return fmt.Errorf("missing client ID: set SUBFEED_CLIENT_ID or client_id in %s.yaml", config.FileName)
			}

			callbackServer := oauth.NewCallbackServer(a.cfg.CallbackPort)
			if err := callbackServer.Listen(); err != nil {
				return err
			}

			flow := oauth.NewFlow(oauth.YouTubeOAuthConfig(a.cfg.ClientID, callbackServer.RedirectURL()))
			authURL, state := flow.GenerateAuthURL()

			fmt.Fprintln(cmd.OutOrStdout(), "Authenticating with YouTube...")
			if noBrowser || browser.Open(authURL) != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser:\n%s\n", authURL)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Opening browser for authorization...")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Waiting for authorization...")
			grant, err := callbackServer.WaitForCallback(ctx, state, authTimeout)
			if err != nil {
				var authErr *oauth.AuthError
				if errors.As(err, &authErr) {
					a.creds.Invalidate(ctx)
				}
				return fmt.Errorf("authorization failed: %w", err)
			}

			if err := a.creds.Save(ctx, grant.AccessToken, grant.ExpiresIn); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Successfully authenticated with YouTube!")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Store this access token instead of opening the browser")
	cmd.Flags().Int64Var(&expiresIn, "expires-in", credential.DefaultTTL, "Lifetime of --token in seconds")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening it")
	cmd.Flags().IntP("port", "p", 8080, "Port for OAuth callback server")
	bindFlag(v, config.KeyCallbackPort, cmd.Flags().Lookup("port"))

	return cmd
}

// newLogoutCmd creates the logout subcommand.
func newLogoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token and cached subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			a.creds.Invalidate(ctx)
			if err := a.resolver.Bust(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// newStatusCmd creates the status subcommand.
func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a usable token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, v)
			if err != nil {
				return err
			}
			defer a.Close()

			formatter := display.NewTerminalFormatter()
			out := cmd.OutOrStdout()

			switch err := a.creds.Check(ctx); {
			case err == nil:
				if exp, ok := a.creds.Expiry(ctx); ok {
					fmt.Fprintf(out, "Authenticated (%s)\n", formatter.FormatRemaining(exp))
				} else {
					fmt.Fprintln(out, "Authenticated (expiry unknown)")
				}
			case errors.Is(err, credential.ErrCredentialExpired):
				fmt.Fprintln(out, "Token expired: run 'subfeed auth' to log in again")
			default:
				fmt.Fprintln(out, "Not authenticated: run 'subfeed auth' to log in")
			}

			if at, ok := a.resolver.CachedAt(ctx); ok {
				fmt.Fprintf(out, "Subscriptions cached %s\n", formatter.FormatTimestamp(at))
			}
			return nil
		},
	}
}
