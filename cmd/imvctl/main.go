package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/imv/internal/config"
	"github.com/matheus3301/imv/internal/profile"
	"github.com/matheus3301/imv/internal/rpc"
)

var (
	profileFlag string
	jsonFlag    bool
	timeoutFlag time.Duration

	cfg         *config.Config
	profileName string
)

var rootCmd = &cobra.Command{
	Use:           "imvctl",
	Short:         "Query a running imvd",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadOrDefault(profile.ConfigPath())
		if err != nil {
			return err
		}
		profileName = profile.Resolve(profileFlag, cfg)
		return profile.ValidateName(profileName)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withClient dials the profile's daemon and runs fn with a request context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *rpc.Client) error) error {
	socketPath := profile.SocketPath(profileName)
	if _, err := os.Stat(socketPath); err != nil {
		return fmt.Errorf("no daemon for profile %q (start imvd --profile %s)", profileName, profileName)
	}
	c, err := rpc.Dial(socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for profile %q: %w", profileName, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()
	return fn(ctx, c)
}
