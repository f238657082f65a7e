package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/imv/internal/store/fixture"
)

var demoCmd = &cobra.Command{
	Use:   "demo <path>",
	Short: "Write a chat.db-shaped database with sample conversations",
	Long: `Write a SQLite file with the chat.db schema and a few sample conversations.
Point imvd at it with --chat-db or IMV_CHAT_DB to try the viewer without
access to a real Messages database.`,
	Args: cobra.ExactArgs(1),
	// The demo database does not need a profile.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		force, _ := cmd.Flags().GetBool("force")
		version, _ := cmd.Flags().GetUint("schema")

		if _, err := os.Stat(path); err == nil {
			if !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", path)
			}
			for _, suffix := range []string{"", "-wal", "-shm"} {
				if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
		}

		f, err := fixture.CreateVersion(path, version)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		n, err := fixture.SeedDemo(f, time.Now())
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		fmt.Printf("Wrote %d messages to %s (schema v%d)\n", n, path, version)
		fmt.Printf("Run: IMV_CHAT_DB=%s imvd\n", path)
		return nil
	},
}

func init() {
	demoCmd.Flags().Bool("force", false, "replace an existing file")
	demoCmd.Flags().Uint("schema", fixture.VersionLatest, "schema version to create")
	rootCmd.AddCommand(demoCmd)
}
