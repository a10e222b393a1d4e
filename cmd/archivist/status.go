package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"archivist/pkg/logger"
	"archivist/pkg/runstate"
	"archivist/pkg/store"
	"archivist/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last run and what the database holds",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	state, err := runstate.NewManager(cfg.Platform, logger.NewNopLogger())
	if err != nil {
		return err
	}
	last, err := state.Load()
	if err != nil {
		return err
	}
	if last == nil {
		ui.PrintInfo("Last run", "none for "+cfg.Platform)
	} else {
		ui.PrintRunState(os.Stdout, last)
	}

	path, _, _ := strings.Cut(strings.TrimPrefix(cfg.DatabaseDSN(), "file:"), "?")
	if _, err := os.Stat(path); cfg.Storage.Driver == store.DriverSQLite && err != nil {
		ui.PrintInfo("Database", "not created yet")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := store.Open(ctx, store.Config{Driver: cfg.Storage.Driver, DSN: cfg.DatabaseDSN()})
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nDatabase %s\n", cfg.DatabaseDSN())
	fmt.Printf("  Creators: %d\n  Posts:    %d\n  Files:    %d\n  Tags:     %d\n",
		counts.Authors, counts.Posts, counts.Files, counts.Tags)
	return nil
}
