package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"archivist/pkg/config"
	"archivist/pkg/logger"
	"archivist/pkg/ui"
)

var (
	// Version information
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "Archive the creators you support on pixivFANBOX and Patreon",
	Long: `Archivist mirrors the posts of the creators you follow or support into a
local database and file tree.

Features:
  - pixivFANBOX and Patreon sources
  - Incremental sync: unchanged posts are never fetched twice
  - One transaction per creator, so a failed batch leaves nothing behind
  - Concurrent fetches and downloads with a shared limit
  - Retry with exponential backoff and optional request pacing
  - Sessions kept in the system keychain or an encrypted file
  - Scheduled runs with cron expressions`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if noColor {
			ui.NoColor = true
		}
		if !quiet && cmd.Name() != "help" && cmd.Name() != "version" && !tuiRequested(cmd) {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default is .archivist.yaml or "+config.DefaultPath()+")")
	pf.StringP("platform", "P", "", "platform to archive (fanbox, patreon)")
	pf.String("session", "", "session cookie (FANBOXSESSID or Patreon session_id)")
	pf.StringP("account", "a", "", "stored session account to use")
	pf.StringP("output", "o", "", "output directory")
	pf.String("db-driver", "", "database driver (sqlite, postgres)")
	pf.String("db-dsn", "", "database dsn (default <output>/archive.db)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "also write JSON logs to this file")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only print errors and the final summary")

	rootCmd.SetVersionTemplate(`Archivist {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var (
	stringFlags = []string{"platform", "session", "account", "output", "save", "db-driver", "db-dsn", "cron", "log-level", "log-file"}
	listFlags   = []string{"whitelist", "blacklist"}
	boolFlags   = []string{"skip-free", "force", "overwrite"}
)

// collectFlags returns the flags set explicitly on the command line, keyed
// the way config.MergeCommandLineFlags expects
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	for _, name := range stringFlags {
		if fs.Changed(name) {
			if v, err := fs.GetString(name); err == nil {
				flags[name] = v
			}
		}
	}
	for _, name := range listFlags {
		if fs.Changed(name) {
			if v, err := fs.GetStringSlice(name); err == nil {
				flags[name] = v
			}
		}
	}
	for _, name := range boolFlags {
		if fs.Changed(name) {
			if v, err := fs.GetBool(name); err == nil {
				flags[name] = v
			}
		}
	}
	if fs.Changed("limit") {
		if v, err := fs.GetInt("limit"); err == nil {
			flags["limit"] = v
		}
	}

	return flags
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return nil, err
	}
	if quiet {
		cfg.Logging.Level = "error"
	}
	if noColor {
		cfg.Logging.NoColor = true
	}
	return cfg, nil
}

// newLogger builds the run logger. Console output is dropped while the
// TUI owns the screen; the log file still receives everything.
func newLogger(cfg *config.Config, console bool) (logger.Logger, error) {
	var out io.Writer = os.Stderr
	if !console {
		out = io.Discard
	}
	return logger.NewWithWriter(&cfg.Logging, out)
}

func tuiRequested(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("tui")
	return err == nil && v
}
