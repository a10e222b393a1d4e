package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"archivist/pkg/archiver"
	"archivist/pkg/logger"
	"archivist/pkg/ui"
	"archivist/pkg/ui/tui"
)

var (
	useTUI     bool
	notifyDone bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Archive new and updated posts once",
	Long: `Sync lists the creators of your account, compares their posts with the
database and fetches only what is new or updated. Each creator's posts are
written in one transaction, then their files are downloaded into
<output>/<creator>/<post>/.

A session cookie is required. It is read, in order, from:
  - the --session flag
  - FANBOXSESSID or PATREON_SESSION
  - the configuration file
  - sessions stored with 'archivist auth login'`,
	Example: `  # Archive every supported fanbox creator
  archivist sync

  # Patreon, only two creators, skipping free posts
  archivist sync --platform patreon --whitelist 123,456 --skip-free

  # Re-fetch everything into a postgres database
  archivist sync --force --db-driver postgres --db-dsn "postgres://localhost/archive?sslmode=disable"

  # Follow progress in the terminal UI
  archivist sync --tui`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	addRunFlags(syncCmd)
	syncCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
}

// addRunFlags registers the flags shared by sync and schedule
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("save", "", "creators to archive (all, following, supporting)")
	f.StringSlice("whitelist", nil, "only archive these creator ids")
	f.StringSlice("blacklist", nil, "never archive these creator ids")
	f.Bool("skip-free", false, "skip posts that need no plan")
	f.Bool("force", false, "re-fetch posts even when unchanged")
	f.Bool("overwrite", false, "replace files that already exist")
	f.IntP("limit", "l", 0, "concurrent fetches and downloads (default 5)")
	f.BoolVar(&notifyDone, "notify", false, "send a desktop notification when a run ends")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, !useTUI)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	if !useTUI && !quiet {
		ui.PrintInfo("Platform", cfg.Platform)
		ui.PrintInfo("Output", p.files.Root())
	}

	var tally *archiver.Tally
	if useTUI {
		tally, err = runWithTUI(ctx, p, log)
	} else {
		var progress archiver.Progress
		if !quiet {
			progress = ui.NewProgressDisplay(os.Stdout, cfg.Logging.Level == "debug")
		}
		tally, err = p.run(ctx, progress)
	}

	report(tally)
	if err != nil {
		return err
	}
	if tally != nil && tally.FailedCreators() == 0 && len(tally.Failures) == 0 {
		ui.PrintSuccess("Sync complete")
	}
	return nil
}

// runWithTUI runs the pipeline behind the terminal UI. Quitting the UI
// cancels the run.
func runWithTUI(ctx context.Context, p *pipeline, log logger.Logger) (*archiver.Tally, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(p.cfg.Platform)
	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
		cancel()
	}()

	tally, err := p.run(ctx, terminal)
	terminal.Finish(err)

	if tuiErr := <-tuiDone; tuiErr != nil {
		log.WithError(tuiErr).Error("TUI failed")
	}
	return tally, err
}

func report(tally *archiver.Tally) {
	if tally == nil {
		return
	}
	ui.PrintTally(os.Stdout, tally)
	if notifyDone {
		ui.NewNotifier().NotifyRun(tally)
	}
}
