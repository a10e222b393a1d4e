package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"archivist/pkg/logger"
	"archivist/pkg/ui"
)

var runImmediately bool

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Repeat sync on a cron schedule",
	Long: `Schedule keeps running and starts a sync whenever the cron expression
fires, until interrupted. A run that is still going when the next one is due
is not started twice.

Expressions take a seconds field ("0 30 3 * * *") or a descriptor such as
"@daily" or "@every 6h".`,
	Example: `  # Every six hours (the default)
  archivist schedule

  # Every night at 03:30, with a notification after each run
  archivist schedule --cron "0 30 3 * * *" --notify`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	addRunFlags(scheduleCmd)
	scheduleCmd.Flags().String("cron", "", "cron expression (default \"@every 6h\")")
	scheduleCmd.Flags().BoolVar(&runImmediately, "now", true, "run once before waiting for the schedule")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, true)
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

	job := &scheduledSync{ctx: ctx, pipeline: p, log: log}

	c := cron.New()
	if err := c.AddFunc(cfg.Schedule.Cron, job.Run); err != nil {
		return err
	}

	log.WithField("cron", cfg.Schedule.Cron).Info("Schedule started")
	ui.PrintInfo("Schedule", cfg.Schedule.Cron)

	if runImmediately {
		job.Run()
	}

	c.Start()
	<-ctx.Done()
	c.Stop()

	// wait for a run in progress to notice the cancellation
	job.mu.Lock()
	defer job.mu.Unlock()
	log.Info("Schedule stopped")
	return nil
}

// scheduledSync runs the pipeline from cron; overlapping firings are skipped
type scheduledSync struct {
	ctx      context.Context
	pipeline *pipeline
	log      logger.Logger
	mu       sync.Mutex
}

func (s *scheduledSync) Run() {
	if !s.mu.TryLock() {
		s.log.Warn("Previous run still in progress, skipping")
		return
	}
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	tally, err := s.pipeline.run(s.ctx, nil)
	report(tally)
	if err != nil {
		s.log.WithError(err).Error("Scheduled run failed")
	}
}
