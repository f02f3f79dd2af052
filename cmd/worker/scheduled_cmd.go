package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"isp-agent-service/internal/config"
	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/push"
	"isp-agent-service/internal/store"
)

type runOutput struct {
	Command    string           `json:"command"`
	DryRun     bool             `json:"dry_run"`
	DurationMS int64            `json:"duration_ms"`
	Result     push.ScheduleRun `json:"result"`
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScheduledCmd() *cobra.Command {
	var (
		dryRun bool
		every  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "Send scheduled push notifications that are due",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cfg.EffectiveLogLevel())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := store.Open(ctx, cfg.DatabaseURL, cfg.AutoCreateDB, cfg.MaintenanceDB)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()
			pg := store.NewPostgresStore(db)

			var sender push.Sender = push.DisabledSender{}
			if !dryRun {
				fcm, err := push.NewFCMSender(ctx, cfg.FirebaseCredentials, logger)
				if err != nil {
					return fmt.Errorf("push delivery unavailable: %w", err)
				}
				sender = fcm
			}
			sched := &push.Scheduler{Store: pg, Fanout: push.NewService(pg, sender, logger), Logger: logger}

			runOnce := func() error {
				start := time.Now()
				run, err := sched.ProcessDue(ctx, start.UTC(), dryRun)
				if err != nil {
					return err
				}
				return writeJSON(runOutput{
					Command:    "scheduled",
					DryRun:     dryRun,
					DurationMS: time.Since(start).Milliseconds(),
					Result:     run,
				})
			}

			if every <= 0 {
				return runOnce()
			}
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				if err := runOnce(); err != nil {
					logger.WithError(err).Error("scheduled run failed")
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List due notifications without sending them")
	cmd.Flags().DurationVar(&every, "every", 0, "Repeat at this interval until interrupted (0 runs once)")
	return cmd
}
