package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/stages"
	"github.com/jackzampolin/docket/internal/watch"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <parent-folder>",
	Short: "Process case folders automatically as they appear",
	Long: `Watch a parent directory and run the full pipeline over any
subfolder that contains PDFs and no completion marker. Finished
folders get a ` + watch.MarkerFile + ` marker recording the outcome;
delete the marker to queue a folder again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		run := func(ctx context.Context, folder string) error {
			env, closeEnv, err := buildEnv(ctx, cfg, logger, folder, false)
			if err != nil {
				return err
			}
			defer closeEnv()

			registry := pipeline.NewRegistry()
			if err := stages.RegisterAll(registry); err != nil {
				return err
			}
			report, err := pipeline.NewRunner(registry).Run(ctx, env)
			if err != nil {
				return err
			}
			printRunReport(report)
			if report.Failed() {
				return errors.New("one or more stages reported errors")
			}
			return nil
		}

		err = watch.New(args[0], watchInterval, run, logger).Watch(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute,
		"poll interval between directory scans")
}
