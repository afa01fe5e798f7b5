package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/stages"
)

var (
	processStages     []string
	processForce      bool
	processAutoRepair bool
)

var processCmd = &cobra.Command{
	Use:   "process <folder>",
	Short: "Run the pipeline over a case folder",
	Long: `Run the pipeline stages over a case folder.

By default every stage runs in order. --stages selects a subset; the
selected stages still run in dependency order, pulling in anything
they depend on.

Examples:
  docket process ./SmithVJones
  docket process ./SmithVJones --stages clean,convert
  docket process ./SmithVJones --force --auto-repair`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		env, closeEnv, err := buildEnv(ctx, cfg, logger, args[0], processForce)
		if err != nil {
			return err
		}
		defer closeEnv()

		registry := pipeline.NewRegistry()
		if err := stages.RegisterAll(registry); err != nil {
			return err
		}

		report, err := pipeline.NewRunner(registry).Run(ctx, env, processStages...)
		if err != nil {
			return err
		}
		printRunReport(report)

		if processAutoRepair {
			if err := autoRepair(ctx, env); err != nil {
				logger.Error("auto-repair failed", "error", err)
			}
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringSliceVar(&processStages, "stages", nil,
		"comma-separated stage subset (default: all stages)")
	processCmd.Flags().BoolVar(&processForce, "force", false,
		"re-process files whose outputs already exist")
	processCmd.Flags().BoolVar(&processAutoRepair, "auto-repair", false,
		"repair documents flagged by verification, then prompt a re-verify")
}

func printRunReport(report *pipeline.RunReport) {
	fmt.Printf("\nRun over %s\n", report.Folder)
	for _, sr := range report.Stages {
		if sr.Err != "" {
			fmt.Printf("  %-12s ERROR: %s\n", sr.Stage, sr.Err)
			continue
		}
		fmt.Printf("  %-12s ok=%d partial=%d skipped=%d failed=%d (%s)\n",
			sr.Stage,
			sr.Summary.Count(executor.StatusOK),
			sr.Summary.Count(executor.StatusPartial),
			sr.Summary.Count(executor.StatusSkipped),
			sr.Summary.Count(executor.StatusFailed),
			sr.Duration.Round(timeRound),
		)
	}
}
