package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/repair"
	"github.com/jackzampolin/docket/internal/stages"
	"github.com/jackzampolin/docket/internal/verify"
)

const timeRound = 100 * time.Millisecond

var repairCmd = &cobra.Command{
	Use:   "repair <folder>",
	Short: "Repair documents flagged by the last verification run",
	Long: `Repair documents using the structured issues from the most recent
verification run. Each document gets the cheapest strategy its issues
allow, from patching two header lines up to a full re-OCR.

Run "docket verify" again afterwards to confirm the repairs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		env, closeEnv, err := buildEnv(ctx, cfg, logger, args[0], false)
		if err != nil {
			return err
		}
		defer closeEnv()

		return autoRepair(ctx, env)
	},
}

// autoRepair drives the repair engine off the latest issues file.
func autoRepair(ctx context.Context, env *pipeline.Env) error {
	issuesPath, err := verify.LatestIssuesPath(env.Root)
	if err != nil {
		return fmt.Errorf("no verification run found: %w", err)
	}
	report, err := verify.LoadReport(issuesPath)
	if err != nil {
		return err
	}

	engine := repair.NewEngine(stages.NewOps(env), env.Cfg.Repair, env.Logger)
	results := engine.RepairAll(ctx, report)
	if len(results) == 0 {
		fmt.Println("Nothing to repair.")
		return nil
	}

	for _, r := range results {
		switch {
		case r.Err != "":
			fmt.Printf("  %-50s %s FAILED: %s\n", r.File, r.Action, r.Err)
		case r.Fellback:
			fmt.Printf("  %-50s %s (fell back to full re-format)\n", r.File, r.Action)
		default:
			fmt.Printf("  %-50s %s\n", r.File, r.Action)
		}
	}
	fmt.Printf("\nRepaired %d documents. Run \"docket verify %s\" to confirm.\n",
		len(results), env.Root.Name())
	return nil
}
