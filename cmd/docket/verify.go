package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/internal/stages"
	"github.com/jackzampolin/docket/internal/verify"
)

var verifyAutoRepair bool

var verifyCmd = &cobra.Command{
	Use:   "verify <folder>",
	Short: "Verify formatted documents against their source PDFs",
	Long: `Compare every formatted transcript in a case folder against its
source PDF: page counts, page-1 marker, header fields, storage
reachability, and sampled content accuracy.

Writes a human-readable report, CSV and XLSX manifests, and a
structured issues file that "docket repair" consumes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
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

		report, err := stages.RunVerification(ctx, env)
		if err != nil {
			return err
		}
		fmt.Println(verify.RenderReport(report))

		if verifyAutoRepair {
			ok, warn, failed := report.Counts()
			if warn+failed == 0 {
				fmt.Printf("All %d documents verified clean; nothing to repair.\n", ok)
				return nil
			}
			return autoRepair(ctx, env)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyAutoRepair, "auto-repair", false,
		"repair flagged documents immediately after verification")
}
