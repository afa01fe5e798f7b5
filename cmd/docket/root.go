package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/version"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "docket",
	Short: "Staged ingestion pipeline for scanned legal documents",
	Long: `Docket pushes a folder of scanned legal PDFs through a sequence of
idempotent stages, producing citation-ready transcripts with public
links back to the source PDFs.

The stages:
  collect     move loose PDFs into the staging layout
  rename      derive dated, canonical file names
  clean       OCR and compress the PDFs
  convert     extract page-marked text
  textimport  wrap loose text files as artifacts
  format      AI-correct the extracted text
  upload      push PDFs to object storage
  verify      compare transcripts against their PDFs

Re-running is safe: each stage skips documents whose output already
exists, so a second run only picks up new or previously failed files.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docket/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, or error",
	)

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
