// Package pipeline defines the stage abstraction, the ordered stage
// registry, and the runner that executes a full processing pass over a
// case folder.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/gcs"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/ocr"
	"github.com/jackzampolin/docket/internal/providers"
)

// Stage is the interface all pipeline stages implement. Stages are the
// core abstraction - each transforms one directory's artifacts into the
// next directory's.
type Stage interface {
	// Identity
	Name() string           // e.g., "clean", "format"
	Dependencies() []string // Stages that must complete first

	// Description is a one-line summary for CLI listings.
	Description() string

	// Run processes everything actionable in the case folder. Per-file
	// failures are reported in the summary, not returned; the error is
	// reserved for conditions that invalidate the whole stage.
	Run(ctx context.Context, env *Env) (executor.Summary, error)
}

// Preflighter is implemented by stages with external requirements - a
// tool on PATH, a configured provider, a bucket. The runner checks only
// the stages selected for a pass, so a collect-only run does not demand
// OCR tooling.
type Preflighter interface {
	Preflight(env *Env) error
}

// Env carries the shared dependencies stages draw on. Cloud is nil when
// no bucket is configured, which disables the upload stage and the
// cloud checks in verification.
type Env struct {
	Root       *layout.Root
	Cfg        *config.Config
	Logger     *slog.Logger
	Providers  *providers.Registry
	OCR        *ocr.OCREngine
	Compressor *ocr.Compressor
	Poppler    *ocr.Poppler
	Cloud      *gcs.Client

	// Force re-processes files whose outputs already exist.
	Force bool
}

// CPUWorkers resolves the CPU pool size.
func (e *Env) CPUWorkers() int {
	if e.Cfg.Workers.CPU > 0 {
		return e.Cfg.Workers.CPU
	}
	return defaultCPUWorkers()
}

// IOWorkers resolves the IO pool size.
func (e *Env) IOWorkers() int {
	if e.Cfg.Workers.IO > 0 {
		return e.Cfg.Workers.IO
	}
	return 5
}
