package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/pipeline"
)

// Clean runs OCR over renamed PDFs and compresses the results. A scan
// that OCR cannot handle is copied through verbatim so the document
// still reaches the later stages.
type Clean struct{}

func (s *Clean) Name() string           { return "clean" }
func (s *Clean) Dependencies() []string { return []string{"rename"} }
func (s *Clean) Description() string {
	return "OCR and compress PDFs into " + layout.CleanDir
}

func (s *Clean) Preflight(env *pipeline.Env) error {
	return lookTools("ocrmypdf", "gs", "pdftotext")
}

func (s *Clean) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	candidates, err := env.Root.ListCandidates(layout.RenamedDir, layout.SuffixRenamed, ".pdf")
	if err != nil {
		return executor.Summary{Stage: s.Name()}, err
	}

	tasks := make([]executor.Task, 0, len(candidates))
	for _, path := range candidates {
		base := layout.BaseName(filepath.Base(path))
		out := filepath.Join(env.Root.Dir(layout.CleanDir),
			layout.StageFile(base, layout.SuffixClean, ".pdf"))
		tasks = append(tasks, executor.Task{Input: path, Output: out})
	}

	worker := func(ctx context.Context, task executor.Task) executor.Result {
		return s.cleanOne(ctx, env, task)
	}

	return executor.Run(ctx, tasks, worker, executor.Options{
		Stage:      s.Name(),
		Workers:    env.CPUWorkers(),
		LargeBytes: env.Cfg.LargeFileBytes(),
		Force:      env.Force,
		Logger:     env.Logger,
	}), nil
}

func (s *Clean) cleanOne(ctx context.Context, env *pipeline.Env, task executor.Task) executor.Result {
	tmp := strings.TrimSuffix(task.Output, ".pdf") + "_temp.pdf"
	defer os.Remove(tmp)

	if err := env.OCR.Run(ctx, task.Input, tmp); err != nil {
		if ctx.Err() != nil {
			return executor.Failed(task.Input, err)
		}
		if cerr := copyFile(task.Input, task.Output); cerr != nil {
			return executor.Failed(task.Input, cerr)
		}
		return executor.Result{
			File:     task.Input,
			Status:   executor.StatusPartial,
			Message:  fmt.Sprintf("copied without OCR: %v", err),
			Metadata: map[string]string{"copied": "true"},
		}
	}

	// Page-one character count gates the OCR output. A near-empty first
	// page means the text layer is garbage and the original is the
	// better artifact.
	pageOne, err := env.Poppler.PageText(ctx, tmp, 1)
	if err != nil || len(strings.TrimSpace(pageOne)) <= env.Cfg.Limits.MinOCRTextChars {
		if cerr := copyFile(task.Input, task.Output); cerr != nil {
			return executor.Failed(task.Input, cerr)
		}
		return executor.Result{
			File:     task.Input,
			Status:   executor.StatusPartial,
			Message:  "copied: OCR output below text threshold",
			Metadata: map[string]string{"copied": "true"},
		}
	}

	if err := os.Rename(tmp, task.Output); err != nil {
		return executor.Failed(task.Input, err)
	}

	meta := map[string]string{"copied": "false"}
	kept, err := env.Compressor.CompressInPlace(ctx, task.Output)
	if err != nil {
		meta["compressed"] = "false"
		return executor.Result{
			File:     task.Input,
			Status:   executor.StatusPartial,
			Message:  fmt.Sprintf("OCR ok, compression failed: %v", err),
			Metadata: meta,
		}
	}
	meta["compressed"] = fmt.Sprintf("%t", kept)
	return executor.OKWith(task.Input, meta)
}
