package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/textdoc"
)

// Format sends converted artifacts through the correction provider in
// page-bounded chunks and reassembles the corrected body. If any chunk
// fails, the whole document fails; committing a half-corrected document
// would reintroduce the mixed-quality text the stage exists to remove.
type Format struct{}

func (s *Format) Name() string           { return "format" }
func (s *Format) Dependencies() []string { return []string{"convert"} }
func (s *Format) Description() string {
	return "AI-correct text artifacts into " + layout.FormatDir
}

func (s *Format) Preflight(env *pipeline.Env) error {
	name := env.Cfg.Provider.Correction
	if !env.Providers.HasCorrector(name) {
		return fmt.Errorf("correction provider %q is not configured", name)
	}
	return nil
}

func (s *Format) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	candidates, err := env.Root.ListCandidates(layout.ConvertDir, layout.SuffixConverted, ".txt")
	if err != nil {
		return executor.Summary{Stage: s.Name()}, err
	}

	corrector, err := env.Providers.Corrector(env.Cfg.Provider.Correction)
	if err != nil {
		return executor.Summary{Stage: s.Name()}, err
	}

	tasks := make([]executor.Task, 0, len(candidates))
	for _, path := range candidates {
		base := layout.BaseName(filepath.Base(path))
		out := filepath.Join(env.Root.Dir(layout.FormatDir),
			layout.StageFile(base, layout.SuffixFormatted, ".txt"))
		tasks = append(tasks, executor.Task{Input: path, Output: out})
	}

	worker := func(ctx context.Context, task executor.Task) executor.Result {
		return s.formatOne(ctx, env, corrector, task)
	}

	return executor.Run(ctx, tasks, worker, executor.Options{
		Stage:   s.Name(),
		Workers: env.IOWorkers(),
		Force:   env.Force,
		Logger:  env.Logger,
	}), nil
}

func (s *Format) formatOne(ctx context.Context, env *pipeline.Env, corrector providers.Corrector, task executor.Task) executor.Result {
	raw, err := os.ReadFile(task.Input)
	if err != nil {
		return executor.Failed(task.Input, err)
	}
	doc, err := textdoc.Parse(string(raw))
	if err != nil {
		return executor.Failed(task.Input, err)
	}

	base := layout.BaseName(filepath.Base(task.Input))
	corrected, chunks, err := CorrectBody(ctx, corrector, doc.Body, base, env.Cfg.Limits.ChunkPages)
	if err != nil {
		return executor.Failed(task.Input, err)
	}

	out := &textdoc.Document{Header: doc.Header, Body: corrected}
	if err := writeAtomic(task.Output, out.Render()); err != nil {
		return executor.Failed(task.Input, err)
	}
	return executor.OKWith(task.Input, map[string]string{
		"chunks":   strconv.Itoa(chunks),
		"provider": corrector.Name(),
	})
}

// CorrectBody runs the chunked correction over one document body and
// returns the reassembled result plus the chunk count. The marker count
// must survive correction; a provider that drops or invents markers
// fails the document.
func CorrectBody(ctx context.Context, corrector providers.Corrector, body, docName string, chunkPages int) (string, int, error) {
	chunks := textdoc.SplitChunks(body, chunkPages)

	corrected := make([]string, len(chunks))
	for i, chunk := range chunks {
		res, err := corrector.CorrectChunk(ctx, &providers.CorrectionRequest{
			Text:       chunk,
			DocName:    docName,
			ChunkIndex: i + 1,
			ChunkCount: len(chunks),
		})
		if err != nil {
			return "", 0, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if got, want := textdoc.MarkerCount(res.Text), textdoc.MarkerCount(chunk); got != want {
			return "", 0, fmt.Errorf("chunk %d/%d: correction changed marker count %d -> %d",
				i+1, len(chunks), want, got)
		}
		corrected[i] = strings.TrimSpace(res.Text)
	}
	return strings.Join(corrected, "\n\n"), len(chunks), nil
}
