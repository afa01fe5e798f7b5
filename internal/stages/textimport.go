package stages

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/textdoc"
)

// TextImport wraps standalone text files dropped into the original stage
// directory in the artifact template, so born-digital transcripts join
// the pipeline at the converted stage without an OCR pass.
type TextImport struct{}

func (s *TextImport) Name() string           { return "textimport" }
func (s *TextImport) Dependencies() []string { return []string{"collect"} }
func (s *TextImport) Description() string {
	return "wrap loose text files into " + layout.ConvertDir + " artifacts"
}

func (s *TextImport) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	candidates, err := env.Root.ListCandidates(layout.OriginalDir, "", ".txt")
	if err != nil {
		return executor.Summary{Stage: s.Name()}, err
	}

	tasks := make([]executor.Task, 0, len(candidates))
	for _, path := range candidates {
		base := layout.BaseName(filepath.Base(path))
		out := filepath.Join(env.Root.Dir(layout.ConvertDir),
			layout.StageFile(base, layout.SuffixConverted, ".txt"))
		tasks = append(tasks, executor.Task{Input: path, Output: out})
	}

	worker := func(ctx context.Context, task executor.Task) executor.Result {
		raw, err := os.ReadFile(task.Input)
		if err != nil {
			return executor.Failed(task.Input, err)
		}
		body := strings.TrimSpace(string(raw))
		if !textdoc.HasPageOne(body) {
			body = textdoc.PageMarker(1) + "\n\n" + body
		}
		pages := textdoc.MarkerCount(body)

		doc := &textdoc.Document{
			Header: textdoc.Header{
				Name:      layout.BaseName(filepath.Base(task.Input)),
				PDFName:   filepath.Base(task.Input),
				Directory: env.Root.Name(),
				Pages:     pages,
			},
			Body: body,
		}
		if err := writeAtomic(task.Output, doc.Render()); err != nil {
			return executor.Failed(task.Input, err)
		}
		return executor.OKWith(task.Input, map[string]string{"pages": strconv.Itoa(pages)})
	}

	return executor.Run(ctx, tasks, worker, executor.Options{
		Stage:   s.Name(),
		Workers: env.IOWorkers(),
		Force:   env.Force,
		Logger:  env.Logger,
	}), nil
}
