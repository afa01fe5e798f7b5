package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/textdoc"
)

// Convert extracts page text from OCR'd PDFs into text artifacts. Pages
// go through the vision extractor in small batches when the PDF is under
// the vision size limit; otherwise the embedded text layer is used.
type Convert struct{}

func (s *Convert) Name() string           { return "convert" }
func (s *Convert) Dependencies() []string { return []string{"clean"} }
func (s *Convert) Description() string {
	return "extract page text into " + layout.ConvertDir + " artifacts"
}

func (s *Convert) Preflight(env *pipeline.Env) error {
	return lookTools("pdfinfo", "pdftotext")
}

func (s *Convert) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	candidates, err := env.Root.ListCandidates(layout.CleanDir, layout.SuffixClean, ".pdf")
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
		return s.convertOne(ctx, env, task)
	}

	return executor.Run(ctx, tasks, worker, executor.Options{
		Stage:      s.Name(),
		Workers:    env.IOWorkers(),
		LargeBytes: env.Cfg.LargeFileBytes(),
		Force:      env.Force,
		Logger:     env.Logger,
	}), nil
}

func (s *Convert) convertOne(ctx context.Context, env *pipeline.Env, task executor.Task) executor.Result {
	base := layout.BaseName(filepath.Base(task.Input))

	pages, err := env.Poppler.PageCount(ctx, task.Input)
	if err != nil {
		return executor.Failed(task.Input, err)
	}
	if pages < 1 {
		return executor.Failed(task.Input, fmt.Errorf("%s reports no pages", filepath.Base(task.Input)))
	}

	pageTexts, visionErr := s.extractPages(ctx, env, task.Input, base, pages)
	usedVision := visionErr == nil && pageTexts != nil
	if !usedVision {
		pageTexts, err = s.localPages(ctx, env, task.Input, pages)
		if err != nil {
			return executor.Failed(task.Input, err)
		}
	}

	doc := &textdoc.Document{
		Header: textdoc.Header{
			Name:      base,
			PDFName:   filepath.Base(task.Input),
			Directory: env.Root.Name(),
			Pages:     pages,
		},
		Body: textdoc.BuildBody(pageTexts),
	}
	if err := writeAtomic(task.Output, doc.Render()); err != nil {
		return executor.Failed(task.Input, err)
	}

	meta := map[string]string{"pages": fmt.Sprintf("%d", pages)}
	if usedVision {
		meta["extractor"] = "vision"
		return executor.OKWith(task.Input, meta)
	}
	meta["extractor"] = "local"
	if visionErr != nil && !isVisionSkip(visionErr) {
		return executor.Result{
			File:     task.Input,
			Status:   executor.StatusPartial,
			Message:  fmt.Sprintf("vision extraction failed, local text used: %v", visionErr),
			Metadata: meta,
		}
	}
	return executor.OKWith(task.Input, meta)
}

// errVisionSkipped marks documents routed around the vision extractor on
// purpose rather than by failure.
type visionSkip struct{ reason string }

func (e *visionSkip) Error() string { return e.reason }

func isVisionSkip(err error) bool {
	_, ok := err.(*visionSkip)
	return ok
}

// extractPages runs the vision extractor over the PDF in page batches.
// Each batch is trimmed into a standalone PDF so the provider only ever
// sees the pages it is asked about.
func (s *Convert) extractPages(ctx context.Context, env *pipeline.Env, pdfPath, base string, pages int) ([]string, error) {
	extractor, err := env.Providers.VisionExtractor()
	if err != nil {
		return nil, &visionSkip{reason: "no vision extractor configured"}
	}
	info, err := os.Stat(pdfPath)
	if err != nil {
		return nil, err
	}
	if max := env.Cfg.VisionMaxBytes(); max > 0 && info.Size() > max {
		return nil, &visionSkip{reason: fmt.Sprintf("%d bytes exceeds vision limit", info.Size())}
	}

	batch := env.Cfg.Limits.VisionBatchPages
	if batch < 1 {
		batch = 5
	}

	out := make([]string, 0, pages)
	for start := 1; start <= pages; start += batch {
		end := start + batch - 1
		if end > pages {
			end = pages
		}
		texts, err := s.extractBatch(ctx, env, extractor, pdfPath, base, start, end)
		if err != nil {
			return nil, fmt.Errorf("pages %d-%d: %w", start, end, err)
		}
		out = append(out, texts...)
	}
	return out, nil
}

func (s *Convert) extractBatch(ctx context.Context, env *pipeline.Env, extractor providers.VisionExtractor, pdfPath, base string, start, end int) ([]string, error) {
	tmp := strings.TrimSuffix(pdfPath, ".pdf") + fmt.Sprintf("_temp_p%d.pdf", start)
	defer os.Remove(tmp)

	if err := api.TrimFile(pdfPath, tmp, []string{fmt.Sprintf("%d-%d", start, end)}, nil); err != nil {
		return nil, fmt.Errorf("trimming page range: %w", err)
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, err
	}

	res, err := extractor.ExtractPages(ctx, &providers.ExtractionRequest{
		PDF:       data,
		StartPage: start,
		PageCount: end - start + 1,
		DocName:   base,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Pages) != end-start+1 {
		return nil, fmt.Errorf("extractor returned %d pages, want %d", len(res.Pages), end-start+1)
	}
	return res.Pages, nil
}

// localPages reads the embedded text layer one page at a time. Missing
// pages become empty strings so markers stay aligned with the PDF.
func (s *Convert) localPages(ctx context.Context, env *pipeline.Env, pdfPath string, pages int) ([]string, error) {
	texts, err := env.Poppler.PageTexts(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	for len(texts) < pages {
		texts = append(texts, "")
	}
	return texts[:pages], nil
}

// writeAtomic writes content through a temp file so a crashed worker
// never leaves a half-written artifact that the skip check would trust.
func writeAtomic(path, content string) error {
	tmp := strings.TrimSuffix(path, filepath.Ext(path)) + "_temp" + filepath.Ext(path)
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
