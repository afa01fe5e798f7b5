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
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/repair"
	"github.com/jackzampolin/docket/internal/textdoc"
)

// Ops adapts the stage workers into the repair engine's operations. All
// operations address a single document by its canonical base name and
// force-rebuild their own artifact while leaving every other document
// untouched.
type Ops struct {
	env *pipeline.Env
}

// NewOps builds the repair operations over a prepared environment.
func NewOps(env *pipeline.Env) *Ops {
	return &Ops{env: env}
}

var _ repair.Operations = (*Ops)(nil)

func (o *Ops) renamedPath(base string) string {
	return filepath.Join(o.env.Root.Dir(layout.RenamedDir),
		layout.StageFile(base, layout.SuffixRenamed, ".pdf"))
}

func (o *Ops) cleanPath(base string) string {
	return filepath.Join(o.env.Root.Dir(layout.CleanDir),
		layout.StageFile(base, layout.SuffixClean, ".pdf"))
}

func (o *Ops) convertPath(base string) string {
	return filepath.Join(o.env.Root.Dir(layout.ConvertDir),
		layout.StageFile(base, layout.SuffixConverted, ".txt"))
}

func (o *Ops) formatPath(base string) string {
	return filepath.Join(o.env.Root.Dir(layout.FormatDir),
		layout.StageFile(base, layout.SuffixFormatted, ".txt"))
}

// retire moves a superseded artifact aside if it exists.
func (o *Ops) retire(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return o.env.Root.Retire(path)
}

// EnhancedOCR rebuilds the clean PDF with the aggressive profile, then
// re-extracts and re-formats.
func (o *Ops) EnhancedOCR(ctx context.Context, base string) error {
	src := o.renamedPath(base)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("renamed original for %s not found: %w", base, err)
	}
	out := o.cleanPath(base)
	if err := o.retire(out); err != nil {
		return err
	}

	tmp := strings.TrimSuffix(out, ".pdf") + "_temp.pdf"
	defer os.Remove(tmp)
	if err := o.env.OCR.RunEnhanced(ctx, src, tmp); err != nil {
		return fmt.Errorf("enhanced OCR: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return err
	}
	if _, err := o.env.Compressor.CompressInPlace(ctx, out); err != nil {
		o.env.Logger.Warn("compression failed after enhanced OCR", "file", base, "error", err)
	}
	return o.ReExtract(ctx, base)
}

// ReExtract rebuilds the extracted text artifact, then re-formats.
func (o *Ops) ReExtract(ctx context.Context, base string) error {
	pdf := o.cleanPath(base)
	if _, err := os.Stat(pdf); err != nil {
		return fmt.Errorf("clean PDF for %s not found: %w", base, err)
	}
	if err := o.retire(o.convertPath(base)); err != nil {
		return err
	}

	var convert Convert
	res := convert.convertOne(ctx, o.env, executor.Task{Input: pdf, Output: o.convertPath(base)})
	if res.Status == executor.StatusFailed {
		return fmt.Errorf("re-extract %s: %s", base, res.Message)
	}
	return o.ReFormat(ctx, base)
}

// ReFormat rebuilds the formatted artifact from the extracted text.
func (o *Ops) ReFormat(ctx context.Context, base string) error {
	src := o.convertPath(base)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("extracted text for %s not found: %w", base, err)
	}
	if err := o.retire(o.formatPath(base)); err != nil {
		return err
	}

	corrector, err := o.env.Providers.Corrector(o.env.Cfg.Provider.Correction)
	if err != nil {
		return err
	}
	var format Format
	res := format.formatOne(ctx, o.env, corrector, executor.Task{Input: src, Output: o.formatPath(base)})
	if res.Status == executor.StatusFailed {
		return fmt.Errorf("re-format %s: %s", base, res.Message)
	}
	return nil
}

// CorrectPages re-corrects only the named pages of the formatted
// artifact, splicing results back page by page. Untouched pages keep
// their exact bytes.
func (o *Ops) CorrectPages(ctx context.Context, base string, pages []int) error {
	path := o.formatPath(base)
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := textdoc.Parse(string(raw))
	if err != nil {
		return err
	}

	corrector, err := o.env.Providers.Corrector(o.env.Cfg.Provider.Correction)
	if err != nil {
		return err
	}

	split := textdoc.SplitPages(doc.Body)
	wanted := make(map[int]bool, len(pages))
	for _, p := range pages {
		wanted[p] = true
	}

	repaired := 0
	for i := range split {
		if !wanted[split[i].Num] {
			continue
		}
		content, err := o.correctPage(ctx, corrector, base, split[i])
		if err != nil {
			return fmt.Errorf("page %d: %w", split[i].Num, err)
		}
		if i+1 < len(split) {
			content += "\n\n"
		}
		split[i].Content = "\n\n" + content
		repaired++
	}
	if repaired == 0 {
		return fmt.Errorf("none of pages %v found in %s", pages, filepath.Base(path))
	}

	doc.Body = textdoc.JoinPages(split)
	return writeAtomic(path, doc.Render())
}

// correctPage sends one marker-delimited page through the corrector and
// returns the corrected content without its marker.
func (o *Ops) correctPage(ctx context.Context, corrector providers.Corrector, base string, page textdoc.Page) (string, error) {
	res, err := corrector.CorrectChunk(ctx, &providers.CorrectionRequest{
		Text:       page.Marker + page.Content,
		DocName:    base,
		ChunkIndex: 1,
		ChunkCount: 1,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.Text)
	if textdoc.MarkerCount(text) != 1 {
		return "", fmt.Errorf("correction changed the page marker")
	}
	if !strings.HasPrefix(text, page.Marker) {
		return "", fmt.Errorf("correction moved the page marker")
	}
	return strings.TrimSpace(strings.TrimPrefix(text, page.Marker)), nil
}

// ReUpload pushes the clean PDF back to storage and patches headers.
func (o *Ops) ReUpload(ctx context.Context, base string) error {
	if o.env.Cloud == nil {
		return fmt.Errorf("no storage bucket configured")
	}
	pdf := o.cleanPath(base)
	if _, err := os.Stat(pdf); err != nil {
		return fmt.Errorf("clean PDF for %s not found: %w", base, err)
	}
	name := filepath.Base(pdf)
	if err := o.env.Cloud.UploadFile(ctx, pdf, o.env.Root.Name(), name); err != nil {
		return err
	}
	return o.PatchHeaders(ctx, base)
}

// PatchHeaders rewrites the location header lines of both text artifacts.
func (o *Ops) PatchHeaders(ctx context.Context, base string) error {
	if o.env.Cloud == nil {
		return fmt.Errorf("no storage bucket configured")
	}
	var upload Upload
	upload.patchHeaders(o.env, layout.StageFile(base, layout.SuffixClean, ".pdf"))
	return nil
}
