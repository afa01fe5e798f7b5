package stages

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/textdoc"
)

func testEnv(t *testing.T) (*pipeline.Env, *providers.MockProvider) {
	t.Helper()
	root, err := layout.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := root.EnsureExists(); err != nil {
		t.Fatal(err)
	}

	mock := providers.NewMockProvider()
	reg := providers.NewRegistry()
	reg.RegisterCorrector("mock", mock)
	reg.SetVisionExtractor(mock)
	reg.SetMetadataClient(mock)

	cfg := config.DefaultConfig()
	cfg.Provider.Correction = "mock"

	return &pipeline.Env{
		Root:      root,
		Cfg:       cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Providers: reg,
	}, mock
}

func pageBody(pages int) string {
	texts := make([]string, pages)
	for i := range texts {
		texts[i] = fmt.Sprintf("Content of page %d with several words in it.", i+1)
	}
	return textdoc.BuildBody(texts)
}

func writeArtifact(t *testing.T, env *pipeline.Env, dir, name string, pages int) string {
	t.Helper()
	doc := &textdoc.Document{
		Header: textdoc.Header{
			Name:    layout.BaseName(name),
			PDFName: layout.StageFile(layout.BaseName(name), layout.SuffixClean, ".pdf"),
			Pages:   pages,
		},
		Body: pageBody(pages),
	}
	path := filepath.Join(env.Root.Dir(dir), name)
	if err := os.WriteFile(path, []byte(doc.Render()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCollect(t *testing.T) {
	env, _ := testEnv(t)
	rootDir := env.Root.Path()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(rootDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("Motion.pdf", "motion bytes")
	write("Order_a.pdf", "order bytes") // legacy suffix must strip

	var collect Collect
	summary, err := collect.Run(context.Background(), env)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Count(executor.StatusOK) != 2 {
		t.Fatalf("ok=%d, want 2", summary.Count(executor.StatusOK))
	}

	origDir := env.Root.Dir(layout.OriginalDir)
	for _, want := range []string{"Motion_d.pdf", "Order_d.pdf"} {
		if _, err := os.Stat(filepath.Join(origDir, want)); err != nil {
			t.Errorf("missing collected file %s", want)
		}
	}

	t.Run("identical duplicate goes to the pen", func(t *testing.T) {
		write("Motion.pdf", "motion bytes")
		summary, err := collect.Run(context.Background(), env)
		if err != nil {
			t.Fatal(err)
		}
		if summary.Count(executor.StatusPartial) != 1 {
			t.Fatalf("partial=%d, want 1", summary.Count(executor.StatusPartial))
		}
		if _, err := os.Stat(filepath.Join(env.Root.DuplicateDir(), "Motion.pdf")); err != nil {
			t.Error("duplicate not in the pen")
		}
	})

	t.Run("same name different bytes forks the base", func(t *testing.T) {
		write("Motion.pdf", "different motion bytes")
		if _, err := collect.Run(context.Background(), env); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(filepath.Join(origDir, "Motion_2_d.pdf")); err != nil {
			t.Error("forked name Motion_2_d.pdf not found")
		}
	})
}

func TestTextImport(t *testing.T) {
	env, _ := testEnv(t)
	src := filepath.Join(env.Root.Dir(layout.OriginalDir), "Deposition_Transcript.txt")
	if err := os.WriteFile(src, []byte("Q. State your name.\nA. Jane Doe."), 0o644); err != nil {
		t.Fatal(err)
	}

	var ti TextImport
	summary, err := ti.Run(context.Background(), env)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Count(executor.StatusOK) != 1 {
		t.Fatalf("ok=%d, want 1", summary.Count(executor.StatusOK))
	}

	out := filepath.Join(env.Root.Dir(layout.ConvertDir), "Deposition_Transcript_c.txt")
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := textdoc.Parse(string(raw))
	if err != nil {
		t.Fatalf("artifact does not parse: %v", err)
	}
	if !textdoc.HasPageOne(doc.Body) {
		t.Error("page-1 marker not injected")
	}
	if doc.Header.Pages != 1 {
		t.Errorf("Pages = %d, want 1", doc.Header.Pages)
	}

	// A second run must skip.
	summary, err = ti.Run(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Count(executor.StatusSkipped) != 1 {
		t.Errorf("second run skipped=%d, want 1", summary.Count(executor.StatusSkipped))
	}
}

func TestFormatPreservesMarkers(t *testing.T) {
	tests := []struct {
		name       string
		pages      int
		wantChunks int
	}{
		{"single chunk", 3, 1},
		{"multi chunk", 163, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, mock := testEnv(t)
			writeArtifact(t, env, layout.ConvertDir, "20230101_Doc_c.txt", tt.pages)

			var format Format
			summary, err := format.Run(context.Background(), env)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if summary.Count(executor.StatusOK) != 1 {
				t.Fatalf("ok=%d, want 1: %+v", summary.Count(executor.StatusOK), summary.Results)
			}
			if len(mock.CorrectCalls) != tt.wantChunks {
				t.Errorf("correction calls = %d, want %d", len(mock.CorrectCalls), tt.wantChunks)
			}

			out := filepath.Join(env.Root.Dir(layout.FormatDir), "20230101_Doc_f.txt")
			raw, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			doc, err := textdoc.Parse(string(raw))
			if err != nil {
				t.Fatal(err)
			}
			if got := textdoc.MarkerCount(doc.Body); got != tt.pages {
				t.Errorf("marker count = %d, want %d", got, tt.pages)
			}
		})
	}
}

func TestFormatFailsWholeDocumentOnChunkError(t *testing.T) {
	env, mock := testEnv(t)
	writeArtifact(t, env, layout.ConvertDir, "20230101_Doc_c.txt", 163)

	mock.CorrectFunc = func(ctx context.Context, req *providers.CorrectionRequest) (*providers.CorrectionResult, error) {
		if req.ChunkIndex == 2 {
			return nil, fmt.Errorf("model overloaded")
		}
		return &providers.CorrectionResult{Text: req.Text}, nil
	}

	var format Format
	summary, err := format.Run(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Count(executor.StatusFailed) != 1 {
		t.Fatalf("failed=%d, want 1", summary.Count(executor.StatusFailed))
	}
	out := filepath.Join(env.Root.Dir(layout.FormatDir), "20230101_Doc_f.txt")
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("partial formatted artifact was committed")
	}
}

func TestCorrectBodyRejectsMarkerLoss(t *testing.T) {
	env, mock := testEnv(t)
	mock.CorrectFunc = func(ctx context.Context, req *providers.CorrectionRequest) (*providers.CorrectionResult, error) {
		return &providers.CorrectionResult{Text: "all markers gone"}, nil
	}
	corrector, err := env.Providers.Corrector("mock")
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = CorrectBody(context.Background(), corrector, pageBody(2), "doc", 80)
	if err == nil || !strings.Contains(err.Error(), "marker count") {
		t.Errorf("CorrectBody error = %v, want marker count complaint", err)
	}
}

func TestOpsCorrectPagesTouchesOnlyNamedPages(t *testing.T) {
	env, mock := testEnv(t)
	writeArtifact(t, env, layout.FormatDir, "20230101_Doc_f.txt", 3)

	mock.CorrectFunc = func(ctx context.Context, req *providers.CorrectionRequest) (*providers.CorrectionResult, error) {
		marker, content, _ := strings.Cut(req.Text, "\n")
		return &providers.CorrectionResult{
			Text: strings.TrimSpace(marker) + "\n\n" + strings.ToUpper(strings.TrimSpace(content)),
		}, nil
	}

	path := filepath.Join(env.Root.Dir(layout.FormatDir), "20230101_Doc_f.txt")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	beforeDoc, err := textdoc.Parse(string(before))
	if err != nil {
		t.Fatal(err)
	}
	beforePages := textdoc.SplitPages(beforeDoc.Body)

	ops := NewOps(env)
	if err := ops.CorrectPages(context.Background(), "20230101_Doc", []int{2}); err != nil {
		t.Fatalf("CorrectPages() error = %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	afterDoc, err := textdoc.Parse(string(after))
	if err != nil {
		t.Fatal(err)
	}
	afterPages := textdoc.SplitPages(afterDoc.Body)
	if len(afterPages) != 3 {
		t.Fatalf("page count changed to %d", len(afterPages))
	}

	if afterPages[0].Content != beforePages[0].Content {
		t.Error("page 1 was modified")
	}
	if afterPages[2].Content != beforePages[2].Content {
		t.Error("page 3 was modified")
	}
	if !strings.Contains(afterPages[1].Content, "CONTENT OF PAGE 2") {
		t.Errorf("page 2 not corrected: %q", afterPages[1].Content)
	}
}

func TestOpsCorrectPagesUnknownPage(t *testing.T) {
	env, _ := testEnv(t)
	writeArtifact(t, env, layout.FormatDir, "20230101_Doc_f.txt", 2)

	ops := NewOps(env)
	if err := ops.CorrectPages(context.Background(), "20230101_Doc", []int{9}); err == nil {
		t.Error("CorrectPages() accepted a page the document does not have")
	}
}

func TestOpsReFormatRetiresOldArtifact(t *testing.T) {
	env, _ := testEnv(t)
	writeArtifact(t, env, layout.ConvertDir, "20230101_Doc_c.txt", 2)
	writeArtifact(t, env, layout.FormatDir, "20230101_Doc_f.txt", 2)

	ops := NewOps(env)
	if err := ops.ReFormat(context.Background(), "20230101_Doc"); err != nil {
		t.Fatalf("ReFormat() error = %v", err)
	}

	retired := filepath.Join(env.Root.Dir(layout.FormatDir), "_old", "20230101_Doc_f.txt")
	if _, err := os.Stat(retired); err != nil {
		t.Error("old formatted artifact not retired")
	}
	fresh := filepath.Join(env.Root.Dir(layout.FormatDir), "20230101_Doc_f.txt")
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh formatted artifact missing")
	}
}

func TestOpsReFormatMissingSource(t *testing.T) {
	env, _ := testEnv(t)
	ops := NewOps(env)
	if err := ops.ReFormat(context.Background(), "nonexistent"); err == nil {
		t.Error("ReFormat() succeeded without an extracted artifact")
	}
}

func TestStagePreflights(t *testing.T) {
	env, _ := testEnv(t)

	if _, ok := interface{}(&Collect{}).(pipeline.Preflighter); ok {
		t.Error("collect declared external requirements")
	}
	if _, ok := interface{}(&TextImport{}).(pipeline.Preflighter); ok {
		t.Error("textimport declared external requirements")
	}

	if err := (&Format{}).Preflight(env); err != nil {
		t.Errorf("format preflight with configured corrector: %v", err)
	}
	env.Cfg.Provider.Correction = "unconfigured"
	if err := (&Format{}).Preflight(env); err == nil {
		t.Error("format preflight passed without a corrector")
	}

	if err := (&Upload{}).Preflight(env); err == nil {
		t.Error("upload preflight passed without a bucket")
	}
}
