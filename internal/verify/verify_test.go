package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/gcs"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/textdoc"
)

type fakeInspector struct {
	pages map[int]string
}

func (f *fakeInspector) PageCount(_ context.Context, _ string) (int, error) {
	return len(f.pages), nil
}

func (f *fakeInspector) PageText(_ context.Context, _ string, page int) (string, error) {
	text, ok := f.pages[page]
	if !ok {
		return "", fmt.Errorf("no page %d", page)
	}
	return text, nil
}

func testRoot(t *testing.T) *layout.Root {
	t.Helper()
	root, err := layout.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := root.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	return root
}

func pageText(n int) string {
	return fmt.Sprintf("Page %d of the motion. ", n) +
		strings.Repeat("The deposition transcript establishes the relevant timeline of events. ", 4)
}

func writeFormatted(t *testing.T, root *layout.Root, base string, pages []string, tweak func(*textdoc.Document)) {
	t.Helper()
	doc := &textdoc.Document{
		Header: textdoc.Header{
			Name:    base,
			PDFName: layout.StageFile(base, layout.SuffixClean, ".pdf"),
			Pages:   len(pages),
		},
		Body: textdoc.BuildBody(pages),
	}
	if tweak != nil {
		tweak(doc)
	}
	name := layout.StageFile(base, layout.SuffixFormatted, ".txt")
	if err := os.WriteFile(filepath.Join(root.Dir(layout.FormatDir), name), []byte(doc.Render()), 0o644); err != nil {
		t.Fatal(err)
	}
	// Placeholder clean PDF; the fake inspector never reads it.
	pdfName := layout.StageFile(base, layout.SuffixClean, ".pdf")
	if err := os.WriteFile(filepath.Join(root.Dir(layout.CleanDir), pdfName), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testCfg() config.VerifyCfg {
	return config.VerifyCfg{PageTolerance: 2, MatchThreshold: 0.70, MinTextChars: 10}
}

func TestVerifyFileClean(t *testing.T) {
	root := testRoot(t)
	pages := []string{pageText(1), pageText(2)}
	writeFormatted(t, root, "20230115_Motion", pages, nil)

	inspector := &fakeInspector{pages: map[int]string{1: pages[0], 2: pages[1]}}
	v := NewVerifier(inspector, nil, testCfg(), nil)

	report := v.VerifyFile(context.Background(), root, "20230115_Motion_f.txt")
	if report.Status != StatusOK {
		t.Fatalf("status = %v, issues = %v", report.Status, report.Issues)
	}
	if report.MeanAccuracy != 1.0 {
		t.Errorf("accuracy = %v, want 1.0", report.MeanAccuracy)
	}
	if report.PagesScored != 2 {
		t.Errorf("pages scored = %d, want 2", report.PagesScored)
	}
}

func TestVerifyFileBadPage(t *testing.T) {
	root := testRoot(t)
	// Page 2 of the artifact bears no resemblance to the PDF.
	pages := []string{pageText(1), "garbled output with entirely unrelated tokens present"}
	writeFormatted(t, root, "20230201_Reply", pages, nil)

	inspector := &fakeInspector{pages: map[int]string{1: pageText(1), 2: pageText(2)}}
	v := NewVerifier(inspector, nil, testCfg(), nil)

	report := v.VerifyFile(context.Background(), root, "20230201_Reply_f.txt")

	var pageIssue *Issue
	for i := range report.Issues {
		if report.Issues[i].Category == CategoryLowAccuracy && report.Issues[i].Page == 2 {
			pageIssue = &report.Issues[i]
		}
	}
	if pageIssue == nil {
		t.Fatalf("no page-2 accuracy issue, got %v", report.Issues)
	}
	// A page sharing no words with the PDF scores 0, which is still a
	// valid below-threshold percentage.
	if pageIssue.Percent < 0 || pageIssue.Percent >= 70 {
		t.Errorf("issue percent = %v", pageIssue.Percent)
	}
	if report.Status != StatusWarning {
		t.Errorf("status = %v, want WARNING", report.Status)
	}
}

func TestVerifyFileMissingPageOneMarker(t *testing.T) {
	root := testRoot(t)
	pages := []string{pageText(1), pageText(2)}
	writeFormatted(t, root, "20230301_Order", pages, func(d *textdoc.Document) {
		d.Body = strings.Replace(d.Body, textdoc.PageMarker(1), "", 1)
	})

	inspector := &fakeInspector{pages: map[int]string{1: pageText(1), 2: pageText(2)}}
	v := NewVerifier(inspector, nil, testCfg(), nil)

	report := v.VerifyFile(context.Background(), root, "20230301_Order_f.txt")
	if report.Status != StatusWarning {
		t.Errorf("status = %v, want WARNING", report.Status)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Category == CategoryPageOneMarker {
			found = true
		}
	}
	if !found {
		t.Errorf("no page-one marker issue in %v", report.Issues)
	}
}

func TestVerifyFileHeaderMismatch(t *testing.T) {
	root := testRoot(t)
	pages := []string{pageText(1), pageText(2)}
	writeFormatted(t, root, "20230401_Notice", pages, func(d *textdoc.Document) {
		d.Header.Pages = 99
	})

	inspector := &fakeInspector{pages: map[int]string{1: pageText(1), 2: pageText(2)}}
	v := NewVerifier(inspector, nil, testCfg(), nil)

	report := v.VerifyFile(context.Background(), root, "20230401_Notice_f.txt")
	if report.Status != StatusWarning {
		t.Errorf("status = %v, want WARNING (issues %v)", report.Status, report.Issues)
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Category == CategoryHeaderMismatch {
			found = true
		}
	}
	if !found {
		t.Errorf("no header mismatch issue in %v", report.Issues)
	}
}

func TestVerifyFolder(t *testing.T) {
	root := testRoot(t)
	pagesA := []string{pageText(1), pageText(2)}
	writeFormatted(t, root, "20230115_Motion", pagesA, nil)

	inspector := &fakeInspector{pages: map[int]string{1: pagesA[0], 2: pagesA[1]}}
	v := NewVerifier(inspector, nil, testCfg(), nil)

	report, err := v.VerifyFolder(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(report.Files))
	}
	ok, _, _ := report.Counts()
	if ok != 1 {
		t.Errorf("ok count = %d", ok)
	}
}

type recordingInspector struct {
	fakeInspector
	calls []int
}

func (r *recordingInspector) PageText(ctx context.Context, path string, page int) (string, error) {
	r.calls = append(r.calls, page)
	return r.fakeInspector.PageText(ctx, path, page)
}

type fakeCloud struct {
	missing bool
}

func (f *fakeCloud) Exists(_ context.Context, _, _ string) (bool, error) {
	return !f.missing, nil
}

func (f *fakeCloud) PublicURL(folder, file string) string {
	return "https://storage.cloud.google.com/test-bucket/" + gcs.ObjectKey(folder, file)
}

func TestVerifyFileSamplesFirstAndLastPages(t *testing.T) {
	root := testRoot(t)
	pages := []string{pageText(1), pageText(2), pageText(3), pageText(4)}
	writeFormatted(t, root, "20230501_Brief", pages, nil)

	inspector := &recordingInspector{fakeInspector: fakeInspector{
		pages: map[int]string{1: pages[0], 2: pages[1], 3: pages[2], 4: pages[3]},
	}}
	v := NewVerifier(inspector, nil, testCfg(), nil)

	report := v.VerifyFile(context.Background(), root, "20230501_Brief_f.txt")
	if report.Status != StatusOK {
		t.Fatalf("status = %v, issues = %v", report.Status, report.Issues)
	}
	if report.PagesScored != 2 {
		t.Errorf("pages scored = %d, want 2", report.PagesScored)
	}
	if !reflect.DeepEqual(inspector.calls, []int{1, 4}) {
		t.Errorf("sampled pages = %v, want [1 4]", inspector.calls)
	}
}

func TestVerifyFileUnreadable(t *testing.T) {
	root := testRoot(t)
	v := NewVerifier(&fakeInspector{}, nil, testCfg(), nil)

	report := v.VerifyFile(context.Background(), root, "20230601_Missing_f.txt")
	if report.Status != StatusFailed {
		t.Errorf("status = %v, want FAILED", report.Status)
	}
	if len(report.Issues) != 1 || report.Issues[0].Category != CategoryUnreadable {
		t.Errorf("issues = %v, want one unreadable issue", report.Issues)
	}
}

func TestVerifyFileStaleDirectoryHeader(t *testing.T) {
	root := testRoot(t)
	pages := []string{pageText(1), pageText(2)}
	cloud := &fakeCloud{}
	inspector := &fakeInspector{pages: map[int]string{1: pages[0], 2: pages[1]}}
	v := NewVerifier(inspector, cloud, testCfg(), nil)

	writeFormatted(t, root, "20230701_Answer", pages, func(d *textdoc.Document) {
		d.Header.Directory = "docs/SomeOldFolderName"
		d.Header.PublicURL = cloud.PublicURL(root.Name(), "20230701_Answer_o.pdf")
	})
	report := v.VerifyFile(context.Background(), root, "20230701_Answer_f.txt")
	found := false
	for _, issue := range report.Issues {
		if issue.Category == CategoryHeaderMismatch && strings.Contains(issue.Detail, "locates document") {
			found = true
		}
	}
	if !found {
		t.Errorf("no stale location issue in %v", report.Issues)
	}

	writeFormatted(t, root, "20230702_Answer", pages, func(d *textdoc.Document) {
		d.Header.Directory = gcs.ObjectKey(root.Name(), "")
		d.Header.PublicURL = cloud.PublicURL(root.Name(), "20230702_Answer_o.pdf")
	})
	report = v.VerifyFile(context.Background(), root, "20230702_Answer_f.txt")
	if report.Status != StatusOK {
		t.Errorf("status = %v, issues = %v", report.Status, report.Issues)
	}
}
