package textdoc

import (
	"fmt"
	"strings"
	"testing"
)

func sampleBody(pages int) string {
	texts := make([]string, pages)
	for i := range texts {
		texts[i] = fmt.Sprintf("Text of page %d.\nSecond line.", i+1)
	}
	return BuildBody(texts)
}

func TestRenderParseRoundTrip(t *testing.T) {
	doc := &Document{
		Header: Header{
			Number:    "42",
			Name:      "20230115_Order_Granting",
			PDFName:   "20230115_Order_Granting_o.pdf",
			Directory: "docs/SmithVJones",
			PublicURL: "https://storage.cloud.google.com/bucket/docs/SmithVJones/20230115_Order_Granting_o.pdf",
			Pages:     3,
		},
		Body: sampleBody(3),
	}

	parsed, err := Parse(doc.Render())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Header != doc.Header {
		t.Errorf("header round trip\n got %+v\nwant %+v", parsed.Header, doc.Header)
	}
	if parsed.Body != doc.Body {
		t.Errorf("body round trip\n got %q\nwant %q", parsed.Body, doc.Body)
	}
}

func TestRenderEmptyFieldsShowTBD(t *testing.T) {
	doc := &Document{
		Header: Header{Name: "Motion_Draft", PDFName: "Motion_Draft_o.pdf", Pages: 1},
		Body:   sampleBody(1),
	}
	text := doc.Render()
	if !strings.Contains(text, LabelNumber+" TBD") {
		t.Errorf("missing number should render as TBD:\n%s", text)
	}
	if !strings.Contains(text, LabelPublicURL+" TBD") {
		t.Errorf("missing link should render as TBD:\n%s", text)
	}
}

func TestParseRejectsUnfencedText(t *testing.T) {
	if _, err := Parse("just some text without fences"); err == nil {
		t.Error("Parse() accepted text without fences")
	}
}

func TestPatchHeaderFields(t *testing.T) {
	doc := &Document{
		Header: Header{Name: "X", PDFName: "X_o.pdf", Directory: "local", Pages: 1},
		Body:   sampleBody(1),
	}
	original := doc.Render()

	patched, changed := PatchHeaderFields(original, "docs/Case", "https://example.com/X_o.pdf")
	if !changed {
		t.Fatal("PatchHeaderFields() reported no change")
	}
	got, err := Parse(patched)
	if err != nil {
		t.Fatalf("Parse(patched) error = %v", err)
	}
	if got.Header.Directory != "docs/Case" {
		t.Errorf("Directory = %q, want docs/Case", got.Header.Directory)
	}
	if got.Header.PublicURL != "https://example.com/X_o.pdf" {
		t.Errorf("PublicURL = %q", got.Header.PublicURL)
	}
	if got.Body != doc.Body {
		t.Errorf("patch touched the body")
	}

	if _, changed := PatchHeaderFields("no header lines here", "d", "u"); changed {
		t.Error("PatchHeaderFields() claimed to patch text without header lines")
	}
}

func TestSplitChunksLossless(t *testing.T) {
	for _, pages := range []int{1, 2, 5, 80, 81, 163} {
		body := sampleBody(pages)
		for _, threshold := range []int{1, 2, 5, 80, 200} {
			chunks := SplitChunks(body, threshold)
			if got := strings.Join(chunks, ""); got != body {
				t.Fatalf("pages=%d T=%d: concatenated chunks differ from body", pages, threshold)
			}
			want := (pages + threshold - 1) / threshold
			if pages <= threshold {
				want = 1
			}
			if len(chunks) != want {
				t.Errorf("pages=%d T=%d: %d chunks, want %d", pages, threshold, len(chunks), want)
			}
		}
	}
}

func TestSplitChunksSingleChunkAtOrAboveCount(t *testing.T) {
	body := sampleBody(80)
	if chunks := SplitChunks(body, 80); len(chunks) != 1 || chunks[0] != body {
		t.Errorf("T == pagecount should give one whole-body chunk, got %d", len(chunks))
	}
}

func TestSplitChunksBoundariesAtMarkers(t *testing.T) {
	body := sampleBody(7)
	chunks := SplitChunks(body, 3)
	for i, chunk := range chunks[1:] {
		if !strings.HasPrefix(chunk, "[BEGIN PDF Page ") {
			t.Errorf("chunk %d does not start at a marker: %q", i+2, chunk[:20])
		}
	}
}

func TestMarkerHelpers(t *testing.T) {
	body := sampleBody(3)
	if got := MarkerCount(body); got != 3 {
		t.Errorf("MarkerCount = %d, want 3", got)
	}
	if !HasPageOne(body) {
		t.Error("HasPageOne = false for a page-1-marked body")
	}
	if HasPageOne(strings.Replace(body, PageMarker(1), "", 1)) {
		t.Error("HasPageOne = true after removing the marker")
	}
}

func TestSplitJoinPagesLossless(t *testing.T) {
	body := sampleBody(5)
	pages := SplitPages(body)
	if len(pages) != 5 {
		t.Fatalf("SplitPages returned %d pages, want 5", len(pages))
	}
	for i, p := range pages {
		if p.Num != i+1 {
			t.Errorf("page %d numbered %d", i+1, p.Num)
		}
	}
	if got := JoinPages(pages); got != body {
		t.Errorf("JoinPages differs from input body")
	}
}

func TestSplitPagesNoMarkers(t *testing.T) {
	if pages := SplitPages("plain text, no markers"); pages != nil {
		t.Errorf("SplitPages = %v, want nil", pages)
	}
}

func TestSplitPagesDiscardsPreamble(t *testing.T) {
	body := sampleBody(3)
	withPreamble := "stray header text\n\n" + body

	pages := SplitPages(withPreamble)
	if len(pages) != 3 {
		t.Fatalf("SplitPages returned %d pages, want 3", len(pages))
	}
	if got := JoinPages(pages); got != body {
		t.Errorf("JoinPages should reproduce the body from the first marker onward")
	}
}
