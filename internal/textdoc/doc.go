// Package textdoc defines the text artifact format shared by the extract,
// format, upload, verify, and repair stages: a labeled header block, a
// fenced page-marked body, and a closing fence. The literal header labels
// and fence text are load-bearing; downstream stages locate content by
// searching for these exact strings.
package textdoc

import (
	"fmt"
	"strings"
)

// Fence separates the header block from the body and closes the document.
var Fence = strings.Repeat("=", 69)

// Literal framing text. Byte-exact; never reformat.
const (
	headerTitle = " DOCUMENT INFORMATION "
	beginMarker = "BEGINNING OF PROCESSED DOCUMENT"
	endMarker   = "END OF PROCESSED DOCUMENT"

	// Header field labels.
	LabelNumber    = "DOCUMENT NUMBER:"
	LabelName      = "DOCUMENT NAME:"
	LabelPDFName   = "ORIGINAL PDF NAME:"
	LabelDirectory = "PDF DIRECTORY:"
	LabelPublicURL = "PDF PUBLIC LINK:"
	LabelPages     = "TOTAL PAGES:"
)

// Header carries the labeled fields of a text artifact.
type Header struct {
	Number    string
	Name      string
	PDFName   string
	Directory string
	PublicURL string
	Pages     int
}

// Document is a parsed text artifact. Body holds the page-marked content
// between the fences, trimmed of surrounding blank lines.
type Document struct {
	Header Header
	Body   string
}

// Render serializes the document back into the artifact format.
func (d *Document) Render() string {
	var b strings.Builder
	b.WriteString(headerTitle + "\n\n")
	fmt.Fprintf(&b, "%s %s\n", LabelNumber, orTBD(d.Header.Number))
	fmt.Fprintf(&b, "%s %s\n", LabelName, d.Header.Name)
	fmt.Fprintf(&b, "%s %s\n", LabelPDFName, d.Header.PDFName)
	fmt.Fprintf(&b, "%s %s\n", LabelDirectory, d.Header.Directory)
	fmt.Fprintf(&b, "%s %s\n", LabelPublicURL, orTBD(d.Header.PublicURL))
	fmt.Fprintf(&b, "%s %d\n", LabelPages, d.Header.Pages)
	b.WriteString("\n" + Fence + "\n")
	b.WriteString(beginMarker + "\n")
	b.WriteString(Fence + "\n\n")
	b.WriteString(strings.TrimSpace(d.Body))
	b.WriteString("\n\n" + Fence + "\n")
	b.WriteString(endMarker + "\n")
	b.WriteString(Fence + "\n")
	return b.String()
}

// Parse splits an artifact into header fields and body. It fails when the
// begin or end fences are missing, which means the file was not produced
// by the extract stage.
func Parse(text string) (*Document, error) {
	beginAt := strings.Index(text, beginMarker)
	endAt := strings.Index(text, Fence+"\n"+endMarker)
	if beginAt < 0 || endAt < 0 || endAt < beginAt {
		return nil, fmt.Errorf("artifact fences not found")
	}

	// Body starts after the fence line that follows the begin marker.
	bodyStart := strings.Index(text[beginAt:], "\n")
	if bodyStart < 0 {
		return nil, fmt.Errorf("malformed begin fence")
	}
	bodyStart += beginAt + 1
	if next := strings.Index(text[bodyStart:], "\n"); next >= 0 {
		bodyStart += next + 1
	}

	doc := &Document{
		Body: strings.TrimSpace(text[bodyStart:endAt]),
	}

	for _, line := range strings.Split(text[:beginAt], "\n") {
		switch {
		case strings.HasPrefix(line, LabelNumber):
			doc.Header.Number = strings.TrimSpace(strings.TrimPrefix(line, LabelNumber))
		case strings.HasPrefix(line, LabelName):
			doc.Header.Name = strings.TrimSpace(strings.TrimPrefix(line, LabelName))
		case strings.HasPrefix(line, LabelPDFName):
			doc.Header.PDFName = strings.TrimSpace(strings.TrimPrefix(line, LabelPDFName))
		case strings.HasPrefix(line, LabelDirectory):
			doc.Header.Directory = strings.TrimSpace(strings.TrimPrefix(line, LabelDirectory))
		case strings.HasPrefix(line, LabelPublicURL):
			doc.Header.PublicURL = strings.TrimSpace(strings.TrimPrefix(line, LabelPublicURL))
		case strings.HasPrefix(line, LabelPages):
			fmt.Sscanf(strings.TrimSpace(strings.TrimPrefix(line, LabelPages)), "%d", &doc.Header.Pages)
		}
	}

	return doc, nil
}

// PatchHeaderFields rewrites only the PDF DIRECTORY and PDF PUBLIC LINK
// lines of a rendered artifact, leaving every other byte untouched. Used
// by the upload stage and the header-only repair path.
func PatchHeaderFields(text, directory, publicURL string) (string, bool) {
	lines := strings.Split(text, "\n")
	patched := false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, LabelDirectory):
			lines[i] = LabelDirectory + " " + directory
			patched = true
		case strings.HasPrefix(line, LabelPublicURL):
			lines[i] = LabelPublicURL + " " + publicURL
			patched = true
		}
	}
	if !patched {
		return text, false
	}
	return strings.Join(lines, "\n"), true
}

func orTBD(s string) string {
	if s == "" {
		return "TBD"
	}
	return s
}
