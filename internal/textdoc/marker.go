package textdoc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PageMarker returns the literal marker for a 1-based page number. The
// marker always appears at the start of that page's content block,
// surrounded by blank lines.
func PageMarker(n int) string {
	return fmt.Sprintf("[BEGIN PDF Page %d]", n)
}

var markerRe = regexp.MustCompile(`\[BEGIN PDF Page (\d+)\]`)

// MarkerCount returns the number of page markers in a body.
func MarkerCount(body string) int {
	return len(markerRe.FindAllString(body, -1))
}

// HasPageOne reports whether the page-1 marker is present. Its absence is
// a severe structural defect: citation tooling anchors on page 1.
func HasPageOne(body string) bool {
	return strings.Contains(body, PageMarker(1))
}

// BuildBody assembles a page-marked body from per-page text, one marker
// per page in order, blank-line surrounded.
func BuildBody(pages []string) string {
	var b strings.Builder
	for i, text := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(PageMarker(i + 1))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(text, "\n"))
	}
	return b.String()
}

// Page is one marker-delimited block of a body.
type Page struct {
	Num     int
	Marker  string
	Content string // text between this marker and the next (or body end)
}

// SplitPages splits a body at its page markers. Any text before the
// first marker is discarded, so callers splicing pages back with
// JoinPages must hand in bodies that start at the page-1 marker. A body
// without markers yields nil.
func SplitPages(body string) []Page {
	locs := markerRe.FindAllStringSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return nil
	}
	pages := make([]Page, 0, len(locs))
	for i, loc := range locs {
		num, _ := strconv.Atoi(body[loc[2]:loc[3]])
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		pages = append(pages, Page{
			Num:     num,
			Marker:  body[loc[0]:loc[1]],
			Content: body[loc[1]:end],
		})
	}
	return pages
}

// JoinPages reassembles a body from pages produced by SplitPages. When no
// page content was modified the result is byte-identical to the input
// body from the first marker onward.
func JoinPages(pages []Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Marker)
		b.WriteString(p.Content)
	}
	return b.String()
}
