// Package verify checks formatted artifacts against their source PDFs:
// page counts, markers, headers, cloud objects, and per-page text
// accuracy.
package verify

import (
	"regexp"
	"strings"
)

// sampleChars is how much normalized PDF text is used for the leading
// substring probe before falling back to word overlap.
const sampleChars = 200

// neutralMinChars is the normalized length below which a page carries
// too little text to judge, and scores a neutral pass instead.
const neutralMinChars = 50

// neutralConfidence is the accuracy assigned to near-empty pages.
const neutralConfidence = 0.5

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize lowercases text and collapses all whitespace runs to single
// spaces, so comparisons ignore layout differences.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(text), " "))
}

// PageScore is the accuracy verdict for one page.
type PageScore struct {
	Page     int     `json:"page"`
	Accuracy float64 `json:"accuracy"`
	Match    bool    `json:"match"`
	Neutral  bool    `json:"neutral,omitempty"`
}

// ScorePage compares a page's formatted text against the text extracted
// from the corresponding PDF page. pdfText is ground truth; pageText is
// the corrected output under test.
func ScorePage(page int, pdfText, pageText string, threshold float64) PageScore {
	pdfNorm := Normalize(pdfText)
	pageNorm := Normalize(pageText)

	// Blank or near-blank scan pages (separators, exhibit slip sheets)
	// give nothing to compare against.
	if len(pdfNorm) < neutralMinChars {
		return PageScore{Page: page, Accuracy: neutralConfidence, Match: true, Neutral: true}
	}

	sample := pdfNorm
	if len(sample) > sampleChars {
		sample = sample[:sampleChars]
	}
	if strings.Contains(pageNorm, sample) {
		return PageScore{Page: page, Accuracy: 1.0, Match: true}
	}

	acc := wordOverlap(pdfNorm, pageNorm)
	return PageScore{Page: page, Accuracy: acc, Match: acc >= threshold}
}

// wordOverlap returns the fraction of distinct words in reference that
// appear in candidate.
func wordOverlap(reference, candidate string) float64 {
	refWords := distinctWords(reference)
	if len(refWords) == 0 {
		return 0
	}
	candWords := make(map[string]struct{})
	for _, w := range strings.Fields(candidate) {
		candWords[w] = struct{}{}
	}

	found := 0
	for w := range refWords {
		if _, ok := candWords[w]; ok {
			found++
		}
	}
	return float64(found) / float64(len(refWords))
}

func distinctWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		words[w] = struct{}{}
	}
	return words
}

// MeanAccuracy averages page scores. Zero pages scores zero.
func MeanAccuracy(scores []PageScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s.Accuracy
	}
	return sum / float64(len(scores))
}
