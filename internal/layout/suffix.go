package layout

import (
	"path/filepath"
	"strings"
)

// Stage suffixes. Each stage writes files tagged with its own suffix; every
// downstream stage strips all known suffixes to recover the canonical base
// name, so a document keeps one identity across the whole pipeline.
const (
	SuffixOriginal  = "_d" // stage 1: collected original
	SuffixRenamed   = "_r" // stage 2: date-prefixed copy
	SuffixClean     = "_o" // stage 3: OCR'd PDF
	SuffixConverted = "_c" // stage 4: raw extracted text
	SuffixFormatted = "_f" // stage 5: AI-corrected text
)

// knownSuffixes lists every suffix any pipeline version has ever written,
// newest conventions first. Legacy tags still appear in old case folders.
var knownSuffixes = []string{
	SuffixOriginal, SuffixRenamed, SuffixClean, SuffixConverted, SuffixFormatted,
	"_a", "_t", "_g",
}

// BaseName strips the extension and at most one known stage suffix from a
// filename, returning the document's canonical base name.
func BaseName(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	for _, s := range knownSuffixes {
		if strings.HasSuffix(stem, s) && len(stem) > len(s) {
			return stem[:len(stem)-len(s)]
		}
	}
	return stem
}

// StageFile builds a stage filename from a base name, suffix, and extension.
func StageFile(base, suffix, ext string) string {
	return base + suffix + ext
}

// IsTempArtifact reports whether a filename is a scratch file written by an
// in-flight worker (never a pipeline artifact).
func IsTempArtifact(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.Contains(stem, "_temp") || strings.Contains(stem, "_compressed")
}
