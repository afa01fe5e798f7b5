// Package naming derives canonical document names: cleaned,
// underscore-normalized base names with a leading YYYYMMDD date resolved
// from the filename or, failing that, from the document's first page.
package naming

import (
	"regexp"
)

var (
	leadingOrdinalRe  = regexp.MustCompile(`^\d{1,4}\s*-\s*`)
	leadingDottedRe   = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{2,4}\s*-\s*`)
	leadingISORe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s*-\s*`)
	timestampRe       = regexp.MustCompile(`\d{2}-\d{2}T\d{2}-\d{2}`)
	dottedDateRe      = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{2,4}`)
	isoDateRe         = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	bracketedEmailRe  = regexp.MustCompile(`\[[\w.\-]+@[\w.\-]+\]`)
	googleSheetsRe    = regexp.MustCompile(`(?i)\s*-?\s*Google\s+Sheets\s*`)
	doubleDashRe      = regexp.MustCompile(`\s*-\s*-\s*`)
	multiSpaceRe      = regexp.MustCompile(`\s{2,}`)
	separatorRe       = regexp.MustCompile(`[\s\-]+`)
	edgeUnderscoreRe  = regexp.MustCompile(`^_+|_+$`)
	multiUnderscoreRe = regexp.MustCompile(`_{2,}`)
	parentheticalRe   = regexp.MustCompile(`\([^)]*\)`)

	datePrefixRe  = regexp.MustCompile(`^\d{8}_`)
	compilationRe = regexp.MustCompile(`(?i)\bEx\.\s*P\d+|\bExhibit\b`)
)

// CleanFileName normalizes a raw base name (no extension, no stage
// suffix): embedded dates, platform tags, parentheticals, and bracketed
// email addresses are removed, and runs of spaces/dashes collapse to
// single underscores.
func CleanFileName(name string) string {
	// Date-led prefixes must go before the ordinal rule, which would
	// otherwise eat the year off an ISO-dated name.
	name = leadingDottedRe.ReplaceAllString(name, "")
	name = leadingISORe.ReplaceAllString(name, "")
	name = leadingOrdinalRe.ReplaceAllString(name, "")
	name = timestampRe.ReplaceAllString(name, "")
	name = dottedDateRe.ReplaceAllString(name, "")
	name = isoDateRe.ReplaceAllString(name, "")
	name = bracketedEmailRe.ReplaceAllString(name, "")
	name = parentheticalRe.ReplaceAllString(name, "")
	name = googleSheetsRe.ReplaceAllString(name, "")
	name = doubleDashRe.ReplaceAllString(name, "_")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = separatorRe.ReplaceAllString(name, "_")
	name = edgeUnderscoreRe.ReplaceAllString(name, "")
	name = multiUnderscoreRe.ReplaceAllString(name, "_")
	return name
}

// HasDatePrefix reports whether a base name already starts with an
// 8-digit date followed by an underscore.
func HasDatePrefix(name string) bool {
	return datePrefixRe.MatchString(name)
}

// IsCompilation reports whether a base name marks an exhibit compilation,
// which skips date inference and takes a fixed party prefix.
func IsCompilation(name string) bool {
	return compilationRe.MatchString(name)
}

