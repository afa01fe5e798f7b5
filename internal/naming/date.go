package naming

import (
	"regexp"
)

var (
	dottedCaptureRe = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{2})`)
	isoCaptureRe    = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
)

// DateFromFileName extracts a document date from common filename
// patterns, returning it as YYYYMMDD. Two-digit years are assumed to be
// in the 2000s, which holds for every case folder this pipeline serves.
func DateFromFileName(name string) (string, bool) {
	if m := dottedCaptureRe.FindStringSubmatch(name); m != nil {
		return "20" + m[3] + pad2(m[1]) + pad2(m[2]), true
	}
	if m := isoCaptureRe.FindStringSubmatch(name); m != nil {
		return m[1] + m[2] + m[3], true
	}
	return "", false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
