package verify

import (
	"fmt"
	"strings"
)

// RenderReport produces the human-readable verification report written
// to the logs directory.
func RenderReport(report *RunReport) string {
	ok, warning, failed := report.Counts()

	var b strings.Builder
	b.WriteString("DOCUMENT VERIFICATION REPORT\n")
	fmt.Fprintf(&b, "Folder:    %s\n", report.Folder)
	fmt.Fprintf(&b, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Documents: %d (%d ok, %d warnings, %d failed)\n",
		len(report.Files), ok, warning, failed)
	b.WriteString(strings.Repeat("-", 69) + "\n\n")

	for _, f := range report.Files {
		fmt.Fprintf(&b, "%-8s %s\n", f.Status, f.File)
		if f.PagesScored > 0 {
			fmt.Fprintf(&b, "         accuracy %.1f%% over %d pages\n", f.MeanAccuracy*100, f.PagesScored)
		}
	}

	withIssues := 0
	for _, f := range report.Files {
		if len(f.Issues) > 0 {
			withIssues++
		}
	}
	if withIssues > 0 {
		b.WriteString("\nFILES WITH ISSUES\n")
		b.WriteString(strings.Repeat("-", 69) + "\n")
		for _, f := range report.Files {
			if len(f.Issues) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s (%s)\n", f.File, f.Status)
			for _, issue := range f.Issues {
				fmt.Fprintf(&b, "  - %s\n", issue.String())
			}
		}
	}

	return b.String()
}
