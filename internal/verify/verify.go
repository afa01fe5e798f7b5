package verify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/gcs"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/textdoc"
)

// PDFInspector reads ground truth from the source PDF.
type PDFInspector interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
	PageText(ctx context.Context, pdfPath string, page int) (string, error)
}

// CloudChecker confirms uploaded objects exist.
type CloudChecker interface {
	Exists(ctx context.Context, folder, file string) (bool, error)
	PublicURL(folder, file string) string
}

// FileReport is the verification verdict for one formatted document.
type FileReport struct {
	File         string      `json:"file"`
	PDF          string      `json:"pdf"`
	Status       Status      `json:"status"`
	MeanAccuracy float64     `json:"mean_accuracy"`
	PagesScored  int         `json:"pages_scored"`
	PageScores   []PageScore `json:"page_scores,omitempty"`
	Issues       []Issue     `json:"issues,omitempty"`
}

// RunReport aggregates one verification pass over a case folder.
type RunReport struct {
	Folder      string       `json:"folder"`
	GeneratedAt time.Time    `json:"generated_at"`
	Files       []FileReport `json:"files"`
}

// Counts returns totals by status.
func (r *RunReport) Counts() (ok, warning, failed int) {
	for _, f := range r.Files {
		switch f.Status {
		case StatusOK:
			ok++
		case StatusWarning:
			warning++
		case StatusFailed:
			failed++
		}
	}
	return
}

// Verifier checks formatted artifacts against their source PDFs.
type Verifier struct {
	pdf    PDFInspector
	cloud  CloudChecker // nil disables cloud checks
	cfg    config.VerifyCfg
	logger *slog.Logger
}

// NewVerifier creates a Verifier. cloud may be nil for offline runs.
func NewVerifier(pdf PDFInspector, cloud CloudChecker, cfg config.VerifyCfg, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{pdf: pdf, cloud: cloud, cfg: cfg, logger: logger}
}

// VerifyFile checks one formatted text file within a case folder.
func (v *Verifier) VerifyFile(ctx context.Context, root *layout.Root, txtName string) FileReport {
	base := layout.BaseName(txtName)
	pdfName := layout.StageFile(base, layout.SuffixClean, ".pdf")
	report := FileReport{File: txtName, PDF: pdfName}

	raw, err := os.ReadFile(filepath.Join(root.Dir(layout.FormatDir), txtName))
	if err != nil {
		report.Issues = append(report.Issues, Issue{
			Category: CategoryUnreadable,
			Detail:   fmt.Sprintf("cannot read formatted file: %v", err),
		})
		report.Status = StatusFailed
		return report
	}
	text := string(raw)

	doc, parseErr := textdoc.Parse(text)
	var body string
	if parseErr != nil {
		report.Issues = append(report.Issues, Issue{
			Category: CategoryHeaderMissing,
			Detail:   parseErr.Error(),
		})
		body = text
	} else {
		body = doc.Body
	}

	if len(text) < v.cfg.MinTextChars {
		report.Issues = append(report.Issues, Issue{
			Category: CategoryShortText,
			Detail:   fmt.Sprintf("formatted text is %d chars, expected at least %d", len(text), v.cfg.MinTextChars),
		})
	}

	if !textdoc.HasPageOne(body) {
		report.Issues = append(report.Issues, Issue{
			Category: CategoryPageOneMarker,
			Detail:   "page 1 marker not found at start of document body",
		})
	}

	pdfPath := filepath.Join(root.Dir(layout.CleanDir), pdfName)
	pdfPages := 0
	if _, statErr := os.Stat(pdfPath); statErr != nil {
		report.Issues = append(report.Issues, Issue{
			Category: CategoryPageCount,
			Detail:   fmt.Sprintf("source PDF %s not found", pdfName),
		})
	} else {
		pdfPages, err = v.pdf.PageCount(ctx, pdfPath)
		if err != nil {
			report.Issues = append(report.Issues, Issue{
				Category: CategoryPageCount,
				Detail:   fmt.Sprintf("cannot count PDF pages: %v", err),
			})
			pdfPages = 0
		}
	}

	markers := textdoc.MarkerCount(body)
	if pdfPages > 0 {
		drift := markers - pdfPages
		if drift < 0 {
			drift = -drift
		}
		if drift > v.cfg.PageTolerance {
			report.Issues = append(report.Issues, Issue{
				Category: CategoryPageCount,
				Detail:   fmt.Sprintf("%d page markers vs %d PDF pages", markers, pdfPages),
			})
		}
	}

	if parseErr == nil {
		report.Issues = append(report.Issues, v.checkHeader(root, doc, pdfName, pdfPages)...)
	}

	if pdfPages > 0 {
		scores := v.scorePages(ctx, pdfPath, body, pdfPages)
		report.PageScores = scores
		report.PagesScored = len(scores)
		report.MeanAccuracy = MeanAccuracy(scores)

		for _, s := range scores {
			if !s.Match {
				report.Issues = append(report.Issues, Issue{
					Category: CategoryLowAccuracy,
					Page:     s.Page,
					Percent:  s.Accuracy * 100,
					Detail:   "page text diverges from PDF",
				})
			}
		}
		if report.MeanAccuracy < v.cfg.MatchThreshold {
			report.Issues = append(report.Issues, Issue{
				Category: CategoryLowAccuracy,
				Percent:  report.MeanAccuracy * 100,
				Detail:   fmt.Sprintf("document accuracy %.1f%% below %.0f%%", report.MeanAccuracy*100, v.cfg.MatchThreshold*100),
			})
		}
	}

	if v.cloud != nil {
		exists, cloudErr := v.cloud.Exists(ctx, root.Name(), pdfName)
		if cloudErr != nil {
			v.logger.Warn("cloud check failed", "file", pdfName, "error", cloudErr)
		} else if !exists {
			report.Issues = append(report.Issues, Issue{
				Category: CategoryCloudMissing,
				Detail:   fmt.Sprintf("object %s not found in bucket", pdfName),
			})
		}
	}

	report.Status = statusFor(report.Issues)
	return report
}

// checkHeader validates header fields against the document's actual
// location and size. A present header with wrong values is a mismatch;
// empty required fields count as missing.
func (v *Verifier) checkHeader(root *layout.Root, doc *textdoc.Document, pdfName string, pdfPages int) []Issue {
	var issues []Issue

	if doc.Header.Name == "" || doc.Header.PDFName == "" {
		issues = append(issues, Issue{
			Category: CategoryHeaderMissing,
			Detail:   "required header fields are empty",
		})
		return issues
	}

	if doc.Header.PDFName != pdfName {
		issues = append(issues, Issue{
			Category: CategoryHeaderMismatch,
			Detail:   fmt.Sprintf("header names PDF %q, expected %q", doc.Header.PDFName, pdfName),
		})
	}
	if pdfPages > 0 && doc.Header.Pages != pdfPages {
		issues = append(issues, Issue{
			Category: CategoryHeaderMismatch,
			Detail:   fmt.Sprintf("header reports %d pages, PDF has %d", doc.Header.Pages, pdfPages),
		})
	}
	if v.cloud != nil {
		wantDir := gcs.ObjectKey(root.Name(), "")
		switch {
		case doc.Header.Directory == "" || doc.Header.Directory == "TBD":
			issues = append(issues, Issue{
				Category: CategoryHeaderMissing,
				Detail:   "document location header is empty",
			})
		case doc.Header.Directory != wantDir:
			issues = append(issues, Issue{
				Category: CategoryHeaderMismatch,
				Detail:   fmt.Sprintf("header locates document at %q, expected %q", doc.Header.Directory, wantDir),
			})
		}

		wantURL := v.cloud.PublicURL(root.Name(), pdfName)
		switch {
		case doc.Header.PublicURL == "" || doc.Header.PublicURL == "TBD":
			issues = append(issues, Issue{
				Category: CategoryHeaderMissing,
				Detail:   "public link header is empty",
			})
		case doc.Header.PublicURL != wantURL:
			issues = append(issues, Issue{
				Category: CategoryHeaderMismatch,
				Detail:   fmt.Sprintf("header link %q, expected %q", doc.Header.PublicURL, wantURL),
			})
		}
	}
	return issues
}

// scorePages samples ground truth from the first and last PDF pages and
// compares each against the correspondingly marked page of the body.
func (v *Verifier) scorePages(ctx context.Context, pdfPath, body string, pdfPages int) []PageScore {
	byNum := make(map[int]textdoc.Page)
	for _, page := range textdoc.SplitPages(body) {
		byNum[page.Num] = page
	}

	sample := []int{1}
	if pdfPages > 1 {
		sample = append(sample, pdfPages)
	}

	scores := make([]PageScore, 0, len(sample))
	for _, num := range sample {
		page, ok := byNum[num]
		if !ok {
			continue
		}
		pdfText, err := v.pdf.PageText(ctx, pdfPath, num)
		if err != nil {
			v.logger.Warn("page extraction failed during verify",
				"pdf", pdfPath, "page", num, "error", err)
			continue
		}
		scores = append(scores, ScorePage(num, pdfText, page.Content, v.cfg.MatchThreshold))
	}
	return scores
}

// VerifyFolder checks every formatted document in a case folder.
func (v *Verifier) VerifyFolder(ctx context.Context, root *layout.Root) (*RunReport, error) {
	files, err := root.ListCandidates(layout.FormatDir, layout.SuffixFormatted, ".txt")
	if err != nil {
		return nil, fmt.Errorf("list formatted files: %w", err)
	}

	report := &RunReport{
		Folder:      root.Name(),
		GeneratedAt: time.Now(),
	}
	for _, path := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		name := filepath.Base(path)
		fr := v.VerifyFile(ctx, root, name)
		report.Files = append(report.Files, fr)
		v.logger.Info("verified document",
			"file", name, "status", fr.Status, "accuracy", fmt.Sprintf("%.1f%%", fr.MeanAccuracy*100), "issues", len(fr.Issues))
	}
	return report, nil
}
