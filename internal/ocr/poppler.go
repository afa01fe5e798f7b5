// Package ocr wraps the external PDF tools the pipeline shells out to:
// ocrmypdf for text layers, ghostscript for compression, and poppler
// for text extraction and page counts.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PopplerConfig bounds how long each poppler invocation may run.
type PopplerConfig struct {
	InfoTimeout time.Duration
	PageTimeout time.Duration
	FullTimeout time.Duration
}

func (c PopplerConfig) withDefaults() PopplerConfig {
	out := c
	if out.InfoTimeout <= 0 {
		out.InfoTimeout = 10 * time.Second
	}
	if out.PageTimeout <= 0 {
		out.PageTimeout = 30 * time.Second
	}
	if out.FullTimeout <= 0 {
		out.FullTimeout = 5 * time.Minute
	}
	return out
}

// Poppler extracts text and page counts via pdftotext and pdfinfo.
type Poppler struct {
	cfg PopplerConfig
}

// NewPoppler creates a Poppler wrapper. Zero config fields get defaults.
func NewPoppler(cfg PopplerConfig) *Poppler {
	return &Poppler{cfg: cfg.withDefaults()}
}

var pagesRe = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

// PageCount returns the page count reported by pdfinfo.
func (p *Poppler) PageCount(ctx context.Context, pdfPath string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.InfoTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, popplerErr("pdfinfo", ctx, err, stderr.String())
	}

	m := pagesRe.FindStringSubmatch(stdout.String())
	if m == nil {
		return 0, fmt.Errorf("pdfinfo: pages field not found for %s", pdfPath)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("pdfinfo: bad page count %q for %s", m[1], pdfPath)
	}
	return n, nil
}

// PageText extracts the text of a single 1-based page.
func (p *Poppler) PageText(ctx context.Context, pdfPath string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("pdftotext: invalid page number %d", page)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PageTimeout)
	defer cancel()

	return p.run(ctx, "-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
		"-layout", "-nopgbrk", "-enc", "UTF-8", pdfPath, "-")
}

// AllText extracts the full document as one string, pages joined by the
// form feed characters pdftotext emits between them.
func (p *Poppler) AllText(ctx context.Context, pdfPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.FullTimeout)
	defer cancel()

	return p.run(ctx, "-layout", "-enc", "UTF-8", pdfPath, "-")
}

// PageTexts extracts every page separately, preserving order.
func (p *Poppler) PageTexts(ctx context.Context, pdfPath string) ([]string, error) {
	full, err := p.AllText(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	pages := strings.Split(full, "\f")
	// pdftotext leaves a trailing form feed, producing one empty slot.
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}

func (p *Poppler) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", popplerErr("pdftotext", ctx, err, stderr.String())
	}
	return stdout.String(), nil
}

func popplerErr(tool string, ctx context.Context, err error, stderr string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timeout: %w", tool, ctx.Err())
	}
	stderr = strings.TrimSpace(stderr)
	switch {
	case strings.Contains(stderr, "Incorrect password"):
		return fmt.Errorf("%s: PDF is password protected", tool)
	case strings.Contains(stderr, "PDF file is damaged"),
		strings.Contains(stderr, "Couldn't find trailer dictionary"),
		strings.Contains(stderr, "May not be a PDF file"):
		return fmt.Errorf("%s: PDF appears to be damaged", tool)
	case stderr != "":
		if len(stderr) > 500 {
			stderr = stderr[:500] + "..."
		}
		return fmt.Errorf("%s failed: %s", tool, stderr)
	default:
		return fmt.Errorf("%s failed: %w", tool, err)
	}
}
