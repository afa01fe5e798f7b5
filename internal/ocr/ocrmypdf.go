package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// OCRConfig controls the ocrmypdf wrapper.
type OCRConfig struct {
	Binary  string // defaults to "ocrmypdf"
	Timeout time.Duration
}

func (c OCRConfig) withDefaults() OCRConfig {
	out := c
	if out.Binary == "" {
		out.Binary = "ocrmypdf"
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Minute
	}
	return out
}

// OCREngine adds text layers to scanned PDFs by shelling out to
// ocrmypdf.
type OCREngine struct {
	cfg OCRConfig
}

// NewOCREngine creates an OCREngine. Zero config fields get defaults.
func NewOCREngine(cfg OCRConfig) *OCREngine {
	return &OCREngine{cfg: cfg.withDefaults()}
}

// fastArgs is the standard profile. Pages that already carry text are
// left alone so born-digital documents pass through quickly.
var fastArgs = []string{
	"--skip-text",
	"--output-type", "pdfa",
	"--oversample", "600",
	"--optimize", "3",
}

// enhancedArgs is the repair profile for documents whose first pass
// produced unusable text. Every page is re-rasterized and cleaned.
var enhancedArgs = []string{
	"--force-ocr",
	"--deskew",
	"--clean",
	"--rotate-pages",
	"--remove-background",
	"--optimize", "1",
	"--oversample", "1200",
	"--jpeg-quality", "95",
	"--output-type", "pdfa",
}

// Run applies the standard OCR profile, writing the result to outPath.
func (e *OCREngine) Run(ctx context.Context, inPath, outPath string) error {
	return e.invoke(ctx, fastArgs, inPath, outPath)
}

// RunEnhanced applies the aggressive re-OCR profile used when the
// standard pass yields garbled or empty text.
func (e *OCREngine) RunEnhanced(ctx context.Context, inPath, outPath string) error {
	return e.invoke(ctx, enhancedArgs, inPath, outPath)
}

func (e *OCREngine) invoke(ctx context.Context, profile []string, inPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, profile...), inPath, outPath)
	cmd := exec.CommandContext(ctx, e.cfg.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ocrmypdf timeout on %s: %w", inPath, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[:500] + "..."
		}
		if msg != "" {
			return fmt.Errorf("ocrmypdf failed on %s: %s", inPath, msg)
		}
		return fmt.Errorf("ocrmypdf failed on %s: %w", inPath, err)
	}
	return nil
}
