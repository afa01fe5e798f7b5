package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CompressorConfig controls the ghostscript wrapper.
type CompressorConfig struct {
	Binary  string // defaults to "gs"
	Timeout time.Duration

	// MinReduction is the fractional size reduction required to keep
	// the compressed output. Below it the original is retained.
	MinReduction float64
}

func (c CompressorConfig) withDefaults() CompressorConfig {
	out := c
	if out.Binary == "" {
		out.Binary = "gs"
	}
	if out.Timeout <= 0 {
		out.Timeout = 15 * time.Minute
	}
	if out.MinReduction <= 0 {
		out.MinReduction = 0.10
	}
	return out
}

// Compressor shrinks OCR'd PDFs with ghostscript's ebook profile.
type Compressor struct {
	cfg CompressorConfig
}

// NewCompressor creates a Compressor. Zero config fields get defaults.
func NewCompressor(cfg CompressorConfig) *Compressor {
	return &Compressor{cfg: cfg.withDefaults()}
}

// Compress writes a compressed copy of inPath to outPath.
func (c *Compressor) Compress(ctx context.Context, inPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Binary,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/ebook",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile="+outPath,
		inPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ghostscript timeout on %s: %w", inPath, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[:500] + "..."
		}
		if msg != "" {
			return fmt.Errorf("ghostscript failed on %s: %s", inPath, msg)
		}
		return fmt.Errorf("ghostscript failed on %s: %w", inPath, err)
	}
	return nil
}

// CompressInPlace compresses path and replaces it only when the result
// is at least MinReduction smaller. Returns whether the compressed copy
// was kept.
func (c *Compressor) CompressInPlace(ctx context.Context, path string) (bool, error) {
	orig, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	tmp := path + "_compressed.pdf"
	defer os.Remove(tmp)

	if err := c.Compress(ctx, path, tmp); err != nil {
		return false, err
	}

	compressed, err := os.Stat(tmp)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", tmp, err)
	}
	if compressed.Size() == 0 {
		return false, fmt.Errorf("ghostscript produced empty output for %s", path)
	}

	reduction := 1.0 - float64(compressed.Size())/float64(orig.Size())
	if reduction < c.cfg.MinReduction {
		return false, nil
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, fmt.Errorf("replace %s with compressed copy: %w", path, err)
	}
	return true, nil
}
