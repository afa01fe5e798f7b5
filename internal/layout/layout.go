// Package layout owns the on-disk staging convention for a case folder:
// numbered stage directories, suffix-tagged filenames, and the side
// directories for superseded files, logs, and duplicates.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// OriginalDir holds collected source PDFs (stage 1).
	OriginalDir = "01_doc-original"

	// RenamedDir holds date-prefixed, cleaned copies (stage 2).
	RenamedDir = "02_doc-renamed"

	// CleanDir holds OCR'd, compressed PDFs (stage 3).
	CleanDir = "03_doc-clean"

	// ConvertDir holds raw extracted text artifacts (stage 4).
	ConvertDir = "04_doc-convert"

	// FormatDir holds AI-corrected text artifacts (stage 5).
	FormatDir = "05_doc-format"

	// LogsDir holds per-run reports, manifests, and upload logs.
	LogsDir = "y_logs"

	// OldDir holds retired files that predate the current run.
	OldDir = "z_old"

	// DuplicateDirName is the duplicate holding pen inside OriginalDir.
	DuplicateDirName = "_duplicate"
)

// pipelineDirs are the stage directories that carry _old and _log children.
var pipelineDirs = []string{OriginalDir, RenamedDir, CleanDir, ConvertDir, FormatDir}

// Root represents a case-folder processing root.
type Root struct {
	path string
}

// New creates a Root for the given path. The path must name an existing
// directory; the stage subdirectories are created lazily by EnsureExists.
func New(path string) (*Root, error) {
	if path == "" {
		return nil, fmt.Errorf("processing root path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("processing root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("processing root is not a directory: %s", abs)
	}
	return &Root{path: abs}, nil
}

// Path returns the absolute root path.
func (r *Root) Path() string {
	return r.path
}

// Name returns the case-folder name, used as the storage prefix segment.
func (r *Root) Name() string {
	return filepath.Base(r.path)
}

// Dir returns the absolute path of a stage directory.
func (r *Root) Dir(name string) string {
	return filepath.Join(r.path, name)
}

// DuplicateDir returns the duplicate holding pen under the original dir.
func (r *Root) DuplicateDir() string {
	return filepath.Join(r.path, OriginalDir, DuplicateDirName)
}

// EnsureExists creates the full stage-directory skeleton. Every stage calls
// this before touching the filesystem so a fresh folder is always usable.
func (r *Root) EnsureExists() error {
	for _, name := range append(append([]string{}, pipelineDirs...), LogsDir, OldDir) {
		if err := os.MkdirAll(r.Dir(name), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	for _, name := range pipelineDirs {
		for _, sub := range []string{"_old", "_log"} {
			if err := os.MkdirAll(filepath.Join(r.Dir(name), sub), 0o755); err != nil {
				return fmt.Errorf("failed to create %s/%s: %w", name, sub, err)
			}
		}
	}
	if err := os.MkdirAll(r.DuplicateDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create duplicate dir: %w", err)
	}
	return nil
}

// ListCandidates returns the files directly inside a stage directory that
// match ext (e.g. ".pdf") and optionally a stage suffix. Files inside
// underscore-prefixed side directories, underscore-prefixed files, and
// temp artifacts are excluded. Results are sorted smallest-first by byte
// size so short jobs surface progress early.
func (r *Root) ListCandidates(dir, suffix, ext string) ([]string, error) {
	entries, err := os.ReadDir(r.Dir(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	type sized struct {
		path string
		size int64
	}
	var out []sized
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "_") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		if IsTempArtifact(e.Name()) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if suffix != "" && !strings.HasSuffix(stem, suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, sized{path: filepath.Join(r.Dir(dir), e.Name()), size: info.Size()})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].size < out[j].size })

	paths := make([]string, len(out))
	for i, s := range out {
		paths[i] = s.path
	}
	return paths, nil
}

// Retire moves a superseded file into the stage's _old subdirectory.
func (r *Root) Retire(path string) error {
	target := filepath.Join(filepath.Dir(path), "_old", filepath.Base(path))
	return os.Rename(path, target)
}
