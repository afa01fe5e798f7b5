// Package stages implements the pipeline stages: collect, rename, clean,
// convert, textimport, format, upload, and verify. Each stage reads from
// one stage directory and writes suffix-tagged artifacts into the next.
package stages

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/naming"
	"github.com/jackzampolin/docket/internal/pipeline"
)

// Collect moves loose PDFs from the processing root into the original
// stage directory, tagging them with the original suffix. Byte-identical
// copies of an already collected document land in the duplicate pen
// instead of overwriting or forking the name.
type Collect struct{}

func (s *Collect) Name() string           { return "collect" }
func (s *Collect) Dependencies() []string { return nil }
func (s *Collect) Description() string {
	return "move loose PDFs into " + layout.OriginalDir
}

func (s *Collect) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	summary := executor.Summary{RunID: uuid.New().String(), Stage: s.Name()}
	log := env.Logger.With("stage", s.Name())

	loose, err := looseFiles(env.Root.Path(), ".pdf")
	if err != nil {
		return summary, err
	}

	dedup := naming.NewDeduper()
	existing, err := os.ReadDir(env.Root.Dir(layout.OriginalDir))
	if err != nil && !os.IsNotExist(err) {
		return summary, fmt.Errorf("reading %s: %w", layout.OriginalDir, err)
	}
	for _, e := range existing {
		if !e.IsDir() {
			dedup.Claim(e.Name())
		}
	}

	for _, src := range loose {
		if ctx.Err() != nil {
			break
		}
		base := layout.BaseName(filepath.Base(src))
		name := layout.StageFile(base, layout.SuffixOriginal, ".pdf")
		target := filepath.Join(env.Root.Dir(layout.OriginalDir), name)

		if _, err := os.Stat(target); err == nil {
			same, err := sameContents(src, target)
			if err != nil {
				summary.Results = append(summary.Results, executor.Failed(src, err))
				continue
			}
			if same {
				dup := filepath.Join(env.Root.DuplicateDir(), filepath.Base(src))
				if err := moveFile(src, dup); err != nil {
					summary.Results = append(summary.Results, executor.Failed(src, err))
					continue
				}
				log.Info("duplicate retired", "file", filepath.Base(src))
				summary.Results = append(summary.Results,
					executor.Partial(src, "duplicate of "+name))
				continue
			}
			// Same name, different bytes: a distinct document that
			// happens to share a title. Fork the base name.
			name = dedup.Unique(name, layout.SuffixOriginal, ".pdf")
			target = filepath.Join(env.Root.Dir(layout.OriginalDir), name)
		} else {
			name = dedup.Unique(name, layout.SuffixOriginal, ".pdf")
			target = filepath.Join(env.Root.Dir(layout.OriginalDir), name)
		}

		if err := moveFile(src, target); err != nil {
			summary.Results = append(summary.Results, executor.Failed(src, err))
			continue
		}
		log.Info("collected", "file", filepath.Base(src), "as", name)
		summary.Results = append(summary.Results, executor.OK(src))
	}

	return summary, nil
}

// looseFiles lists files with the given extension directly inside dir,
// sorted smallest-first. Underscore and dot prefixed names are skipped.
func looseFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	type sized struct {
		path string
		size int64
	}
	var out []sized
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, sized{path: filepath.Join(dir, name), size: info.Size()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].size < out[j].size })
	paths := make([]string, len(out))
	for i, s := range out {
		paths[i] = s.path
	}
	return paths, nil
}

// sameContents reports whether two files hold identical bytes.
func sameContents(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}
	ha, err := fileHash(a)
	if err != nil {
		return false, err
	}
	hb, err := fileHash(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ha, hb), nil
}

func fileHash(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// moveFile renames src to dst, falling back to copy+remove across
// filesystem boundaries.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst, preserving nothing but bytes.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
