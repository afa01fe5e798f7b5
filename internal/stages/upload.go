package stages

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/gcs"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/textdoc"
)

// Upload pushes OCR'd PDFs to object storage and rewrites the location
// headers of the converted and formatted artifacts to the resulting
// public links.
type Upload struct{}

func (s *Upload) Name() string           { return "upload" }
func (s *Upload) Dependencies() []string { return []string{"clean"} }
func (s *Upload) Description() string {
	return "upload PDFs to object storage and patch artifact headers"
}

func (s *Upload) Preflight(env *pipeline.Env) error {
	if env.Cloud == nil {
		return fmt.Errorf("no bucket configured")
	}
	return nil
}

func (s *Upload) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	if env.Cloud == nil {
		return executor.Summary{Stage: s.Name()}, fmt.Errorf("no storage bucket configured")
	}

	candidates, err := env.Root.ListCandidates(layout.CleanDir, layout.SuffixClean, ".pdf")
	if err != nil {
		return executor.Summary{Stage: s.Name()}, err
	}

	if env.Force {
		if err := s.purgeStaleFolders(ctx, env); err != nil {
			env.Logger.Warn("stale remote cleanup failed", "error", err)
		}
	}

	folder := env.Root.Name()
	tasks := make([]executor.Task, 0, len(candidates))
	for _, path := range candidates {
		tasks = append(tasks, executor.Task{Input: path})
	}

	worker := func(ctx context.Context, task executor.Task) executor.Result {
		name := filepath.Base(task.Input)

		if !env.Force {
			exists, err := env.Cloud.Exists(ctx, folder, name)
			if err != nil {
				return executor.Failed(task.Input, err)
			}
			if exists {
				s.patchHeaders(env, name)
				return executor.Result{File: task.Input, Status: executor.StatusSkipped}
			}
		}

		if err := env.Cloud.UploadFile(ctx, task.Input, folder, name); err != nil {
			return executor.Failed(task.Input, err)
		}
		s.patchHeaders(env, name)
		return executor.OKWith(task.Input, map[string]string{
			"url": env.Cloud.PublicURL(folder, name),
		})
	}

	summary := executor.Run(ctx, tasks, worker, executor.Options{
		Stage:   s.Name(),
		Workers: env.IOWorkers(),
		Force:   env.Force,
		Logger:  env.Logger,
	})

	if err := s.writeLogs(env, &summary); err != nil {
		env.Logger.Warn("upload log write failed", "error", err)
	}
	return summary, nil
}

// patchHeaders rewrites the directory and public-link header lines of the
// converted and formatted artifacts belonging to one uploaded PDF.
func (s *Upload) patchHeaders(env *pipeline.Env, pdfName string) {
	folder := env.Root.Name()
	base := layout.BaseName(pdfName)
	directory := gcs.ObjectKey(folder, "")
	publicURL := env.Cloud.PublicURL(folder, pdfName)

	targets := []string{
		filepath.Join(env.Root.Dir(layout.ConvertDir),
			layout.StageFile(base, layout.SuffixConverted, ".txt")),
		filepath.Join(env.Root.Dir(layout.FormatDir),
			layout.StageFile(base, layout.SuffixFormatted, ".txt")),
	}
	for _, path := range targets {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		patched, changed := textdoc.PatchHeaderFields(string(raw), directory, publicURL)
		if !changed || patched == string(raw) {
			continue
		}
		if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
			env.Logger.Warn("header patch failed", "file", filepath.Base(path), "error", err)
		}
	}
}

// purgeStaleFolders deletes remote prefixes that the artifact headers
// still point at after a case folder was renamed locally.
func (s *Upload) purgeStaleFolders(ctx context.Context, env *pipeline.Env) error {
	current := env.Root.Name()
	stale := make(map[string]bool)

	files, err := env.Root.ListCandidates(layout.ConvertDir, layout.SuffixConverted, ".txt")
	if err != nil {
		return err
	}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		doc, err := textdoc.Parse(string(raw))
		if err != nil {
			continue
		}
		if folder := folderFromURL(doc.Header.PublicURL); folder != "" && folder != current {
			stale[folder] = true
		}
	}

	for folder := range stale {
		n, err := env.Cloud.DeleteFolder(ctx, folder)
		if err != nil {
			return fmt.Errorf("deleting stale prefix %s: %w", folder, err)
		}
		env.Logger.Info("stale remote folder removed", "folder", folder, "objects", n)
	}
	return nil
}

// folderFromURL recovers the case-folder segment of a public link, e.g.
// ".../<bucket>/docs/<folder>/<file>" yields "<folder>".
func folderFromURL(url string) string {
	marker := "/" + gcs.ObjectPrefix + "/"
	at := strings.Index(url, marker)
	if at < 0 {
		return ""
	}
	rest := url[at+len(marker):]
	if slash := strings.Index(rest, "/"); slash > 0 {
		return rest[:slash]
	}
	return ""
}

// writeLogs persists the structure manifest, document catalog, and
// upload log for this run into the logs directory.
func (s *Upload) writeLogs(env *pipeline.Env, summary *executor.Summary) error {
	logsDir := env.Root.Dir(layout.LogsDir)
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return err
	}
	ts := time.Now().Format("20060102_150405")

	if err := s.writeStructureManifest(env, filepath.Join(logsDir, "structure_manifest_"+ts+".txt")); err != nil {
		return err
	}
	if err := s.writeCatalog(env, filepath.Join(logsDir, "document_catalog_"+ts+".csv")); err != nil {
		return err
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(logsDir, "upload_log_"+ts+".json"), data, 0o644)
}

// writeStructureManifest records the current tree of the case folder,
// skipping side directories.
func (s *Upload) writeStructureManifest(env *pipeline.Env, path string) error {
	var b strings.Builder
	b.WriteString(env.Root.Name() + "\n")

	root := env.Root.Path()
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		depth := strings.Count(rel, string(filepath.Separator))
		b.WriteString(strings.Repeat("  ", depth+1) + name + "\n")
		return nil
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// writeCatalog writes one CSV row per document with its artifacts and
// public link.
func (s *Upload) writeCatalog(env *pipeline.Env, path string) error {
	pdfs, err := env.Root.ListCandidates(layout.CleanDir, layout.SuffixClean, ".pdf")
	if err != nil {
		return err
	}
	sort.Strings(pdfs)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Base Name", "PDF", "Formatted Text", "Public Link"}); err != nil {
		return err
	}
	folder := env.Root.Name()
	for _, pdf := range pdfs {
		name := filepath.Base(pdf)
		base := layout.BaseName(name)
		txt := layout.StageFile(base, layout.SuffixFormatted, ".txt")
		if _, err := os.Stat(filepath.Join(env.Root.Dir(layout.FormatDir), txt)); err != nil {
			txt = ""
		}
		row := []string{base, name, txt, env.Cloud.PublicURL(folder, name)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
