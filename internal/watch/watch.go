// Package watch runs the pipeline automatically over case folders as
// they appear under a parent directory.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jackzampolin/docket/internal/layout"
)

// MarkerFile marks a case folder as processed. A folder with PDFs and no
// marker is picked up on the next scan.
const MarkerFile = ".docket_done.json"

// Marker records the outcome of one automatic run.
type Marker struct {
	Folder      string    `json:"folder"`
	CompletedAt time.Time `json:"completed_at"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// RunFunc executes a full pipeline pass over one case folder.
type RunFunc func(ctx context.Context, folder string) error

// Watcher polls a parent directory for unprocessed case folders and
// reacts to filesystem events between polls.
type Watcher struct {
	parent   string
	interval time.Duration
	run      RunFunc
	logger   *slog.Logger
}

// New creates a Watcher. interval bounds how stale the poll view can
// get when events are missed; zero means one minute.
func New(parent string, interval time.Duration, run RunFunc, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{parent: parent, interval: interval, run: run, logger: logger}
}

// Watch blocks until ctx is done, running the pipeline over any case
// folder that contains PDFs but no completion marker. Folders process
// one at a time; a failed run still writes its marker so a broken
// folder cannot wedge the loop.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.parent); err != nil {
		return fmt.Errorf("watching %s: %w", w.parent, err)
	}

	w.logger.Info("watching for case folders", "dir", w.parent, "interval", w.interval)
	w.scan(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan(ctx)
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				w.scan(ctx)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// scan runs the pipeline over every pending case folder.
func (w *Watcher) scan(ctx context.Context) {
	pending, err := w.pendingFolders()
	if err != nil {
		w.logger.Warn("scan failed", "error", err)
		return
	}
	for _, folder := range pending {
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("processing case folder", "folder", filepath.Base(folder))

		runErr := w.run(ctx, folder)
		if ctx.Err() != nil {
			// Interrupted mid-run; leave the folder unmarked so the
			// next start resumes it.
			return
		}
		if runErr != nil {
			w.logger.Error("case folder run failed", "folder", filepath.Base(folder), "error", runErr)
		}
		if err := w.writeMarker(folder, runErr); err != nil {
			w.logger.Warn("marker write failed", "folder", filepath.Base(folder), "error", err)
		}
	}
}

// pendingFolders lists subfolders that hold PDFs and lack a marker.
func (w *Watcher) pendingFolders() ([]string, error) {
	entries, err := os.ReadDir(w.parent)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		folder := filepath.Join(w.parent, name)
		if _, err := os.Stat(filepath.Join(folder, MarkerFile)); err == nil {
			continue
		}
		hasPDF, err := containsPDFs(folder)
		if err != nil {
			w.logger.Warn("folder scan failed", "folder", name, "error", err)
			continue
		}
		if hasPDF {
			out = append(out, folder)
		}
	}
	return out, nil
}

// containsPDFs reports whether the folder holds PDFs, either loose or
// already collected. The collected check lets an interrupted run resume
// after its loose files were moved into the stage directory.
func containsPDFs(folder string) (bool, error) {
	if ok, err := dirHasPDFs(folder); err != nil || ok {
		return ok, err
	}
	ok, err := dirHasPDFs(filepath.Join(folder, layout.OriginalDir))
	if os.IsNotExist(err) {
		return false, nil
	}
	return ok, err
}

func dirHasPDFs(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			return true, nil
		}
	}
	return false, nil
}

func (w *Watcher) writeMarker(folder string, runErr error) error {
	m := Marker{
		Folder:      filepath.Base(folder),
		CompletedAt: time.Now(),
		Success:     runErr == nil,
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(folder, MarkerFile), data, 0o644)
}
