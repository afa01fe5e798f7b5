package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/naming"
	"github.com/jackzampolin/docket/internal/pipeline"
)

// renameMapFile records which renamed artifact each original produced.
// The resolver's output depends on inferred metadata, so the output name
// alone cannot serve as the idempotence signal; the map makes a second
// run skip originals that already have their copy in place.
const renameMapFile = "rename_map.json"

// Rename copies collected originals into the renamed stage directory
// under resolver-derived, date-prefixed names.
type Rename struct{}

func (s *Rename) Name() string           { return "rename" }
func (s *Rename) Dependencies() []string { return []string{"collect"} }
func (s *Rename) Description() string {
	return "copy originals into " + layout.RenamedDir + " under canonical names"
}

func (s *Rename) Preflight(env *pipeline.Env) error {
	return lookTools("pdftotext")
}

func (s *Rename) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	candidates, err := env.Root.ListCandidates(layout.OriginalDir, layout.SuffixOriginal, ".pdf")
	if err != nil {
		return executor.Summary{Stage: s.Name()}, err
	}

	mapPath := filepath.Join(env.Root.Dir(layout.RenamedDir), "_log", renameMapFile)
	renamed, err := loadRenameMap(mapPath)
	if err != nil {
		return executor.Summary{Stage: s.Name()}, err
	}

	dedup := naming.NewDeduper()
	entries, err := os.ReadDir(env.Root.Dir(layout.RenamedDir))
	if err != nil && !os.IsNotExist(err) {
		return executor.Summary{Stage: s.Name()}, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			dedup.Claim(e.Name())
		}
	}
	for _, name := range renamed {
		dedup.Claim(name)
	}

	metadata, _ := env.Providers.MetadataClient()
	resolver := naming.NewResolver(metadata, env.Logger)

	var mu sync.Mutex
	tasks := make([]executor.Task, 0, len(candidates))
	for _, path := range candidates {
		t := executor.Task{Input: path}
		if out, ok := renamed[filepath.Base(path)]; ok {
			t.Output = filepath.Join(env.Root.Dir(layout.RenamedDir), out)
		}
		tasks = append(tasks, t)
	}

	worker := func(ctx context.Context, task executor.Task) executor.Result {
		original := layout.BaseName(filepath.Base(task.Input))

		pageOne, err := env.Poppler.PageText(ctx, task.Input, 1)
		if err != nil {
			env.Logger.Warn("no page text for naming", "file", original, "error", err)
			pageOne = ""
		}

		resolved := resolver.Resolve(ctx, original, pageOne)

		mu.Lock()
		name := dedup.Unique(
			layout.StageFile(resolved, layout.SuffixRenamed, ".pdf"),
			layout.SuffixRenamed, ".pdf")
		mu.Unlock()

		target := filepath.Join(env.Root.Dir(layout.RenamedDir), name)
		if err := copyFile(task.Input, target); err != nil {
			return executor.Failed(task.Input, err)
		}

		mu.Lock()
		renamed[filepath.Base(task.Input)] = name
		mu.Unlock()

		return executor.OKWith(task.Input, map[string]string{"renamed": name})
	}

	summary := executor.Run(ctx, tasks, worker, executor.Options{
		Stage:   s.Name(),
		Workers: env.IOWorkers(),
		Force:   env.Force,
		Logger:  env.Logger,
	})

	if err := saveRenameMap(mapPath, renamed); err != nil {
		return summary, fmt.Errorf("writing rename map: %w", err)
	}
	return summary, nil
}

func loadRenameMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

func saveRenameMap(path string, m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
