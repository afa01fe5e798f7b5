// Package executor runs one pipeline stage's worker over a batch of
// candidate files with skip-if-output-exists idempotence, size-based
// partitioning, bounded parallelism, and per-file failure isolation.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of stage work: an input file and the output path whose
// existence marks the work as already done.
type Task struct {
	Input  string
	Output string
	Size   int64
}

// WorkerFunc processes a single task. It must only ever write the task's
// own output path; that structural rule is what makes the batch safe to
// run in parallel without locks.
type WorkerFunc func(ctx context.Context, task Task) Result

// Options configures a stage batch.
type Options struct {
	Stage string

	// Workers bounds the parallel group. IO-bound stages use a small pool
	// sized to the external service; CPU-bound stages use NumCPU.
	Workers int

	// LargeBytes is the size threshold above which a file is processed
	// sequentially after the parallel group, so one hung large job never
	// hides progress on the small ones. Zero disables partitioning.
	LargeBytes int64

	// Force invokes the worker even when the output artifact exists
	// (repair and forced re-upload modes).
	Force bool

	Logger *slog.Logger
}

// Run executes the batch and returns a summary. One file's failure never
// aborts the batch; only ctx cancellation stops it early, and already
// finished outputs are picked up by the skip check on the next run.
func Run(ctx context.Context, tasks []Task, worker WorkerFunc, opts Options) Summary {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("stage", opts.Stage)

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	summary := Summary{RunID: uuid.New().String(), Stage: opts.Stage}

	// Fill in sizes and apply the idempotence check up front so skips are
	// reported without ever invoking the worker.
	var pending []Task
	for _, t := range tasks {
		if t.Size == 0 {
			if info, err := os.Stat(t.Input); err == nil {
				t.Size = info.Size()
			}
		}
		if !opts.Force && t.Output != "" {
			if _, err := os.Stat(t.Output); err == nil {
				log.Info("skip (already processed)", "file", t.Input)
				summary.Results = append(summary.Results, Result{File: t.Input, Status: StatusSkipped})
				continue
			}
		}
		pending = append(pending, t)
	}

	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Size < pending[j].Size })

	var parallel, sequential []Task
	for _, t := range pending {
		if opts.LargeBytes > 0 && t.Size > opts.LargeBytes {
			sequential = append(sequential, t)
		} else {
			parallel = append(parallel, t)
		}
	}

	var mu sync.Mutex
	record := func(r Result) {
		switch r.Status {
		case StatusFailed:
			log.Warn("file failed", "file", r.File, "error", r.Message)
		case StatusPartial:
			log.Info("file partial", "file", r.File, "detail", r.Message)
		default:
			log.Info("file ok", "file", r.File)
		}
		mu.Lock()
		summary.Results = append(summary.Results, r)
		mu.Unlock()
	}

	if len(parallel) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, t := range parallel {
			g.Go(func() error {
				record(safeInvoke(gctx, worker, t))
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, t := range sequential {
		if ctx.Err() != nil {
			break
		}
		log.Info("processing large file sequentially", "file", t.Input, "bytes", t.Size)
		record(safeInvoke(ctx, worker, t))
	}

	log.Info("stage complete",
		"ok", summary.Count(StatusOK),
		"partial", summary.Count(StatusPartial),
		"skipped", summary.Count(StatusSkipped),
		"failed", summary.Count(StatusFailed),
		"run_id", summary.RunID,
	)
	return summary
}

// safeInvoke runs the worker for one task, converting a panic into a
// FAILED result so a single bad file cannot take down the batch.
func safeInvoke(ctx context.Context, worker WorkerFunc, t Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(t.Input, fmt.Errorf("worker panic: %v", r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return Failed(t.Input, err)
	}
	return worker(ctx, t)
}
