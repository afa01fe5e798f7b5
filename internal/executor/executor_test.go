package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSkipsExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.pdf", 10)
	out := filepath.Join(dir, "a_o.pdf")

	invoked := 0
	worker := func(ctx context.Context, task Task) Result {
		invoked++
		if err := os.WriteFile(task.Output, []byte("x"), 0o644); err != nil {
			return Failed(task.Input, err)
		}
		return OK(task.Input)
	}
	tasks := []Task{{Input: in, Output: out}}

	first := Run(context.Background(), tasks, worker, Options{Stage: "test", Workers: 2})
	if first.Count(StatusOK) != 1 || invoked != 1 {
		t.Fatalf("first run: ok=%d invoked=%d", first.Count(StatusOK), invoked)
	}

	second := Run(context.Background(), tasks, worker, Options{Stage: "test", Workers: 2})
	if second.Count(StatusSkipped) != 1 {
		t.Errorf("second run skipped=%d, want 1", second.Count(StatusSkipped))
	}
	if invoked != 1 {
		t.Errorf("worker invoked %d times across both runs, want 1", invoked)
	}

	forced := Run(context.Background(), tasks, worker, Options{Stage: "test", Workers: 2, Force: true})
	if forced.Count(StatusOK) != 1 || invoked != 2 {
		t.Errorf("forced run: ok=%d invoked=%d", forced.Count(StatusOK), invoked)
	}
}

func TestRunProcessesSmallestFirst(t *testing.T) {
	dir := t.TempDir()
	tasks := []Task{
		{Input: writeFile(t, dir, "big.pdf", 3000)},
		{Input: writeFile(t, dir, "small.pdf", 100)},
		{Input: writeFile(t, dir, "medium.pdf", 1000)},
	}

	var mu sync.Mutex
	var order []string
	worker := func(ctx context.Context, task Task) Result {
		mu.Lock()
		order = append(order, filepath.Base(task.Input))
		mu.Unlock()
		return OK(task.Input)
	}

	Run(context.Background(), tasks, worker, Options{Stage: "test", Workers: 1})
	want := []string{"small.pdf", "medium.pdf", "big.pdf"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunLargeFilesProcessSequentiallyLast(t *testing.T) {
	dir := t.TempDir()
	tasks := []Task{
		{Input: writeFile(t, dir, "huge.pdf", 5000)},
		{Input: writeFile(t, dir, "tiny.pdf", 10)},
	}

	var mu sync.Mutex
	var order []string
	worker := func(ctx context.Context, task Task) Result {
		mu.Lock()
		order = append(order, filepath.Base(task.Input))
		mu.Unlock()
		return OK(task.Input)
	}

	summary := Run(context.Background(), tasks, worker, Options{
		Stage: "test", Workers: 4, LargeBytes: 1000,
	})
	if summary.Count(StatusOK) != 2 {
		t.Fatalf("ok=%d, want 2", summary.Count(StatusOK))
	}
	if order[len(order)-1] != "huge.pdf" {
		t.Errorf("large file ran at position %v, want last", order)
	}
}

func TestRunPanicBecomesFailure(t *testing.T) {
	dir := t.TempDir()
	tasks := []Task{
		{Input: writeFile(t, dir, "bad.pdf", 10)},
		{Input: writeFile(t, dir, "good.pdf", 20)},
	}

	worker := func(ctx context.Context, task Task) Result {
		if filepath.Base(task.Input) == "bad.pdf" {
			panic("exploding worker")
		}
		return OK(task.Input)
	}

	summary := Run(context.Background(), tasks, worker, Options{Stage: "test", Workers: 2})
	if summary.Count(StatusFailed) != 1 || summary.Count(StatusOK) != 1 {
		t.Fatalf("failed=%d ok=%d, want 1 and 1", summary.Count(StatusFailed), summary.Count(StatusOK))
	}
	for _, r := range summary.Results {
		if r.Status == StatusFailed && r.Message == "" {
			t.Error("failed result carries no message")
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	dir := t.TempDir()
	var tasks []Task
	for i := 0; i < 3; i++ {
		tasks = append(tasks, Task{Input: writeFile(t, dir, fmt.Sprintf("f%d.pdf", i), 10)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := Run(ctx, tasks, func(ctx context.Context, task Task) Result {
		return OK(task.Input)
	}, Options{Stage: "test", Workers: 1})

	if summary.Count(StatusOK) != 0 {
		t.Errorf("ok=%d on cancelled context, want 0", summary.Count(StatusOK))
	}
}

func TestSummaryCounts(t *testing.T) {
	s := Summary{Results: []Result{
		OK("a"), Partial("b", "compression skipped"), {File: "c", Status: StatusSkipped}, Failed("d", fmt.Errorf("boom")),
	}}
	if s.Count(StatusOK) != 1 || s.Count(StatusPartial) != 1 || s.Count(StatusSkipped) != 1 || s.Count(StatusFailed) != 1 {
		t.Errorf("counts wrong: %+v", s)
	}
	if s.Completed() != 2 {
		t.Errorf("Completed() = %d, want 2", s.Completed())
	}
}
