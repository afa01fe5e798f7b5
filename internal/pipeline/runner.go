package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackzampolin/docket/internal/executor"
)

// StageReport pairs a stage with the summary of its batch.
type StageReport struct {
	Stage    string           `json:"stage"`
	Summary  executor.Summary `json:"summary"`
	Err      string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// RunReport aggregates one full pass over a case folder.
type RunReport struct {
	Folder  string        `json:"folder"`
	Started time.Time     `json:"started"`
	Stages  []StageReport `json:"stages"`
}

// Failed reports whether any stage returned a stage-level error.
func (r *RunReport) Failed() bool {
	for _, s := range r.Stages {
		if s.Err != "" {
			return true
		}
	}
	return false
}

// Runner executes registered stages in dependency order.
type Runner struct {
	registry *Registry
}

// NewRunner wraps a validated registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

// Preflight checks the case folder and each selected stage's external
// requirements before any stage runs. Failures here are fatal for the
// whole pass.
func (r *Runner) Preflight(env *Env, stages []Stage) error {
	if err := env.Root.EnsureExists(); err != nil {
		return fmt.Errorf("preparing case folder: %w", err)
	}
	for _, stage := range stages {
		p, ok := stage.(Preflighter)
		if !ok {
			continue
		}
		if err := p.Preflight(env); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
	}
	return nil
}

// Run executes the named stages, or every registered stage when names is
// empty, in dependency order. A stage-level error is recorded and the
// pass continues with the next stage; an interrupt abandons the current
// stage only, and a second interrupt aborts the pass.
func (r *Runner) Run(ctx context.Context, env *Env, names ...string) (*RunReport, error) {
	stages, err := r.resolve(names)
	if err != nil {
		return nil, err
	}
	if err := r.Preflight(env, stages); err != nil {
		return nil, err
	}

	report := &RunReport{Folder: env.Root.Path(), Started: time.Now()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	for _, stage := range stages {
		if runCtx.Err() != nil {
			break
		}

		stageCtx, cancelStage := context.WithCancel(runCtx)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-sigCh:
					if stageCtx.Err() != nil {
						env.Logger.Warn("second interrupt, aborting run")
						cancelRun()
						return
					}
					env.Logger.Warn("interrupt: abandoning current stage", "stage", stage.Name())
					cancelStage()
				case <-done:
					return
				}
			}
		}()

		env.Logger.Info("stage starting", "stage", stage.Name())
		start := time.Now()
		summary, err := stage.Run(stageCtx, env)

		close(done)
		cancelStage()

		sr := StageReport{Stage: stage.Name(), Summary: summary, Duration: time.Since(start)}
		if err != nil {
			sr.Err = err.Error()
			env.Logger.Error("stage failed", "stage", stage.Name(), "error", err)
		}
		report.Stages = append(report.Stages, sr)
	}

	return report, nil
}

// resolve returns the stages to run in dependency order. Named stages
// pull in their transitive dependencies.
func (r *Runner) resolve(names []string) ([]Stage, error) {
	ordered, err := r.registry.GetOrdered()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return ordered, nil
	}

	wanted := make(map[string]bool)
	var mark func(name string) error
	mark = func(name string) error {
		if wanted[name] {
			return nil
		}
		stage, ok := r.registry.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrStageNotFound, name)
		}
		wanted[name] = true
		for _, dep := range stage.Dependencies() {
			if err := mark(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := mark(name); err != nil {
			return nil, err
		}
	}

	var selected []Stage
	for _, stage := range ordered {
		if wanted[stage.Name()] {
			selected = append(selected, stage)
		}
	}
	return selected, nil
}
