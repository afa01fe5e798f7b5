package stages

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jackzampolin/docket/internal/executor"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/verify"
)

// Verify compares formatted artifacts against their source PDFs and
// persists the verification report, manifests, and structured issues
// for the repair engine.
type Verify struct{}

func (s *Verify) Name() string           { return "verify" }
func (s *Verify) Dependencies() []string { return []string{"format"} }
func (s *Verify) Description() string {
	return "verify formatted documents against their PDFs"
}

func (s *Verify) Preflight(env *pipeline.Env) error {
	if err := lookTools("pdfinfo", "pdftotext"); err != nil {
		return err
	}
	if env.Cloud == nil {
		env.Logger.Warn("no bucket configured; cloud checks disabled")
	}
	return nil
}

func (s *Verify) Run(ctx context.Context, env *pipeline.Env) (executor.Summary, error) {
	summary := executor.Summary{RunID: uuid.New().String(), Stage: s.Name()}

	report, err := RunVerification(ctx, env)
	if err != nil {
		return summary, err
	}

	for _, f := range report.Files {
		r := executor.Result{File: f.File}
		switch f.Status {
		case verify.StatusOK:
			r.Status = executor.StatusOK
		case verify.StatusWarning:
			r.Status = executor.StatusPartial
			r.Message = fmt.Sprintf("%d issues", len(f.Issues))
		default:
			r.Status = executor.StatusFailed
			r.Message = fmt.Sprintf("%d issues", len(f.Issues))
		}
		summary.Results = append(summary.Results, r)
	}
	return summary, nil
}

// RunVerification runs the comparator over the case folder and writes
// the report artifacts. Shared by the verify stage and the standalone
// verify command.
func RunVerification(ctx context.Context, env *pipeline.Env) (*verify.RunReport, error) {
	var cloud verify.CloudChecker
	if env.Cloud != nil {
		cloud = env.Cloud
	}
	verifier := verify.NewVerifier(env.Poppler, cloud, env.Cfg.Verify, env.Logger)

	report, err := verifier.VerifyFolder(ctx, env.Root)
	if err != nil {
		return nil, err
	}

	issuesPath, err := verify.WriteArtifacts(env.Root, report)
	if err != nil {
		return nil, fmt.Errorf("writing verification artifacts: %w", err)
	}
	ok, warn, failed := report.Counts()
	env.Logger.Info("verification complete",
		"ok", ok, "warning", warn, "failed", failed,
		"issues_file", issuesPath, "folder", env.Root.Dir(layout.LogsDir))
	return report, nil
}
