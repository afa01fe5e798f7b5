// Package repair turns verification findings into corrective actions:
// from targeted page re-correction up to a full re-OCR of the original
// scan, choosing the cheapest strategy the issues allow.
package repair

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/verify"
)

// Action identifies the strategy applied to a document.
type Action string

const (
	ActionNone          Action = "none"
	ActionTargetedPages Action = "targeted_pages"
	ActionEnhancedOCR   Action = "enhanced_ocr"
	ActionReExtract     Action = "re_extract"
	ActionReFormat      Action = "re_format"
	ActionPatchHeaders  Action = "patch_headers"
	ActionReUpload      Action = "re_upload"
)

// Operations are the pipeline capabilities the engine drives. The
// pipeline package implements this against its stages.
type Operations interface {
	// EnhancedOCR rebuilds the clean PDF from the renamed original with
	// the aggressive OCR profile, then re-extracts and re-formats.
	EnhancedOCR(ctx context.Context, base string) error

	// ReExtract rebuilds the extracted text from the clean PDF, then
	// re-formats.
	ReExtract(ctx context.Context, base string) error

	// ReFormat rebuilds the formatted artifact from the extracted text.
	ReFormat(ctx context.Context, base string) error

	// CorrectPages re-corrects only the named pages of the formatted
	// artifact, splicing results back without touching other pages.
	CorrectPages(ctx context.Context, base string, pages []int) error

	// ReUpload pushes the document to cloud storage again and patches
	// the location headers.
	ReUpload(ctx context.Context, base string) error

	// PatchHeaders rewrites the directory and link header lines of the
	// text artifacts in place.
	PatchHeaders(ctx context.Context, base string) error
}

// Plan is the decided strategy for one document.
type Plan struct {
	Action Action
	Pages  []int // set for ActionTargetedPages
}

// Result records what happened to one document.
type Result struct {
	File     string `json:"file"`
	Action   Action `json:"action"`
	Fellback bool   `json:"fell_back,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Engine repairs documents based on their verification reports.
type Engine struct {
	ops    Operations
	cfg    config.RepairCfg
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(ops Operations, cfg config.RepairCfg, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ops: ops, cfg: cfg, logger: logger}
}

// Decide maps a file's issues to a repair plan. Precedence: accuracy
// problems first (they invalidate everything downstream), then marker
// structure, then header content, then cloud placement. Within
// accuracy, comparator-named pages win: splicing just those pages is
// cheaper and safer than rebuilding a document that is mostly fine.
func Decide(report verify.FileReport, cfg config.RepairCfg) Plan {
	var (
		pageNums    []int
		docAccuracy = -1.0
		hasAccuracy bool
		hasMarker   bool
		hasHeader   bool
		hasCloud    bool
	)
	for _, issue := range report.Issues {
		switch issue.Category {
		case verify.CategoryLowAccuracy:
			hasAccuracy = true
			if issue.Page > 0 {
				pageNums = append(pageNums, issue.Page)
			} else {
				docAccuracy = issue.Percent
			}
		case verify.CategoryPageCount, verify.CategoryPageOneMarker:
			hasMarker = true
		case verify.CategoryHeaderMissing, verify.CategoryHeaderMismatch:
			hasHeader = true
		case verify.CategoryCloudMissing:
			hasCloud = true
		}
	}

	if hasAccuracy {
		if len(pageNums) > 0 {
			return Plan{Action: ActionTargetedPages, Pages: pageNums}
		}
		switch {
		case docAccuracy < 0:
			return Plan{Action: ActionReFormat}
		case docAccuracy < cfg.EnhancedOCRBelow:
			return Plan{Action: ActionEnhancedOCR}
		case docAccuracy < cfg.ReExtractBelow:
			return Plan{Action: ActionReExtract}
		case docAccuracy < cfg.ReformatBelow:
			return Plan{Action: ActionReFormat}
		}
		// At or above the re-format band the text is close enough to
		// passing that any remaining issue classes decide instead.
	}

	switch {
	case hasMarker:
		return Plan{Action: ActionReFormat}
	case hasHeader && !hasCloud:
		return Plan{Action: ActionPatchHeaders}
	case hasCloud:
		return Plan{Action: ActionReUpload}
	case !hasAccuracy && len(report.Issues) > 0:
		return Plan{Action: ActionReFormat}
	default:
		return Plan{Action: ActionNone}
	}
}

// RepairFile executes the decided plan for one document. A failed
// targeted page repair falls back to a full re-format.
func (e *Engine) RepairFile(ctx context.Context, report verify.FileReport) Result {
	base := layout.BaseName(report.File)
	plan := Decide(report, e.cfg)
	result := Result{File: report.File, Action: plan.Action}

	e.logger.Info("repairing document", "file", report.File, "action", plan.Action, "pages", plan.Pages)

	var err error
	switch plan.Action {
	case ActionNone:
		return result
	case ActionTargetedPages:
		err = e.ops.CorrectPages(ctx, base, plan.Pages)
		if err != nil {
			e.logger.Warn("targeted page repair failed, re-formatting whole document",
				"file", report.File, "error", err)
			result.Fellback = true
			err = e.ops.ReFormat(ctx, base)
		}
	case ActionEnhancedOCR:
		err = e.ops.EnhancedOCR(ctx, base)
	case ActionReExtract:
		err = e.ops.ReExtract(ctx, base)
	case ActionReFormat:
		err = e.ops.ReFormat(ctx, base)
	case ActionPatchHeaders:
		err = e.ops.PatchHeaders(ctx, base)
	case ActionReUpload:
		err = e.ops.ReUpload(ctx, base)
	default:
		err = fmt.Errorf("unknown repair action %q", plan.Action)
	}

	if err != nil {
		result.Err = err.Error()
		e.logger.Error("repair failed", "file", report.File, "action", plan.Action, "error", err)
	}
	return result
}

// RepairAll runs every file in a verification report that needs work.
func (e *Engine) RepairAll(ctx context.Context, run *verify.RunReport) []Result {
	var results []Result
	for _, f := range run.Files {
		select {
		case <-ctx.Done():
			return results
		default:
		}
		if len(f.Issues) == 0 {
			continue
		}
		results = append(results, e.RepairFile(ctx, f))
	}
	return results
}
