package naming

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackzampolin/docket/internal/providers"
)

// CompilationPrefix marks exhibit compilations, which are filed by the
// responding party and carry no single document date.
const CompilationPrefix = "RR_"

// metadataSampleLen bounds how much page-one text is sent for metadata
// inference.
const metadataSampleLen = 2000

var inferredDateRe = regexp.MustCompile(`^\d{8}$`)

// Resolver derives the canonical base name for a document. The date
// comes from the filename when one of the known patterns matches, and
// otherwise from metadata inference over the first page's text.
type Resolver struct {
	metadata providers.MetadataClient
	logger   *slog.Logger
}

// NewResolver creates a Resolver. metadata may be nil, in which case
// names that carry no recognizable date stay undated.
func NewResolver(metadata providers.MetadataClient, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{metadata: metadata, logger: logger}
}

// Resolve returns the renamed base for a document. original is the raw
// base name (extension and stage suffix already stripped); pageOneText
// is the extracted text of the first page and may be empty when no text
// layer exists yet.
func (r *Resolver) Resolve(ctx context.Context, original, pageOneText string) string {
	cleaned := CleanFileName(original)

	if IsCompilation(original) {
		return CompilationPrefix + cleaned
	}
	if HasDatePrefix(cleaned) {
		return cleaned
	}
	if date, ok := DateFromFileName(original); ok {
		return date + "_" + cleaned
	}

	if date := r.inferDate(ctx, original, pageOneText); date != "" {
		return date + "_" + cleaned
	}
	return cleaned
}

// inferDate asks the metadata client for a document date. Any failure
// degrades to an empty date rather than blocking the rename.
func (r *Resolver) inferDate(ctx context.Context, original, pageOneText string) string {
	if r.metadata == nil {
		return ""
	}
	sample := strings.TrimSpace(pageOneText)
	if sample == "" {
		return ""
	}
	if len(sample) > metadataSampleLen {
		sample = sample[:metadataSampleLen]
	}

	meta, err := r.metadata.InferMetadata(ctx, sample)
	if err != nil {
		r.logger.Warn("metadata inference failed, naming without date",
			"file", original, "error", err)
		return ""
	}
	if !inferredDateRe.MatchString(meta.Date) {
		if meta.Date != "" {
			r.logger.Warn("metadata returned malformed date, ignoring",
				"file", original, "date", meta.Date)
		}
		return ""
	}
	return meta.Date
}
