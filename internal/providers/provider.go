package providers

import (
	"context"
	"fmt"
	"time"
)

// Corrector fixes OCR artifacts in a chunk of extracted text while
// preserving structural markers and page boundaries verbatim.
type Corrector interface {
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string

	// CorrectChunk cleans one chunk of extracted document text. The
	// returned text must keep every page marker line intact.
	CorrectChunk(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error)

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// VisionExtractor reads page text directly from PDF bytes using a
// multimodal model. Used when a PDF has no usable text layer.
type VisionExtractor interface {
	// Name returns the provider identifier.
	Name() string

	// ExtractPages returns the plain text of a contiguous page range.
	// startPage is 1-based and refers to the original document, so the
	// extractor can label output consistently across batches.
	ExtractPages(ctx context.Context, req *ExtractionRequest) (*ExtractionResult, error)
}

// MetadataClient infers document metadata from a text sample, used to
// build descriptive file names.
type MetadataClient interface {
	// Name returns the provider identifier.
	Name() string

	// InferMetadata reads a sample of page-one text and returns
	// structured metadata. Fields the model cannot determine are empty.
	InferMetadata(ctx context.Context, sample string) (*DocumentMetadata, error)
}

// DocumentMetadata is the structured result of metadata inference.
type DocumentMetadata struct {
	Date        string `json:"date"`        // YYYYMMDD or empty
	Party       string `json:"party"`       // Filing party, if identifiable
	Case        string `json:"case"`        // Case name or number
	Description string `json:"description"` // Short document description
}

// CorrectionRequest asks a Corrector to clean one chunk of text.
type CorrectionRequest struct {
	// Text is the chunk content, including any page marker lines.
	Text string

	// DocName identifies the source document for logging.
	DocName string

	// ChunkIndex and ChunkCount locate this chunk within the document
	// (1-based). Both are 1 for single-chunk documents.
	ChunkIndex int
	ChunkCount int
}

// CorrectionResult is the response from a correction call.
type CorrectionResult struct {
	Text string

	// Token counts
	PromptTokens     int
	CompletionTokens int

	// Timing
	ExecutionTime time.Duration

	Provider  string
	ModelUsed string
	Attempts  int
}

// ExtractionRequest asks a VisionExtractor to read a PDF page range.
type ExtractionRequest struct {
	// PDF holds the trimmed document bytes covering only the requested
	// range.
	PDF []byte

	// StartPage is the 1-based number of the first page in PDF within
	// the original document.
	StartPage int

	// PageCount is how many pages PDF contains.
	PageCount int

	// DocName identifies the source document for logging.
	DocName string
}

// ExtractionResult is the response from a vision extraction call.
type ExtractionResult struct {
	// Pages holds extracted text in page order, one entry per page of
	// the request.
	Pages []string

	ExecutionTime time.Duration
	Provider      string
	ModelUsed     string
}

// RateLimitError indicates the provider returned a 429 response.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}
