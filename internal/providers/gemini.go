package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/avast/retry-go/v4"
)

const (
	GeminiName               = "gemini"
	geminiDefaultModel       = "gemini-2.0-flash"
	geminiDefaultVisionModel = "gemini-2.0-flash"
)

const correctionSystemPrompt = `You are an expert legal document editor. You receive text extracted from scanned court filings by OCR. Fix OCR artifacts: broken words, misrecognized characters, garbled punctuation, and stray line breaks inside sentences. Preserve the original wording, legal citations, numbering, and layout as closely as possible. Never summarize, never add content, never translate.

Lines of the form [BEGIN PDF Page N] are page markers. Reproduce every marker line exactly as given, in the same position relative to the surrounding text. Do not add, remove, or renumber markers.

Return ONLY the corrected text. No preamble, no code fences.`

const visionSystemPrompt = `You are a document transcription tool. You receive a PDF of scanned legal filing pages. Transcribe the full text of every page in order, exactly as printed, including headings, captions, numbering, and signature blocks. Do not summarize or omit content.

Begin each page's transcription with a line containing only the token @@PAGE@@ and nothing else. Output nothing before the first @@PAGE@@ line.`

const metadataSystemPrompt = `You analyze the first page of a legal document and return metadata as JSON with exactly these keys: "date" (the document's filing or signature date as YYYYMMDD, or "" if none is visible), "party" (the filing party, or ""), "case" (case name or number, or ""), "description" (a short descriptive title for the document, under 8 words). Return only the JSON object.`

// GeminiConfig holds configuration for the Vertex AI Gemini client.
type GeminiConfig struct {
	ProjectID   string
	Region      string
	Model       string  // Text correction and metadata model
	VisionModel string  // PDF transcription model
	RateLimit   float64 // Requests per second
	MaxRetries  int
	RetryDelay  time.Duration
}

// GeminiClient implements Corrector, VisionExtractor, and MetadataClient
// against Vertex AI.
type GeminiClient struct {
	model       string
	visionModel string
	rateLimit   float64
	maxRetries  int
	retryDelay  time.Duration

	client  *genai.Client
	limiter *RateLimiter
}

// NewGeminiClient dials Vertex AI and returns a ready client. Callers
// own Close.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gemini: project ID is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = geminiDefaultVisionModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 3 * time.Second
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("gemini: dial vertex: %w", err)
	}

	return &GeminiClient{
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		rateLimit:   cfg.RateLimit,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      client,
		limiter:     NewRateLimiter(cfg.RateLimit),
	}, nil
}

// Close releases the underlying Vertex AI connection.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Name returns the provider identifier.
func (c *GeminiClient) Name() string { return GeminiName }

// RequestsPerSecond returns the configured rate limit.
func (c *GeminiClient) RequestsPerSecond() float64 { return c.rateLimit }

// MaxRetries returns the maximum retry attempts.
func (c *GeminiClient) MaxRetries() int { return c.maxRetries }

// RetryDelayBase returns the base delay between retries.
func (c *GeminiClient) RetryDelayBase() time.Duration { return c.retryDelay }

// CorrectChunk cleans one chunk of OCR text.
func (c *GeminiClient) CorrectChunk(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("gemini: correction text is required")
	}
	start := time.Now()

	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(correctionSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	prompt := fmt.Sprintf("Document: %s (part %d of %d)\n\n%s",
		req.DocName, req.ChunkIndex, req.ChunkCount, req.Text)

	var resp *genai.GenerateContentResponse
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			var callErr error
			resp, callErr = model.GenerateContent(ctx, genai.Text(prompt))
			return callErr
		},
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: correct chunk %d/%d of %s: %w",
			req.ChunkIndex, req.ChunkCount, req.DocName, err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini: empty correction response for %s chunk %d", req.DocName, req.ChunkIndex)
	}

	result := &CorrectionResult{
		Text:          text,
		ExecutionTime: time.Since(start),
		Provider:      GeminiName,
		ModelUsed:     c.model,
		Attempts:      attempts,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// ExtractPages transcribes a PDF page range with the vision model.
func (c *GeminiClient) ExtractPages(ctx context.Context, req *ExtractionRequest) (*ExtractionResult, error) {
	if req == nil || len(req.PDF) == 0 {
		return nil, fmt.Errorf("gemini: extraction PDF is required")
	}
	if req.PageCount <= 0 {
		return nil, fmt.Errorf("gemini: extraction page count must be positive")
	}
	start := time.Now()

	model := c.client.GenerativeModel(c.visionModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(visionSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	pdfPart := genai.Blob{MIMEType: "application/pdf", Data: req.PDF}
	prompt := genai.Text(fmt.Sprintf(
		"This PDF contains %d pages. Transcribe each one.", req.PageCount))

	var resp *genai.GenerateContentResponse
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			var callErr error
			resp, callErr = model.GenerateContent(ctx, pdfPart, prompt)
			return callErr
		},
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: extract pages %d-%d of %s: %w",
			req.StartPage, req.StartPage+req.PageCount-1, req.DocName, err)
	}

	pages, err := splitTranscription(responseText(resp), req.PageCount)
	if err != nil {
		return nil, fmt.Errorf("gemini: pages %d-%d of %s: %w",
			req.StartPage, req.StartPage+req.PageCount-1, req.DocName, err)
	}

	return &ExtractionResult{
		Pages:         pages,
		ExecutionTime: time.Since(start),
		Provider:      GeminiName,
		ModelUsed:     c.visionModel,
	}, nil
}

// InferMetadata extracts naming metadata from a page-one text sample.
func (c *GeminiClient) InferMetadata(ctx context.Context, sample string) (*DocumentMetadata, error) {
	if strings.TrimSpace(sample) == "" {
		return nil, fmt.Errorf("gemini: metadata sample is required")
	}

	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(metadataSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	var resp *genai.GenerateContentResponse
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			var callErr error
			resp, callErr = model.GenerateContent(ctx, genai.Text(sample))
			return callErr
		},
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: infer metadata: %w", err)
	}

	raw := stripCodeFences(responseText(resp))
	if err := ValidateMetadataJSON([]byte(raw)); err != nil {
		return nil, fmt.Errorf("gemini: metadata response: %w", err)
	}
	var meta DocumentMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("gemini: decode metadata: %w", err)
	}
	return &meta, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return stripCodeFences(b.String())
}

// stripCodeFences removes a wrapping markdown fence the model sometimes
// adds despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```markdown", "```text", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			s = strings.TrimSuffix(strings.TrimSpace(s), "```")
			break
		}
	}
	return strings.TrimSpace(s)
}

const pageToken = "@@PAGE@@"

// splitTranscription divides a vision response into per-page text using
// the page token the prompt requires.
func splitTranscription(text string, want int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty transcription response")
	}
	parts := strings.Split(text, pageToken)
	// Anything before the first token is preamble the model was told
	// not to emit. Drop it.
	if len(parts) > 0 {
		parts = parts[1:]
	}
	if len(parts) != want {
		return nil, fmt.Errorf("transcription returned %d pages, want %d", len(parts), want)
	}
	pages := make([]string, len(parts))
	for i, p := range parts {
		pages[i] = strings.TrimSpace(p)
	}
	return pages, nil
}

var _ Corrector = (*GeminiClient)(nil)
var _ VisionExtractor = (*GeminiClient)(nil)
var _ MetadataClient = (*GeminiClient)(nil)
