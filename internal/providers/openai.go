package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for the OpenAI correction client.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	RateLimit  float64 // Requests per second
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIClient implements Corrector using the official OpenAI SDK.
type OpenAIClient struct {
	model      string
	rateLimit  float64
	maxRetries int
	retryDelay time.Duration

	client  openai.Client
	limiter *RateLimiter
}

// NewOpenAIClient creates a new OpenAI correction client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // retry handled here so the limiter sees every attempt
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:      cfg.Model,
		rateLimit:  cfg.RateLimit,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     openai.NewClient(opts...),
		limiter:    NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string { return OpenAIName }

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAIClient) RequestsPerSecond() float64 { return c.rateLimit }

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIClient) MaxRetries() int { return c.maxRetries }

// RetryDelayBase returns the base delay between retries.
func (c *OpenAIClient) RetryDelayBase() time.Duration { return c.retryDelay }

// CorrectChunk cleans one chunk of OCR text.
func (c *OpenAIClient) CorrectChunk(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("openai: correction text is required")
	}
	start := time.Now()

	prompt := fmt.Sprintf("Document: %s (part %d of %d)\n\n%s",
		req.DocName, req.ChunkIndex, req.ChunkCount, req.Text)

	var resp *openai.ChatCompletion
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			var callErr error
			resp, callErr = c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model: c.model,
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(correctionSystemPrompt),
					openai.UserMessage(prompt),
				},
				Temperature: openai.Float(0),
			})
			if callErr != nil {
				callErr = c.mapError(callErr)
			}
			return callErr
		},
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: correct chunk %d/%d of %s: %w",
			req.ChunkIndex, req.ChunkCount, req.DocName, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty correction response for %s chunk %d", req.DocName, req.ChunkIndex)
	}
	text := stripCodeFences(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("openai: empty correction response for %s chunk %d", req.DocName, req.ChunkIndex)
	}

	return &CorrectionResult{
		Text:             text,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		ExecutionTime:    time.Since(start),
		Provider:         OpenAIName,
		ModelUsed:        c.model,
		Attempts:         attempts,
	}, nil
}

// mapError converts SDK errors into package error types and records
// rate limit hits against the token bucket.
func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429()
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
	}
	return err
}

// parseRetryAfter interprets a Retry-After header value in seconds.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

var _ Corrector = (*OpenAIClient)(nil)
