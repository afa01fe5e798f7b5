package providers

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a configurable in-memory provider for tests. It
// implements all three provider interfaces.
type MockProvider struct {
	mu sync.Mutex

	// CorrectFunc overrides correction behavior. When nil, CorrectChunk
	// echoes the input text.
	CorrectFunc func(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error)

	// ExtractFunc overrides extraction behavior. When nil, ExtractPages
	// returns empty pages.
	ExtractFunc func(ctx context.Context, req *ExtractionRequest) (*ExtractionResult, error)

	// MetadataFunc overrides metadata inference. When nil, InferMetadata
	// returns an empty DocumentMetadata.
	MetadataFunc func(ctx context.Context, sample string) (*DocumentMetadata, error)

	// Recorded calls
	CorrectCalls  []CorrectionRequest
	ExtractCalls  []ExtractionRequest
	MetadataCalls []string
}

// NewMockProvider returns a mock with default behaviors.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) RequestsPerSecond() float64    { return 1000 }
func (m *MockProvider) MaxRetries() int               { return 1 }
func (m *MockProvider) RetryDelayBase() time.Duration { return time.Millisecond }

func (m *MockProvider) CorrectChunk(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error) {
	m.mu.Lock()
	m.CorrectCalls = append(m.CorrectCalls, *req)
	fn := m.CorrectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &CorrectionResult{Text: req.Text, Provider: m.Name(), Attempts: 1}, nil
}

func (m *MockProvider) ExtractPages(ctx context.Context, req *ExtractionRequest) (*ExtractionResult, error) {
	m.mu.Lock()
	m.ExtractCalls = append(m.ExtractCalls, *req)
	fn := m.ExtractFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &ExtractionResult{Pages: make([]string, req.PageCount), Provider: m.Name()}, nil
}

func (m *MockProvider) InferMetadata(ctx context.Context, sample string) (*DocumentMetadata, error) {
	m.mu.Lock()
	m.MetadataCalls = append(m.MetadataCalls, sample)
	fn := m.MetadataFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, sample)
	}
	return &DocumentMetadata{}, nil
}

var _ Corrector = (*MockProvider)(nil)
var _ VisionExtractor = (*MockProvider)(nil)
var _ MetadataClient = (*MockProvider)(nil)
