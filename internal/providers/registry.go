package providers

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds the configured provider clients. Stages look up the
// corrector by name so the formatting provider can be switched in config
// without touching pipeline code.
type Registry struct {
	mu         sync.RWMutex
	correctors map[string]Corrector
	extractor  VisionExtractor
	metadata   MetadataClient
	logger     *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		correctors: make(map[string]Corrector),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterCorrector registers a text correction client by name.
func (r *Registry) RegisterCorrector(name string, c Corrector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.correctors[name] = c
	if r.logger != nil {
		r.logger.Info("registered corrector", "name", name)
	}
}

// SetVisionExtractor registers the vision extraction client.
func (r *Registry) SetVisionExtractor(e VisionExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractor = e
	if r.logger != nil && e != nil {
		r.logger.Info("registered vision extractor", "name", e.Name())
	}
}

// SetMetadataClient registers the naming metadata client.
func (r *Registry) SetMetadataClient(m MetadataClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = m
	if r.logger != nil && m != nil {
		r.logger.Info("registered metadata client", "name", m.Name())
	}
}

// Corrector returns a correction client by name.
func (r *Registry) Corrector(name string) (Corrector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.correctors[name]
	if !ok {
		return nil, fmt.Errorf("corrector not found: %s", name)
	}
	return c, nil
}

// VisionExtractor returns the registered extraction client, or an error
// when none is configured.
func (r *Registry) VisionExtractor() (VisionExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.extractor == nil {
		return nil, fmt.Errorf("no vision extractor configured")
	}
	return r.extractor, nil
}

// MetadataClient returns the registered metadata client, or an error
// when none is configured.
func (r *Registry) MetadataClient() (MetadataClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.metadata == nil {
		return nil, fmt.Errorf("no metadata client configured")
	}
	return r.metadata, nil
}

// ListCorrectors returns all registered corrector names.
func (r *Registry) ListCorrectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.correctors))
	for name := range r.correctors {
		names = append(names, name)
	}
	return names
}

// HasCorrector checks whether a corrector is registered.
func (r *Registry) HasCorrector(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.correctors[name]
	return ok
}
