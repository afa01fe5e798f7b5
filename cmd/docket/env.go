package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/docket/internal/config"
	"github.com/jackzampolin/docket/internal/gcs"
	"github.com/jackzampolin/docket/internal/layout"
	"github.com/jackzampolin/docket/internal/ocr"
	"github.com/jackzampolin/docket/internal/pipeline"
	"github.com/jackzampolin/docket/internal/providers"
)

// buildEnv assembles the shared stage environment for one case folder.
// The returned closer releases the provider and storage clients.
func buildEnv(ctx context.Context, cfg *config.Config, logger *slog.Logger, folder string, force bool) (*pipeline.Env, func(), error) {
	root, err := layout.New(folder)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	reg := providers.NewRegistry()
	reg.SetLogger(logger)

	if projectID := config.ResolveEnvVars(cfg.Provider.Gemini.ProjectID); projectID != "" {
		gemini, err := providers.NewGeminiClient(ctx, providers.GeminiConfig{
			ProjectID:   projectID,
			Region:      cfg.Provider.Gemini.Region,
			Model:       cfg.Provider.Gemini.Model,
			VisionModel: cfg.Provider.Gemini.VisionModel,
			RateLimit:   cfg.Provider.Gemini.RateLimit,
			MaxRetries:  cfg.Provider.Gemini.MaxRetries,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = gemini.Close() })
		reg.RegisterCorrector(providers.GeminiName, gemini)
		reg.SetVisionExtractor(gemini)
		reg.SetMetadataClient(gemini)
	}

	if cfg.Provider.OpenAI.Enabled {
		if apiKey := config.ResolveEnvVars(cfg.Provider.OpenAI.APIKey); apiKey != "" {
			reg.RegisterCorrector(providers.OpenAIName, providers.NewOpenAIClient(providers.OpenAIConfig{
				APIKey:    apiKey,
				Model:     cfg.Provider.OpenAI.Model,
				RateLimit: cfg.Provider.OpenAI.RateLimit,
			}))
		}
	}

	env := &pipeline.Env{
		Root:      root,
		Cfg:       cfg,
		Logger:    logger,
		Providers: reg,
		OCR:       ocr.NewOCREngine(ocr.OCRConfig{}),
		Compressor: ocr.NewCompressor(ocr.CompressorConfig{
			MinReduction: cfg.Limits.CompressionMinReduction,
		}),
		Poppler: ocr.NewPoppler(ocr.PopplerConfig{
			FullTimeout: 5 * time.Minute,
		}),
		Force: force,
	}

	if bucket := config.ResolveEnvVars(cfg.Bucket); bucket != "" {
		cloud, err := gcs.NewClient(ctx, bucket, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = cloud.Close() })
		env.Cloud = cloud
	}

	return env, closeAll, nil
}

// loadConfig loads configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}
