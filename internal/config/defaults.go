package config

// DefaultConfig returns the baseline configuration. Every threshold
// lives here so operators can tune bands per matter without a rebuild.
func DefaultConfig() *Config {
	return &Config{
		Bucket: "",
		Provider: ProviderCfg{
			Correction: "gemini",
			Gemini: GeminiCfg{
				ProjectID:   "${GOOGLE_CLOUD_PROJECT}",
				Region:      "us-central1",
				Model:       "gemini-2.0-flash",
				VisionModel: "gemini-2.0-flash",
				RateLimit:   1.0,
				MaxRetries:  3,
			},
			OpenAI: OpenAICfg{
				APIKey:    "${OPENAI_API_KEY}",
				Model:     "gpt-4o-mini",
				RateLimit: 2.0,
				Enabled:   false,
			},
		},
		Workers: WorkersCfg{
			IO:  5,
			CPU: 0, // one per core
		},
		Limits: LimitsCfg{
			ChunkPages:              80,
			LargeFileMB:             5,
			VisionBatchPages:        5,
			VisionMaxMB:             35,
			MinOCRTextChars:         100,
			CompressionMinReduction: 0.10,
		},
		Verify: VerifyCfg{
			PageTolerance:  2,
			MatchThreshold: 0.70,
			MinTextChars:   1000,
		},
		Repair: RepairCfg{
			EnhancedOCRBelow: 50,
			ReExtractBelow:   70,
			ReformatBelow:    80,
		},
	}
}

// LargeFileBytes converts the large-file limit to bytes.
func (c *Config) LargeFileBytes() int64 {
	return int64(c.Limits.LargeFileMB) << 20
}

// VisionMaxBytes converts the vision size limit to bytes.
func (c *Config) VisionMaxBytes() int64 {
	return int64(c.Limits.VisionMaxMB) << 20
}
