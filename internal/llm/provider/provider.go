// Package provider builds the configured vision extractor.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm/anthropic"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm/openai"
)

// New returns the extractor named by cfg.Provider ("anthropic" when empty).
func New(cfg common.VisionConfig, logger *slog.Logger) (llm.VisionExtractor, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger), nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}, logger), nil
	}
	return nil, common.NewKindError(common.CodeConfiguration, fmt.Sprintf("unknown vision provider %q", cfg.Provider), nil)
}
