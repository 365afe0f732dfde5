package factory

import (
	"fmt"

	"github.com/quantoshi/hedgefolio/internal/advisor"
	"github.com/quantoshi/hedgefolio/internal/advisor/claude"
	"github.com/quantoshi/hedgefolio/internal/advisor/openai"
	"github.com/quantoshi/hedgefolio/internal/config"
)

// New creates an advisor provider based on configuration.
func New(cfg config.LLMConfig) (advisor.Provider, error) {
	switch cfg.Provider {
	case "claude":
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	default:
		return nil, fmt.Errorf("unknown advisor provider: %s", cfg.Provider)
	}
}
