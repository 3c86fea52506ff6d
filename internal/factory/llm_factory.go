package factory

import (
	"fmt"

	"github.com/inboxkit/mail-triage/internal/adapters/bedrock"
	"github.com/inboxkit/mail-triage/internal/adapters/gemini"
	"github.com/inboxkit/mail-triage/internal/adapters/openai"
	"github.com/inboxkit/mail-triage/internal/config"
	"github.com/inboxkit/mail-triage/internal/core"
	"github.com/inboxkit/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates analyzer clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new analyzer factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAnalyzer creates a new analyzer based on the configuration
func (f *LLMFactory) CreateAnalyzer() (core.Analyzer, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
