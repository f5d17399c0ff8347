package llm

import (
	"context"
	"fmt"

	"github.com/RichardoC/lms-chat/internal/config"
)

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg config.LLMConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendOpenAI:
		return NewOpenAI(cfg)
	case config.BackendLocal:
		return NewOllama(cfg)
	case config.BackendGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
