package llm

import (
	"context"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChainBackend adapts any langchaingo model. It serves both the OpenAI
// compatible API and a local Ollama runtime.
type ChainBackend struct {
	name     string
	model    string
	llm      llms.Model
	defaults Options
	timeout  time.Duration
}

func NewChainBackend(name string, model llms.Model, cfg config.LLMConfig) *ChainBackend {
	return &ChainBackend{
		name:     name,
		model:    cfg.Model,
		llm:      model,
		defaults: defaultOptions(cfg),
		timeout:  cfg.Timeout,
	}
}

// NewOpenAI connects to the OpenAI API, or to any compatible endpoint when
// cfg.BaseURL is set.
func NewOpenAI(cfg config.LLMConfig) (*ChainBackend, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewChainBackend(config.BackendOpenAI, model, cfg), nil
}

// NewOllama connects to a local Ollama server.
func NewOllama(cfg config.LLMConfig) (*ChainBackend, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	}
	if cfg.NumCtx > 0 {
		opts = append(opts, ollama.WithRunnerNumCtx(cfg.NumCtx))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewChainBackend(config.BackendLocal, model, cfg), nil
}

func (b *ChainBackend) Name() string  { return b.name }
func (b *ChainBackend) Model() string { return b.model }

func (b *ChainBackend) Generate(ctx context.Context, messages []Message, opts ...Option) (*Completion, error) {
	o := b.defaults.apply(opts)

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatRole(m.Role), m.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(o.Temperature)}
	if o.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(o.TopP))
	}
	if o.TopK > 0 {
		callOpts = append(callOpts, llms.WithTopK(o.TopK))
	}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.MaxTokens))
	}
	if o.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := b.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return nil, classify(b.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.KindUpstreamError, "The %s language model returned no choices", b.name)
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:    choice.Content,
		Backend: b.name,
		Model:   b.model,
		Usage: Usage{
			InputTokens:  intInfo(choice.GenerationInfo, "PromptTokens"),
			OutputTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
		},
	}, nil
}

func chatRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// intInfo reads a token count from GenerationInfo; providers disagree on
// the numeric type.
func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
