package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/config"
	"google.golang.org/genai"
)

// GeminiBackend calls the Google Gemini API.
type GeminiBackend struct {
	client   *genai.Client
	model    string
	defaults Options
	timeout  time.Duration
}

func NewGemini(ctx context.Context, cfg config.LLMConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiBackend{
		client:   client,
		model:    model,
		defaults: defaultOptions(cfg),
		timeout:  cfg.Timeout,
	}, nil
}

func (b *GeminiBackend) Name() string  { return config.BackendGemini }
func (b *GeminiBackend) Model() string { return b.model }

func (b *GeminiBackend) Generate(ctx context.Context, messages []Message, opts ...Option) (*Completion, error) {
	o := b.defaults.apply(opts)

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	contents, system := toGenAI(messages)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(o.Temperature)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if o.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(o.TopP))
	}
	if o.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(o.TopK))
	}
	if o.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(o.MaxTokens)
	}
	if o.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		return nil, classify(config.BackendGemini, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, apperr.New(apperr.KindUpstreamError, "The gemini language model returned no candidates")
	}

	completion := &Completion{
		Text:    resp.Text(),
		Backend: config.BackendGemini,
		Model:   b.model,
	}
	if resp.UsageMetadata != nil {
		completion.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return completion, nil
}

// toGenAI splits system messages into one system instruction and maps the
// rest onto Gemini's user/model roles.
func toGenAI(messages []Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}
