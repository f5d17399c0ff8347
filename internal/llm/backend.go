// Package llm wraps the supported inference backends behind one interface so
// the chat loop does not care which provider produced the text.
package llm

import (
	"context"
	"errors"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/config"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

type Completion struct {
	Text    string `json:"text"`
	Backend string `json:"backend"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Backend generates one completion for a list of messages.
type Backend interface {
	Name() string
	Model() string
	Generate(ctx context.Context, messages []Message, opts ...Option) (*Completion, error)
}

// Options are the sampling parameters of one call. Zero values mean "use
// the backend default".
type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	JSON        bool
}

type Option func(*Options)

func WithTemperature(t float64) Option { return func(o *Options) { o.Temperature = t } }

func WithTopP(p float64) Option { return func(o *Options) { o.TopP = p } }

func WithTopK(k int) Option { return func(o *Options) { o.TopK = k } }

func WithMaxTokens(n int) Option { return func(o *Options) { o.MaxTokens = n } }

// WithJSON asks the backend for a JSON object response.
func WithJSON() Option { return func(o *Options) { o.JSON = true } }

func defaultOptions(cfg config.LLMConfig) Options {
	return Options{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		MaxTokens:   cfg.MaxTokens,
	}
}

func (o Options) apply(opts []Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// classify turns a provider error into the shared taxonomy.
func classify(backend string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if apperr.IsTimeout(err) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, err, "The language model did not respond in time")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Wrap(apperr.KindUpstreamError, err, "The %s language model returned an error", backend)
}
