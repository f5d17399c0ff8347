// Package llmtest provides a scripted llm.Backend for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/RichardoC/lms-chat/internal/llm"
)

// Reply is one scripted answer. When Err is set it is returned instead.
type Reply struct {
	Text string
	Err  error
}

// Backend returns its replies in order and repeats the last one once the
// script runs out. Respond, when set, takes precedence over the script.
type Backend struct {
	Replies []Reply
	Respond func(messages []llm.Message) (string, error)

	mu    sync.Mutex
	calls [][]llm.Message
}

func (b *Backend) Name() string  { return "fake" }
func (b *Backend) Model() string { return "fake-model" }

func (b *Backend) Generate(ctx context.Context, messages []llm.Message, _ ...llm.Option) (*llm.Completion, error) {
	b.mu.Lock()
	n := len(b.calls)
	b.calls = append(b.calls, messages)
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var text string
	var err error
	switch {
	case b.Respond != nil:
		text, err = b.Respond(messages)
	case len(b.Replies) == 0:
		text = "ok"
	default:
		r := b.Replies[min(n, len(b.Replies)-1)]
		text, err = r.Text, r.Err
	}
	if err != nil {
		return nil, err
	}
	return &llm.Completion{
		Text:    text,
		Backend: b.Name(),
		Model:   b.Model(),
		Usage:   llm.Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

// Calls returns how many times Generate ran.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Last returns the messages of the most recent call.
func (b *Backend) Last() []llm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		return nil
	}
	return b.calls[len(b.calls)-1]
}
