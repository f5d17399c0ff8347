package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens estimates the token count of text with the cl100k encoding.
// When the encoding cannot be loaded it falls back to four bytes per token.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return (len(text) + 3) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// CountMessages sums CountTokens over every message.
func CountMessages(messages []Message) int {
	var n int
	for _, m := range messages {
		n += CountTokens(m.Content)
	}
	return n
}
