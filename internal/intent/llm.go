package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/llm"
	"github.com/RichardoC/lms-chat/internal/tools"
	"go.uber.org/zap"
)

const (
	historyWindow  = 6
	maxResultChars = 1500
)

// LLMSelector lets the configured backend pick the operation.
type LLMSelector struct {
	backend   llm.Backend
	timeout   time.Duration
	threshold float64
	logger    *zap.Logger
}

func NewLLMSelector(backend llm.Backend, timeout time.Duration, threshold float64, logger *zap.Logger) *LLMSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMSelector{backend: backend, timeout: timeout, threshold: threshold, logger: logger}
}

type decision struct {
	Action     string         `json:"action"` // "tool" or "respond"
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Confidence float64        `json:"confidence"`
	Content    string         `json:"content"`
}

type toolSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  tools.Schema `json:"parameters"`
}

const selectorPrompt = `You are the assistant of a Canvas LMS. The user is a %s.
Decide whether the latest user message needs one of the operations below.

Operations (JSON):
%s
%s
Respond with ONLY a JSON object, no markdown:
{
	"action": "tool|respond",
	"tool": "operation name when action is tool",
	"arguments": {"argument": "value"},
	"confidence": 0.0-1.0,
	"content": "your reply to the user when action is respond"
}

Rules:
- Use "tool" only for an operation listed above, with arguments you know from the conversation.
- Leave out arguments you do not know; never invent ids.
- When results are already shown above, use "respond" and answer from them.
- Use "respond" for greetings and general questions.`

func (s *LLMSelector) Select(ctx context.Context, q Query) (Outcome, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	completion, err := s.backend.Generate(ctx, s.messages(q), llm.WithJSON(), llm.WithTemperature(0.1))
	if err != nil {
		return Outcome{}, err
	}

	d, err := parseDecision(completion.Text)
	if err != nil {
		s.logger.Warn("unparseable selector reply", zap.String("raw", completion.Text), zap.Error(err))
		return Outcome{}, err
	}

	action := strings.ToLower(d.Action)
	if action == "" && d.Tool != "" {
		action = "tool"
	}
	switch action {
	case "respond", "reply", "":
		return Outcome{Decision: NoTool, Draft: d.Content, Confidence: d.Confidence, Source: "llm"}, nil
	case "tool", "tool_call", "call":
	default:
		return Outcome{}, apperr.New(apperr.KindValidation, "selector returned unknown action %q", d.Action)
	}

	def := q.lookup(d.Tool)
	if def == nil {
		return Outcome{}, apperr.New(apperr.KindValidation, "selector chose unknown tool %q", d.Tool)
	}
	if d.Confidence < s.threshold {
		s.logger.Info("tool decision below threshold",
			zap.String("tool", d.Tool),
			zap.Float64("confidence", d.Confidence))
		return Outcome{Decision: NoTool, Draft: d.Content, Confidence: d.Confidence, Source: "llm"}, nil
	}
	return resolve(def, tools.Args(d.Arguments), d.Confidence, "llm"), nil
}

func (s *LLMSelector) messages(q Query) []llm.Message {
	specs := make([]toolSpec, 0, len(q.Tools))
	for _, def := range q.Tools {
		specs = append(specs, toolSpec{Name: def.Name, Description: def.Description, Parameters: def.Params})
	}
	catalog, _ := json.MarshalIndent(specs, "", "  ")

	var results strings.Builder
	if len(q.Results) > 0 {
		results.WriteString("\nResults already gathered in this turn:\n")
		for _, r := range q.Results {
			fmt.Fprintf(&results, "- %s %s: %s\n", r.Call.Name, r.Call.Args.Canonical(), describeResult(r))
		}
	}

	msgs := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(selectorPrompt, q.Role, catalog, results.String()),
	}}
	history := q.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: q.Input})
}

func describeResult(r tools.Result) string {
	if !r.OK() {
		return "failed: " + r.Message
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return "ok"
	}
	if len(data) > maxResultChars {
		return string(data[:maxResultChars]) + "..."
	}
	return string(data)
}

// parseDecision accepts bare JSON as well as JSON wrapped in prose or
// markdown fences, which smaller local models tend to produce.
func parseDecision(text string) (decision, error) {
	var d decision
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return d, apperr.New(apperr.KindUpstreamError, "selector reply is not JSON")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return d, apperr.Wrap(apperr.KindUpstreamError, err, "selector reply is not valid JSON")
	}
	d.Tool = strings.TrimSpace(d.Tool)
	d.Content = strings.Trim(strings.TrimSpace(d.Content), `"`)
	return d, nil
}
