// Package intent decides, for one user message, whether a turn needs an LMS
// operation and with which arguments.
package intent

import (
	"context"

	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"go.uber.org/zap"
)

type Decision int

const (
	NoTool Decision = iota
	UseTool
	NeedsClarification
)

func (d Decision) String() string {
	switch d {
	case UseTool:
		return "tool_call"
	case NeedsClarification:
		return "needs_clarification"
	default:
		return "no_tool"
	}
}

// Outcome is a selector's answer for one step of a turn.
type Outcome struct {
	Decision   Decision
	Tool       string
	Args       tools.Args
	Missing    []string
	Draft      string // reply text offered with NoTool, may be empty
	Confidence float64
	Source     string
}

// Query is everything a selector may look at.
type Query struct {
	Input   string
	History []models.Message
	Role    models.Role
	// Tools are the selectable operations for Role, in catalog order.
	Tools []*tools.Definition
	// Results holds the calls already made in this turn.
	Results []tools.Result
}

func (q Query) lookup(name string) *tools.Definition {
	for _, def := range q.Tools {
		if def.Name == name {
			return def
		}
	}
	return nil
}

type Selector interface {
	Select(ctx context.Context, q Query) (Outcome, error)
}

// resolve turns a chosen tool and its arguments into UseTool or
// NeedsClarification.
func resolve(def *tools.Definition, args tools.Args, confidence float64, source string) Outcome {
	out := Outcome{
		Decision:   UseTool,
		Tool:       def.Name,
		Args:       args,
		Confidence: confidence,
		Source:     source,
	}
	if missing := tools.MissingArgs(def, args); len(missing) > 0 {
		out.Decision = NeedsClarification
		out.Missing = missing
	}
	return out
}

type fallback struct {
	primary   Selector
	secondary Selector
	logger    *zap.Logger
}

// WithFallback consults secondary whenever primary fails. When both fail the
// turn continues without a tool.
func WithFallback(primary, secondary Selector, logger *zap.Logger) Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *fallback) Select(ctx context.Context, q Query) (Outcome, error) {
	out, err := f.primary.Select(ctx, q)
	if err == nil {
		return out, nil
	}
	f.logger.Warn("primary selector failed, falling back", zap.Error(err))
	if ctx.Err() != nil {
		return Outcome{Decision: NoTool}, nil
	}

	out, err = f.secondary.Select(ctx, q)
	if err != nil {
		f.logger.Warn("fallback selector failed", zap.Error(err))
		return Outcome{Decision: NoTool}, nil
	}
	return out, nil
}
