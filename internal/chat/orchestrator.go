// Package chat runs one user turn: select an operation, dispatch it, and
// compose the reply.
package chat

import (
	"context"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/intent"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"go.uber.org/zap"
)

type State string

const (
	StateAwaitInput State = "AWAIT_INPUT"
	StateSelect     State = "SELECT"
	StateDispatch   State = "DISPATCH"
	StateRespond    State = "RESPOND"
	StateDone       State = "DONE"
	StateAborted    State = "ABORTED"
)

type Status string

const (
	StatusCompleted          Status = "completed"
	StatusNeedsClarification Status = "needs_clarification"
	StatusPermissionDenied   Status = "permission_denied"
	StatusAborted            Status = "aborted"
	StatusError              Status = "error"
)

// Turn is the input of one orchestration run.
type Turn struct {
	Input   string
	Caller  tools.Caller
	History []models.Message
	// PendingTool resumes a call that asked for more arguments last turn.
	PendingTool string
	PendingArgs tools.Args
}

// Clarification is a tool call waiting for arguments.
type Clarification struct {
	Tool    string
	Args    tools.Args
	Missing []string
}

// Trace is what a run produced.
type Trace struct {
	States     []State
	Status     Status
	Results    []tools.Result
	Draft      string // selector-provided reply text
	Clarify    *Clarification
	Err        error // denial or failure surfaced to the user
	Iterations int
}

func (t *Trace) enter(s State) { t.States = append(t.States, s) }

// Final is the terminal state of the run.
func (t *Trace) Final() State {
	if len(t.States) == 0 {
		return StateAwaitInput
	}
	return t.States[len(t.States)-1]
}

type Orchestrator struct {
	selector   intent.Selector
	guard      *intent.PermissionGuard
	dispatcher *tools.Dispatcher
	maxIter    int
	logger     *zap.Logger
}

func NewOrchestrator(selector intent.Selector, dispatcher *tools.Dispatcher, maxIter int, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxIter < 1 {
		maxIter = 3
	}
	return &Orchestrator{
		selector:   selector,
		guard:      intent.NewPermissionGuard(dispatcher.Catalog()),
		dispatcher: dispatcher,
		maxIter:    maxIter,
		logger:     logger,
	}
}

// Run drives SELECT and DISPATCH until a reply can be composed, the
// iteration cap is hit or the request is cancelled. The same call is never
// dispatched twice in one run.
func (o *Orchestrator) Run(ctx context.Context, turn Turn) *Trace {
	trace := &Trace{}
	trace.enter(StateAwaitInput)

	role := turn.Caller.Role
	catalog := o.dispatcher.Catalog()
	q := intent.Query{
		Input:   turn.Input,
		History: turn.History,
		Role:    role,
		Tools:   catalog.Selectable(tools.Permitted(role)),
	}

	pending, hasPending := catalog.Lookup(turn.PendingTool)
	if !hasPending {
		if name, ok := o.guard.Check(turn.Input, role); !ok {
			o.logger.Info("request denied before selection",
				zap.String("tool", name),
				zap.String("role", string(role)))
			trace.Err = tools.Denied(role, name)
			return o.finish(trace, StatusPermissionDenied, StateDone)
		}
	}

	seen := make(map[string]bool)
	for trace.Iterations < o.maxIter {
		if ctx.Err() != nil {
			trace.Err = apperr.Wrap(apperr.KindUpstreamTimeout, ctx.Err(), "The request was cancelled")
			return o.finish(trace, StatusError, StateAborted)
		}
		trace.Iterations++
		trace.enter(StateSelect)

		var out intent.Outcome
		if hasPending && trace.Iterations == 1 {
			out = intent.Resume(pending, turn.PendingArgs, turn.Input, turn.History)
		} else {
			q.Results = trace.Results
			var err error
			out, err = o.selector.Select(ctx, q)
			if err != nil {
				o.logger.Warn("selector failed, answering without a tool", zap.Error(err))
				out = intent.Outcome{Decision: intent.NoTool}
			}
		}

		switch out.Decision {
		case intent.NoTool:
			trace.Draft = out.Draft
			return o.respond(trace)

		case intent.NeedsClarification:
			trace.Clarify = &Clarification{Tool: out.Tool, Args: out.Args, Missing: out.Missing}
			return o.finish(trace, StatusNeedsClarification, StateDone)
		}

		call := tools.Call{Name: out.Tool, Args: out.Args}
		key := o.dispatcher.Key(call)
		if seen[key] {
			o.logger.Info("repeated call, composing reply", zap.String("tool", call.Name))
			return o.respond(trace)
		}
		seen[key] = true

		trace.enter(StateDispatch)
		res := o.dispatcher.Dispatch(ctx, turn.Caller, call)
		trace.Results = append(trace.Results, res)

		switch res.Kind {
		case apperr.KindPermissionDenied:
			trace.Err = res.Err
			return o.finish(trace, StatusPermissionDenied, StateDone)
		case apperr.KindMissingArgument:
			trace.Clarify = &Clarification{Tool: call.Name, Args: res.Call.Args, Missing: res.Missing}
			return o.finish(trace, StatusNeedsClarification, StateDone)
		}
	}

	o.logger.Warn("iteration cap reached",
		zap.Int("iterations", trace.Iterations),
		zap.Int("results", len(trace.Results)))
	return o.finish(trace, StatusAborted, StateAborted)
}

func (o *Orchestrator) respond(trace *Trace) *Trace {
	status := StatusCompleted
	if n := len(trace.Results); n > 0 && !anyOK(trace.Results) {
		status = StatusError
		trace.Err = trace.Results[n-1].Err
	}
	return o.finish(trace, status, StateDone)
}

func (o *Orchestrator) finish(trace *Trace, status Status, final State) *Trace {
	if final != StateAborted {
		trace.enter(StateRespond)
	}
	trace.enter(final)
	trace.Status = status
	return trace
}

func anyOK(results []tools.Result) bool {
	for _, r := range results {
		if r.OK() {
			return true
		}
	}
	return false
}
