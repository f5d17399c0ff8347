package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/canvas"
	"github.com/RichardoC/lms-chat/internal/models"
	"go.uber.org/zap"
)

// Caller identifies who a call is made for.
type Caller struct {
	Role         models.Role `json:"role"`
	CanvasUserID int64       `json:"canvas_user_id"`
}

// Call is a requested operation.
type Call struct {
	Name string `json:"name"`
	Args Args   `json:"arguments"`
}

// Key identifies a call by name and canonical arguments.
func (c Call) Key() string { return c.Name + " " + c.Args.Canonical() }

// Result is the outcome of one dispatch. Exactly one of Data or Err is set.
type Result struct {
	Call     Call          `json:"call"`
	Data     any           `json:"data,omitempty"`
	Err      error         `json:"-"`
	Kind     apperr.Kind   `json:"error_kind,omitempty"`
	Message  string        `json:"error,omitempty"`
	Missing  []string      `json:"missing,omitempty"`
	Mutating bool          `json:"mutating"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

func (r Result) OK() bool { return r.Err == nil }

type Dispatcher struct {
	catalog   *Catalog
	canvas    *canvas.Client
	logger    *zap.Logger
	uploadDir string
	now       func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithUploadDir(dir string) DispatcherOption {
	return func(d *Dispatcher) { d.uploadDir = dir }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(catalog *Catalog, client *canvas.Client, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		catalog: catalog,
		canvas:  client,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Key identifies call the way Dispatch will see it: arguments are coerced to
// the tool's schema first, so 3, 3.0 and "3" name the same course.
// Arguments that cannot be coerced keep their raw value.
func (d *Dispatcher) Key(call Call) string {
	def, ok := d.catalog.Lookup(call.Name)
	if !ok {
		return call.Key()
	}
	args, bad := normalize(def.Params, call.Args)
	for _, key := range bad {
		args[key] = call.Args[key]
	}
	return Call{Name: call.Name, Args: args}.Key()
}

// Dispatch validates and runs one call. It never panics and never returns a
// bare error: every failure is reported in the Result.
//
// Checks run in order: unknown tool, permission, missing arguments,
// argument types. Reads are retried once on an upstream timeout; mutating
// calls are never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, call Call) (res Result) {
	res = Result{Call: call}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	def, ok := d.catalog.Lookup(call.Name)
	if !ok {
		return d.fail(res, apperr.New(apperr.KindValidation, "Unknown operation %q", call.Name))
	}
	res.Mutating = def.Mutating

	if !Permitted(caller.Role).Has(def.Name) {
		d.logger.Warn("tool call denied",
			zap.String("tool", def.Name),
			zap.String("role", string(caller.Role)),
			zap.Int64("canvas_user_id", caller.CanvasUserID))
		return d.fail(res, Denied(caller.Role, def.Name))
	}

	args, bad := normalize(def.Params, call.Args)
	if missing := MissingArgs(def, args); len(missing) > 0 {
		res.Missing = missing
		return d.fail(res, apperr.New(apperr.KindMissingArgument, "Missing required information: %v", missing))
	}
	if len(bad) > 0 {
		return d.fail(res, apperr.New(apperr.KindValidation, "Invalid value for %v", bad))
	}
	res.Call.Args = args

	env := d.env(caller)
	for {
		res.Attempts++
		data, err := d.run(ctx, def, env, args)
		if err == nil {
			res.Data = data
			d.logger.Info("tool call completed",
				zap.String("tool", def.Name),
				zap.Int("attempts", res.Attempts),
				zap.Duration("elapsed", time.Since(start)))
			return res
		}
		if def.Mutating || res.Attempts > 1 || !apperr.Retryable(err) || ctx.Err() != nil {
			return d.fail(res, err)
		}
		d.logger.Info("retrying read after timeout", zap.String("tool", def.Name), zap.Error(err))
	}
}

// Denied is the error reported when role may not use the named tool.
func Denied(role models.Role, name string) error {
	var allowed []string
	for _, r := range models.Roles {
		if Permitted(r).Has(name) {
			allowed = append(allowed, string(r))
		}
	}
	return apperr.New(apperr.KindPermissionDenied,
		"Your role (%s) is not allowed to %s. This action requires %s privileges.",
		role, Describe(name), strings.Join(allowed, " or "))
}

// MissingArgs lists required arguments absent from args, in schema order.
func MissingArgs(def *Definition, args Args) []string {
	var missing []string
	for _, name := range def.Params.Required {
		if !args.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func (d *Dispatcher) env(caller Caller) Env {
	user := d.canvas
	if caller.Role != models.RoleAdmin && caller.CanvasUserID != 0 {
		user = d.canvas.As(caller.CanvasUserID)
	}
	return Env{
		User:      user,
		Admin:     d.canvas,
		Caller:    caller,
		UploadDir: d.uploadDir,
		Now:       d.now,
		Logger:    d.logger,
	}
}

func (d *Dispatcher) run(ctx context.Context, def *Definition, env Env, args Args) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked",
				zap.String("tool", def.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = apperr.Wrap(apperr.KindUpstreamError, fmt.Errorf("panic: %v", r), "The %s operation failed unexpectedly", def.Name)
		}
	}()
	return def.Run(ctx, env, args)
}

func (d *Dispatcher) fail(res Result, err error) Result {
	res.Err = err
	res.Kind = apperr.KindOf(err)
	res.Message = apperr.UserMessage(err)
	if res.Kind != apperr.KindPermissionDenied && res.Kind != apperr.KindMissingArgument {
		d.logger.Warn("tool call failed",
			zap.String("tool", res.Call.Name),
			zap.String("kind", string(res.Kind)),
			zap.Error(err))
	}
	return res
}
