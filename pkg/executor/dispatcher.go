// Package executor dispatches tool invocations to one of four execution
// strategies: HTTP request, CLI process, file read, or literal text. The
// dispatcher resolves every templated field of the tool's execution
// descriptor, gates filesystem access through the path validator, and
// normalizes every outcome, success or fault, into a Result envelope.
package executor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcigo/mci/pkg/schema"
	"github.com/mcigo/mci/pkg/security"
	"github.com/mcigo/mci/pkg/template"
)

const (
	defaultTimeoutMS     = 30000
	defaultRetryAttempts = 1
	defaultBackoffMS     = 500
)

// Dispatcher routes tool invocations to their executors. It is safe for
// concurrent use: every Execute call builds its own context, validator, and
// result, and the only shared state is the HTTP client's connection pool.
type Dispatcher struct {
	engine    *template.Engine
	schemaDir string
	anyPaths  bool
	allowList []string
	client    *http.Client
}

// NewDispatcher creates a dispatcher carrying the collection-level security
// settings. schemaDir anchors relative paths and is always an allowed root.
func NewDispatcher(schemaDir string, s *schema.Schema) *Dispatcher {
	return &Dispatcher{
		engine:    template.New(),
		schemaDir: schemaDir,
		anyPaths:  s.EnableAnyPaths,
		allowList: s.DirectoryAllowList,
		client:    &http.Client{},
	}
}

// Execute runs one tool with the supplied properties and environment values.
// It always returns a Result: executor faults are converted into an error
// envelope, never raised to the caller.
func (d *Dispatcher) Execute(ctx context.Context, tool *schema.Tool, props, env map[string]any) *Result {
	start := time.Now()
	tctx := template.NewContext(props, env)

	meta := map[string]any{
		"execution_id":   uuid.NewString(),
		"tool":           tool.Name,
		"execution_type": string(tool.Execution.Type),
	}

	anyPaths, allowList := security.MergeSettings(d.anyPaths, d.allowList, tool.EnableAnyPaths, tool.DirectoryAllowList)
	validator, err := security.NewValidator(d.schemaDir, allowList, anyPaths)
	if err != nil {
		return d.finish(errorResult(err, meta), tool, start)
	}

	var res *Result
	switch tool.Execution.Type {
	case schema.ExecutionHTTP:
		res = d.executeHTTP(ctx, tool.Execution.HTTP, tctx, meta)
	case schema.ExecutionCLI:
		res = d.executeCLI(ctx, tool.Execution.CLI, tctx, validator, meta)
	case schema.ExecutionFile:
		res = d.executeFile(tool.Execution.File, tctx, validator, meta)
	case schema.ExecutionText:
		res = d.executeText(tool.Execution.Text, tctx, meta)
	default:
		res = errorResult(fmt.Errorf("unknown execution type %q", tool.Execution.Type), meta)
	}

	return d.finish(res, tool, start)
}

func (d *Dispatcher) finish(res *Result, tool *schema.Tool, start time.Time) *Result {
	res.Metadata["duration_ms"] = time.Since(start).Milliseconds()

	evt := log.Debug()
	if res.IsError {
		evt = log.Warn().Str("error", res.Error)
	}
	evt.
		Str("tool", tool.Name).
		Str("execution_type", string(tool.Execution.Type)).
		Bool("is_error", res.IsError).
		Dur("duration", time.Since(start)).
		Msg("Tool executed")

	return res
}

// render resolves one templated string field.
func (d *Dispatcher) render(s string, tctx *template.Context) (string, error) {
	return d.engine.Render(s, tctx)
}

// renderAny walks an arbitrary JSON value and resolves every string through
// the engine, preserving the value's shape. Used for HTTP params and
// structured bodies.
func (d *Dispatcher) renderAny(v any, tctx *template.Context) (any, error) {
	switch t := v.(type) {
	case string:
		return d.engine.Render(t, tctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			rendered, err := d.renderAny(val, tctx)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			rendered, err := d.renderAny(val, tctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}
