package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcigo/mci/pkg/schema"
	"github.com/mcigo/mci/pkg/security"
	"github.com/mcigo/mci/pkg/template"
)

// executeCLI spawns the command with resolved arguments and flags. The
// command is an executable name, never shell-interpreted; arguments are
// passed positionally so no quoting or splitting applies.
func (d *Dispatcher) executeCLI(ctx context.Context, e *schema.CLIExecution, tctx *template.Context, validator *security.Validator, meta map[string]any) *Result {
	command, err := d.render(e.Command, tctx)
	if err != nil {
		return errorResult(err, meta)
	}

	args, err := d.assembleArgs(e, tctx)
	if err != nil {
		return errorResult(err, meta)
	}

	cwd := ""
	if e.Cwd != "" {
		cwd, err = d.render(e.Cwd, tctx)
		if err != nil {
			return errorResult(err, meta)
		}
		if err := validator.Validate(cwd); err != nil {
			return errorResult(err, meta)
		}
		if !filepath.IsAbs(cwd) {
			cwd = filepath.Join(d.schemaDir, cwd)
		}
	}

	timeout := time.Duration(defaultTimeoutMS) * time.Millisecond
	if e.TimeoutMS > 0 {
		timeout = time.Duration(e.TimeoutMS) * time.Millisecond
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, command, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		meta["exit_code"] = -1
		return errorResult(fmt.Errorf("%w: command timed out after %s", ErrProcess, timeout), meta)
	}

	exitCode := 0
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return errorResult(fmt.Errorf("%w: failed to start command %q: %v", ErrProcess, command, runErr), meta)
		}
		exitCode = exitErr.ExitCode()
	}
	meta["exit_code"] = exitCode

	if exitCode != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("command %q exited with code %d", command, exitCode)
		}
		res := errorResult(fmt.Errorf("%w: %s", ErrProcess, msg), meta)
		res.Content = []Content{{Type: "text", Text: strings.TrimSpace(stdout.String())}}
		return res
	}

	return okResult(strings.TrimSpace(stdout.String()), meta)
}

// assembleArgs builds the argument vector: fixed args in declared order,
// then flags in declaration order. A boolean flag is appended bare when its
// source value is truthy; a value flag is appended as name=value when its
// source path resolves to a non-null value. A flag whose path does not
// resolve is omitted.
func (d *Dispatcher) assembleArgs(e *schema.CLIExecution, tctx *template.Context) ([]string, error) {
	var args []string

	for _, a := range e.Args {
		rendered, err := d.render(a, tctx)
		if err != nil {
			return nil, err
		}
		args = append(args, rendered)
	}

	for _, nf := range e.Flags {
		v, err := tctx.Lookup(nf.From)
		if err != nil {
			continue
		}
		switch nf.Flag.Type {
		case "boolean":
			if template.Truthy(v) {
				args = append(args, nf.Name)
			}
		case "value":
			if v != nil {
				args = append(args, nf.Name+"="+template.Stringify(v))
			}
		}
	}

	return args, nil
}
