package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcigo/mci/pkg/schema"
	"github.com/mcigo/mci/pkg/security"
	"github.com/mcigo/mci/pkg/template"
)

// executeFile reads a file after the templated path passes the validator.
// Contents are run through the template engine with the same context as the
// descriptor unless enableTemplating is false.
func (d *Dispatcher) executeFile(e *schema.FileExecution, tctx *template.Context, validator *security.Validator, meta map[string]any) *Result {
	path, err := d.render(e.Path, tctx)
	if err != nil {
		return errorResult(err, meta)
	}

	if err := validator.Validate(path); err != nil {
		return errorResult(err, meta)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(d.schemaDir, path)
	}
	meta["path"] = path

	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return errorResult(fmt.Errorf("%w: %s", ErrFileNotFound, path), meta)
		case os.IsPermission(err):
			return errorResult(fmt.Errorf("%w: %s", ErrFilePermission, path), meta)
		default:
			return errorResult(fmt.Errorf("failed to read file %s: %w", path, err), meta)
		}
	}
	meta["size_bytes"] = len(data)

	content := string(data)
	if e.Templating() {
		content, err = d.render(content, tctx)
		if err != nil {
			return errorResult(err, meta)
		}
	}

	return okResult(content, meta)
}
