package executor

import (
	"github.com/mcigo/mci/pkg/schema"
	"github.com/mcigo/mci/pkg/template"
)

// executeText resolves the literal text through the template engine. It can
// only fail on a template fault.
func (d *Dispatcher) executeText(e *schema.TextExecution, tctx *template.Context, meta map[string]any) *Result {
	out, err := d.render(e.Text, tctx)
	if err != nil {
		return errorResult(err, meta)
	}
	return okResult(out, meta)
}
