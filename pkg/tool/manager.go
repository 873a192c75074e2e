// Package tool manages a loaded tool collection: lookup, filtering, input
// validation, and execution through the dispatcher.
package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mcigo/mci/internal/metrics"
	"github.com/mcigo/mci/pkg/executor"
	"github.com/mcigo/mci/pkg/schema"
)

// FilterOptions selects a subset of the loaded tools. All criteria are
// conjunctive; empty criteria match everything.
type FilterOptions struct {
	Only        []string // keep only these tool names
	Without     []string // drop these tool names
	Tags        []string // keep tools carrying at least one of these tags
	WithoutTags []string // drop tools carrying any of these tags
	Toolsets    []string // keep only tools loaded from these toolsets
}

// Manager holds one loaded tool collection and executes its tools. Reload
// swaps the collection atomically, so a Manager can serve concurrent callers
// while its schema file changes on disk.
type Manager struct {
	mu         sync.RWMutex
	schemaPath string
	schema     *schema.Schema
	dispatcher *executor.Dispatcher
	metrics    *metrics.Metrics
}

// NewManager loads the schema file and prepares a dispatcher for it. The
// metrics argument may be nil to disable instrumentation.
func NewManager(schemaPath string, m *metrics.Metrics) (*Manager, error) {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema path %s: %w", schemaPath, err)
	}

	mgr := &Manager{schemaPath: abs, metrics: m}
	if err := mgr.Reload(); err != nil {
		return nil, err
	}
	return mgr, nil
}

// SchemaPath returns the absolute path of the loaded schema file.
func (m *Manager) SchemaPath() string { return m.schemaPath }

// Reload re-parses the schema file and swaps in the new collection.
func (m *Manager) Reload() error {
	s, err := schema.ParseFile(m.schemaPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.schema = s
	m.dispatcher = executor.NewDispatcher(filepath.Dir(m.schemaPath), s)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SchemaReloadsTotal.Inc()
		m.metrics.ToolsLoaded.Set(float64(len(s.Tools)))
	}

	log.Info().
		Str("path", m.schemaPath).
		Int("tools", len(s.Tools)).
		Msg("Schema loaded")

	return nil
}

// Schema returns the loaded collection.
func (m *Manager) Schema() *schema.Schema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema
}

// Get returns the named tool. Disabled tools are not addressable.
func (m *Manager) Get(name string) (*schema.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.schema.Tools {
		t := &m.schema.Tools[i]
		if t.Name == name {
			if t.Disabled {
				return nil, fmt.Errorf("tool %q is disabled", name)
			}
			return t, nil
		}
	}
	return nil, fmt.Errorf("tool %q not found", name)
}

// List returns all enabled tools.
func (m *Manager) List() []schema.Tool {
	return m.Filter(FilterOptions{})
}

// Filter returns the enabled tools matching the options.
func (m *Manager) Filter(opts FilterOptions) []schema.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	only := toSet(opts.Only)
	without := toSet(opts.Without)
	tags := toSet(opts.Tags)
	withoutTags := toSet(opts.WithoutTags)
	toolsets := toSet(opts.Toolsets)

	var out []schema.Tool
	for _, t := range m.schema.Tools {
		switch {
		case t.Disabled:
		case len(only) > 0 && !only[t.Name]:
		case without[t.Name]:
		case len(tags) > 0 && !hasAny(t.Tags, tags):
		case hasAny(t.Tags, withoutTags):
		case len(toolsets) > 0 && !toolsets[t.ToolsetSource]:
		default:
			out = append(out, t)
		}
	}
	return out
}

// Execute validates the input properties against the tool's input schema and
// runs the tool. It returns an error only for contract violations (unknown
// tool, invalid input); execution faults arrive inside the Result.
func (m *Manager) Execute(ctx context.Context, name string, props, env map[string]any) (*executor.Result, error) {
	tool, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	if err := validateInput(tool, props); err != nil {
		return nil, err
	}

	m.mu.RLock()
	dispatcher := m.dispatcher
	m.mu.RUnlock()

	start := time.Now()
	res := dispatcher.Execute(ctx, tool, props, env)
	m.record(tool, res, time.Since(start))

	return res, nil
}

func (m *Manager) record(tool *schema.Tool, res *executor.Result, elapsed time.Duration) {
	if m.metrics == nil {
		return
	}

	execType := string(tool.Execution.Type)
	status := "success"
	if res.IsError {
		status = "error"
		fault, _ := res.Metadata["fault"].(string)
		if fault == "" {
			fault = "internal"
		}
		m.metrics.ToolExecutionErrorsTotal.WithLabelValues(tool.Name, fault).Inc()
	}
	m.metrics.ToolExecutionsTotal.WithLabelValues(tool.Name, execType, status).Inc()
	m.metrics.ToolExecutionDuration.WithLabelValues(tool.Name, execType).Observe(elapsed.Seconds())
}

// validateInput checks props against the tool's JSON Schema, when one is
// declared.
func validateInput(tool *schema.Tool, props map[string]any) error {
	if len(tool.InputSchema) == 0 {
		return nil
	}
	if props == nil {
		props = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(tool.InputSchema),
		gojsonschema.NewGoLoader(props),
	)
	if err != nil {
		return fmt.Errorf("invalid inputSchema for tool %q: %w", tool.Name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid input for tool %q: %s", tool.Name, strings.Join(msgs, "; "))
	}
	return nil
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func hasAny(tags []string, set map[string]bool) bool {
	for _, tag := range tags {
		if set[tag] {
			return true
		}
	}
	return false
}
