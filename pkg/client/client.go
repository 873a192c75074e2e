// Package client is the embedding-friendly facade over the tool manager:
// load a schema file, list and filter its tools, and execute them with
// caller-supplied properties and environment values.
package client

import (
	"context"
	"time"

	"github.com/mcigo/mci/internal/metrics"
	"github.com/mcigo/mci/pkg/executor"
	"github.com/mcigo/mci/pkg/schema"
	"github.com/mcigo/mci/pkg/tool"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	watch   bool
}

// WithMetrics attaches a Prometheus metrics registry to the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWatch enables hot-reloading: the client watches the schema file and
// its toolset library and reloads on change.
func WithWatch() Option {
	return func(o *options) { o.watch = true }
}

// Client wraps one loaded tool collection. Environment values are supplied
// by the caller per execution; the client never reads the process
// environment on its own.
type Client struct {
	manager *tool.Manager
	watcher *tool.Watcher
}

// New loads the schema file at path and returns a client for it.
func New(path string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	manager, err := tool.NewManager(path, o.metrics)
	if err != nil {
		return nil, err
	}

	c := &Client{manager: manager}
	if o.watch {
		w, err := tool.NewWatcher(manager, 100*time.Millisecond)
		if err != nil {
			return nil, err
		}
		if err := w.Start(); err != nil {
			return nil, err
		}
		c.watcher = w
	}

	return c, nil
}

// Close stops the schema watcher if one is running.
func (c *Client) Close() error {
	if c.watcher != nil {
		return c.watcher.Stop()
	}
	return nil
}

// Schema returns the loaded collection.
func (c *Client) Schema() *schema.Schema { return c.manager.Schema() }

// Tools returns all enabled tools.
func (c *Client) Tools() []schema.Tool { return c.manager.List() }

// Only returns the named tools.
func (c *Client) Only(names ...string) []schema.Tool {
	return c.manager.Filter(tool.FilterOptions{Only: names})
}

// Without returns all tools except the named ones.
func (c *Client) Without(names ...string) []schema.Tool {
	return c.manager.Filter(tool.FilterOptions{Without: names})
}

// ByTags returns tools carrying at least one of the tags.
func (c *Client) ByTags(tags ...string) []schema.Tool {
	return c.manager.Filter(tool.FilterOptions{Tags: tags})
}

// WithoutTags returns tools carrying none of the tags.
func (c *Client) WithoutTags(tags ...string) []schema.Tool {
	return c.manager.Filter(tool.FilterOptions{WithoutTags: tags})
}

// FromToolsets returns tools loaded from the named toolsets.
func (c *Client) FromToolsets(names ...string) []schema.Tool {
	return c.manager.Filter(tool.FilterOptions{Toolsets: names})
}

// Execute runs the named tool.
func (c *Client) Execute(ctx context.Context, name string, props, env map[string]any) (*executor.Result, error) {
	return c.manager.Execute(ctx, name, props, env)
}

// Reload re-parses the schema file.
func (c *Client) Reload() error { return c.manager.Reload() }
