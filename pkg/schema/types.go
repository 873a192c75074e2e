// Package schema defines the tool collection document model: the top-level
// schema, tool definitions, execution descriptors for the four execution
// types, and auth configurations. Documents load from JSON or YAML.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExecutionType discriminates the four execution strategies.
type ExecutionType string

const (
	ExecutionHTTP ExecutionType = "http"
	ExecutionCLI  ExecutionType = "cli"
	ExecutionFile ExecutionType = "file"
	ExecutionText ExecutionType = "text"
)

// Metadata describes a tool collection.
type Metadata struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	License     string   `json:"license,omitempty"`
	Authors     []string `json:"authors,omitempty"`
}

// AuthType discriminates auth configurations for HTTP tools.
type AuthType string

const (
	AuthAPIKey AuthType = "apiKey"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthOAuth2 AuthType = "oauth2"
)

// Auth configures request authentication for HTTP executions. Exactly one
// variant's fields are populated, selected by Type. Values may contain
// template placeholders; they resolve at send time, not at descriptor
// resolution time.
type Auth struct {
	Type AuthType `json:"type"`

	// apiKey
	In    string `json:"in,omitempty"` // "header" or "query"
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`

	// bearer
	Token string `json:"token,omitempty"`

	// basic
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// oauth2
	Flow         string   `json:"flow,omitempty"`
	TokenURL     string   `json:"tokenUrl,omitempty"`
	ClientID     string   `json:"clientId,omitempty"`
	ClientSecret string   `json:"clientSecret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// Validate checks that the fields required by the auth type are present.
func (a *Auth) Validate() error {
	switch a.Type {
	case AuthAPIKey:
		if a.In != "header" && a.In != "query" {
			return fmt.Errorf("apiKey auth requires 'in' to be \"header\" or \"query\", got %q", a.In)
		}
		if a.Name == "" {
			return fmt.Errorf("apiKey auth requires 'name'")
		}
	case AuthBearer:
		if a.Token == "" {
			return fmt.Errorf("bearer auth requires 'token'")
		}
	case AuthBasic:
		if a.Username == "" {
			return fmt.Errorf("basic auth requires 'username'")
		}
	case AuthOAuth2:
		if a.TokenURL == "" || a.ClientID == "" || a.ClientSecret == "" {
			return fmt.Errorf("oauth2 auth requires 'tokenUrl', 'clientId', and 'clientSecret'")
		}
	default:
		return fmt.Errorf("invalid auth type %q", a.Type)
	}
	return nil
}

// Retry configures the HTTP retry policy. BackoffMS is a pointer so an
// explicit 0 is distinguishable from unset, which defaults to 500.
type Retry struct {
	Attempts  int  `json:"attempts"`
	BackoffMS *int `json:"backoff_ms,omitempty"`
}

// HTTPBody configures the request body: type is "json", "form", or "raw",
// and content is an object (json/form) or a string (raw).
type HTTPBody struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// HTTPExecution describes an HTTP request tool.
type HTTPExecution struct {
	Method    string            `json:"method,omitempty"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Auth      *Auth             `json:"auth,omitempty"`
	Params    map[string]any    `json:"params,omitempty"`
	Body      *HTTPBody         `json:"body,omitempty"`
	TimeoutMS int               `json:"timeout_ms,omitempty"`
	Retries   *Retry            `json:"retries,omitempty"`
}

// Flag maps a CLI flag to the context path supplying its value. Type is
// "boolean" (append the bare flag when the value is truthy) or "value"
// (append name=value when present).
type Flag struct {
	From string `json:"from"`
	Type string `json:"type"`
}

// NamedFlag is one flag together with its name in the flags mapping.
type NamedFlag struct {
	Name string
	Flag
}

// Flags preserves the declaration order of the flags mapping; Go maps do
// not, and CLI argument assembly is order-sensitive.
type Flags []NamedFlag

// UnmarshalJSON decodes a JSON object into flags in document order.
func (f *Flags) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("flags must be an object")
	}

	var flags Flags
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("invalid flag name token")
		}
		var flag Flag
		if err := dec.Decode(&flag); err != nil {
			return fmt.Errorf("invalid flag %q: %w", name, err)
		}
		flags = append(flags, NamedFlag{Name: name, Flag: flag})
	}

	*f = flags
	return nil
}

// MarshalJSON encodes flags back to a JSON object in declaration order.
func (f Flags) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nf := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(nf.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(nf.Flag)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CLIExecution describes a command-line tool.
type CLIExecution struct {
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Flags     Flags    `json:"flags,omitempty"`
	Cwd       string   `json:"cwd,omitempty"`
	TimeoutMS int      `json:"timeout_ms,omitempty"`
}

// FileExecution describes a file-read tool.
type FileExecution struct {
	Path             string `json:"path"`
	EnableTemplating *bool  `json:"enableTemplating,omitempty"`
}

// Templating reports whether file contents should be run through the
// template engine. Defaults to true when unset.
func (e *FileExecution) Templating() bool {
	return e.EnableTemplating == nil || *e.EnableTemplating
}

// TextExecution describes a literal-text tool.
type TextExecution struct {
	Text string `json:"text"`
}

// Execution is the tagged union over the four execution descriptors. Exactly
// one variant is non-nil, selected by Type.
type Execution struct {
	Type ExecutionType
	HTTP *HTTPExecution
	CLI  *CLIExecution
	File *FileExecution
	Text *TextExecution
}

// UnmarshalJSON dispatches on the "type" discriminant and validates the
// variant's required fields so an invalid descriptor fails at load time.
func (e *Execution) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ExecutionType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case ExecutionHTTP:
		var v HTTPExecution
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("invalid http execution config: %w", err)
		}
		if v.URL == "" {
			return fmt.Errorf("http execution requires 'url'")
		}
		if v.Auth != nil {
			if err := v.Auth.Validate(); err != nil {
				return fmt.Errorf("invalid http auth config: %w", err)
			}
		}
		if v.Body != nil {
			switch v.Body.Type {
			case "json", "form", "raw":
			default:
				return fmt.Errorf("invalid http body type %q, expected json, form, or raw", v.Body.Type)
			}
		}
		e.HTTP = &v

	case ExecutionCLI:
		var v CLIExecution
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("invalid cli execution config: %w", err)
		}
		if v.Command == "" {
			return fmt.Errorf("cli execution requires 'command'")
		}
		for _, nf := range v.Flags {
			if nf.From == "" {
				return fmt.Errorf("cli flag %q requires 'from'", nf.Name)
			}
			if nf.Flag.Type != "boolean" && nf.Flag.Type != "value" {
				return fmt.Errorf("cli flag %q has invalid type %q, expected boolean or value", nf.Name, nf.Flag.Type)
			}
		}
		e.CLI = &v

	case ExecutionFile:
		var v FileExecution
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("invalid file execution config: %w", err)
		}
		if v.Path == "" {
			return fmt.Errorf("file execution requires 'path'")
		}
		e.File = &v

	case ExecutionText:
		var v TextExecution
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("invalid text execution config: %w", err)
		}
		e.Text = &v

	case "":
		return fmt.Errorf("missing required field 'type' in execution config")

	default:
		return fmt.Errorf("invalid execution type %q, valid types: http, cli, file, text", head.Type)
	}

	e.Type = head.Type
	return nil
}

// MarshalJSON encodes the active variant with the type discriminant inlined.
func (e Execution) MarshalJSON() ([]byte, error) {
	var variant any
	switch e.Type {
	case ExecutionHTTP:
		variant = e.HTTP
	case ExecutionCLI:
		variant = e.CLI
	case ExecutionFile:
		variant = e.File
	case ExecutionText:
		variant = e.Text
	default:
		return nil, fmt.Errorf("invalid execution type %q", e.Type)
	}

	raw, err := json.Marshal(variant)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["type"] = string(e.Type)
	return json.Marshal(fields)
}

// Annotations carries MCP-style behavioral hints about a tool.
type Annotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// Tool is one named, executable tool definition. Tool-level security fields
// are tri-state: when unset they inherit from the collection, when set they
// replace the collection values.
type Tool struct {
	Name               string         `json:"name"`
	Disabled           bool           `json:"disabled,omitempty"`
	Annotations        *Annotations   `json:"annotations,omitempty"`
	Description        string         `json:"description,omitempty"`
	InputSchema        map[string]any `json:"inputSchema,omitempty"`
	Execution          Execution      `json:"execution"`
	EnableAnyPaths     *bool          `json:"enableAnyPaths,omitempty"`
	DirectoryAllowList []string       `json:"directoryAllowList,omitempty"`
	Tags               []string       `json:"tags,omitempty"`

	// ToolsetSource is the toolset name this tool was loaded from, empty for
	// tools declared directly in the main schema.
	ToolsetSource string `json:"-"`
}

// Toolset references an external toolset file in the library directory with
// an optional load-time filter.
type Toolset struct {
	Name        string `json:"name"`
	Filter      string `json:"filter,omitempty"`      // only, except, tags, withoutTags
	FilterValue string `json:"filterValue,omitempty"` // comma-separated names or tags
}

// Schema is the top-level tool collection document.
type Schema struct {
	SchemaVersion      string    `json:"schemaVersion"`
	Metadata           *Metadata `json:"metadata,omitempty"`
	Tools              []Tool    `json:"tools,omitempty"`
	Toolsets           []Toolset `json:"toolsets,omitempty"`
	LibraryDir         string    `json:"libraryDir,omitempty"`
	EnableAnyPaths     bool      `json:"enableAnyPaths,omitempty"`
	DirectoryAllowList []string  `json:"directoryAllowList,omitempty"`
}

// ToolsetFile is the document shape of a toolset file: it may carry tools
// and metadata but no collection-level security settings or nested toolsets.
type ToolsetFile struct {
	SchemaVersion string    `json:"schemaVersion"`
	Metadata      *Metadata `json:"metadata,omitempty"`
	Tools         []Tool    `json:"tools"`
}
