package executor

// Content is one block of tool output. Text is the only block type produced
// today.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Result is the uniform execution envelope returned to the caller. Faults
// never propagate past the dispatcher; they arrive here as IsError with a
// message and a fault kind in Metadata.
type Result struct {
	IsError    bool           `json:"isError"`
	Content    []Content      `json:"content,omitempty"`
	Structured any            `json:"structuredContent,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Text returns the concatenated text content.
func (r *Result) Text() string {
	var out string
	for _, c := range r.Content {
		out += c.Text
	}
	return out
}

func okResult(text string, meta map[string]any) *Result {
	return &Result{
		Content:  []Content{{Type: "text", Text: text}},
		Metadata: meta,
	}
}

func errorResult(err error, meta map[string]any) *Result {
	meta["fault"] = faultKind(err)
	return &Result{
		IsError:  true,
		Error:    err.Error(),
		Metadata: meta,
	}
}
