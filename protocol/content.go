package protocol

// ContentTypeText tags a text content item.
const ContentTypeText = "text"

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text creates a text content item.
func Text(s string) Content {
	return Content{Type: ContentTypeText, Text: s}
}

// ToolResult is the reply envelope of a tools/call request. Success and
// failure share the same shape; failures set IsError.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// NewToolResult creates a successful result.
func NewToolResult(content ...Content) *ToolResult {
	return &ToolResult{Content: content}
}

// NewToolError creates an error-flagged result with a single text item.
func NewToolError(msg string) *ToolResult {
	return &ToolResult{
		Content: []Content{Text(msg)},
		IsError: true,
	}
}

// FirstText returns the text of the first text item, or "" when there is none.
func (r *ToolResult) FirstText() string {
	for _, c := range r.Content {
		if c.Type == ContentTypeText {
			return c.Text
		}
	}
	return ""
}
