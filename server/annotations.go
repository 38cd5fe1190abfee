package server

// ToolAnnotations are hints about tool behavior shown to clients.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func (b *ToolBuilder) annotations() *ToolAnnotations {
	if b.tool.annotations == nil {
		b.tool.annotations = &ToolAnnotations{}
	}
	return b.tool.annotations
}

// Title sets a human-readable title.
func (b *ToolBuilder) Title(title string) *ToolBuilder {
	b.annotations().Title = title
	return b
}

// ReadOnly marks the tool as free of side effects.
func (b *ToolBuilder) ReadOnly() *ToolBuilder {
	a := b.annotations()
	a.ReadOnlyHint = Bool(true)
	a.DestructiveHint = Bool(false)
	return b
}

// Idempotent marks repeated calls with the same input as equivalent.
func (b *ToolBuilder) Idempotent() *ToolBuilder {
	b.annotations().IdempotentHint = Bool(true)
	return b
}

// OpenWorld marks the tool as reaching systems outside the server.
func (b *ToolBuilder) OpenWorld() *ToolBuilder {
	b.annotations().OpenWorldHint = Bool(true)
	return b
}
