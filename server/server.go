package server

import (
	"sort"
	"sync"
)

// Info identifies the server to clients.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolInfo describes a registered tool as listed to clients.
type ToolInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema any              `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// Server is the tool registry.
type Server struct {
	mu    sync.RWMutex
	info  Info
	tools map[string]*Tool
}

// New creates an empty server.
func New(info Info) *Server {
	return &Server{
		info:  info,
		tools: make(map[string]*Tool),
	}
}

// Info returns the server info.
func (s *Server) Info() Info {
	return s.info
}

// Tool starts building a tool with the given name. The tool is registered
// when Handler is called.
func (s *Server) Tool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool:   &Tool{name: name, inputSchema: emptyObjectSchema},
		server: s,
	}
}

// Tools returns the registered tools sorted by name.
func (s *Server) Tools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ToolInfo, 0, len(s.tools))
	for _, t := range s.tools {
		result = append(result, t.info())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetTool looks up a tool by name.
func (s *Server) GetTool(name string) (*Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok
}

func (s *Server) registerTool(t *Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.name] = t
}
