package protocol

// MCPVersion is the protocol revision negotiated during initialize.
const MCPVersion = "2024-11-05"

// MCP request methods handled by the server.
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// MCP notification methods.
const (
	MethodInitialized = "notifications/initialized"
	MethodCancelled   = "notifications/cancelled"
)
