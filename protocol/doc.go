// Package protocol defines the JSON-RPC 2.0 envelopes and MCP method names
// spoken by the UNHCR statistics server.
//
// Requests arrive as [Request], replies leave as [Response]. Tool calls reply
// with a [ToolResult], a list of [Content] items plus an optional error flag:
//
//	protocol.NewToolResult(protocol.Text(`{"items":[]}`))
//	protocol.NewToolError("UNHCR API error: bad request")
//
// Failures at the protocol level (unknown method, malformed params) are
// reported as [*Error] values carrying a JSON-RPC error code.
package protocol
