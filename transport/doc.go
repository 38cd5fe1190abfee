// Package transport serves MCP over the network.
//
// Two transports are provided:
//
//   - [SSE]: clients open GET /sse and receive an "endpoint" event naming
//     the URL to POST JSON-RPC messages to; replies are pushed back on the
//     event stream as "message" events.
//   - [WebSocket]: each text frame carries one JSON-RPC message and replies
//     are written back on the same connection.
//
// Both wrap their HTTP handlers with [CORSHandler] and hand every decoded
// request to a [Handler].
package transport
