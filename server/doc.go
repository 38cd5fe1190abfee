// Package server holds the tool registry and the MCP request dispatcher.
//
// Tools are registered with a fluent builder:
//
//	srv := server.New(server.Info{Name: "unhcr-mcp", Version: "1.0.0"})
//	srv.Tool("unhcrPopstat").
//	    Description("Fetch refugee population statistics from UNHCR API").
//	    InputOf(popstat.Input{}).
//	    ReadOnly().
//	    Handler(server.Typed(popstat.ParseInput, tool.Call))
//
// [NewHandler] turns a Server into a request handler that transports can
// serve, optionally wrapped in middleware.
package server
