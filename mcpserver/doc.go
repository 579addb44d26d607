// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package binds the sandbox boundary contract to MCP tools using
// the mark3labs/mcp-go library:
//
//   - supported_languages
//   - sandbox_preview(caller_id, listing_id)
//   - code_preview(caller_id, listing_id, file_id)
//   - execute_code(caller_id, listing_id, file_id?, input?, timeout_ms?)
//
// Results are returned as JSON text content. Lookup and authorization
// failures become error results carrying {"error", "kind"}; a failed run of
// the code itself is a normal result whose success field is false.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, coordinator)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
