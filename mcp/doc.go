// Package mcp contains the Model Context Protocol data types used by the
// Resend MCP server: initialization, tools and logging. Types mirror the wire
// representation (exported structs with json tags, string constants for
// method names) and carry no transport logic.
//
// Transports (streaminghttp, stdio) import these types for framing and
// routing decisions, while mcpservice builds results from them.
package mcp
