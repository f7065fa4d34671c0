// Package mcpservice implements the protocol side of an MCP server: a
// per-connection Server that answers initialize, ping, tools/list,
// tools/call and logging/setLevel, plus a typed tool registry.
//
// A Server is transport agnostic. Transports decode JSON-RPC messages, hand
// requests to HandleRequest and notifications to HandleNotification, and
// attach a Notifier with Connect so the server can push log notifications
// back to the client.
//
// Tools are declared with NewTool using a typed argument struct. The input
// schema is reflected from the struct's json and jsonschema tags, and
// arguments are decoded strictly (unknown fields are rejected):
//
//	type EchoArgs struct {
//		Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//
//	echo := mcpservice.NewTool[EchoArgs]("echo",
//		func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EchoArgs]) error {
//			return w.AppendText("you said: " + r.Args().Message)
//		},
//		mcpservice.WithToolDescription("Echo a message back to the caller"),
//	)
//
//	srv := mcpservice.NewServer(
//		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//		mcpservice.WithToolsContainer(mcpservice.NewToolsContainer(echo)),
//	)
//
// A handler that returns an error produces a tool result with IsError set;
// the failure never becomes a JSON-RPC error, so the session stays usable.
package mcpservice
