// Package sessions tracks the live sessions of the network transport.
//
// A Registry maps session ids to Session values. Each Session owns a
// dedicated mcpservice.Server bound to the caller's upstream credential and
// the Channel that carries its traffic. Entries are added only after a
// successful initialize handshake and leave the registry when their channel
// closes, when the transport removes them explicitly, or when the process
// drains on shutdown.
//
// A Host carries server-to-client messages (log notifications) that are
// delivered over the optional GET event stream. Two implementations exist:
//
//	memoryhost : process local, used by default and in tests
//	redishost  : Redis Streams backed, survives reconnects to another replica
package sessions
