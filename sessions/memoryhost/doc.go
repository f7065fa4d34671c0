// Package memoryhost provides an in-memory sessions.Host for single-process
// servers and tests. Messages live in RAM and are lost on exit.
//
// Each session keeps a bounded backlog (DefaultBacklog unless WithBacklog is
// given) so a client that reconnects with Last-Event-ID can pick up where it
// left off. Subscribers block on a per-stream wake channel rather than
// polling.
//
//	host := memoryhost.New()
//	h, _ := streaminghttp.New(addr, factory, streaminghttp.WithSessionHost(host))
package memoryhost
