// Package redishost implements sessions.Host on Redis Streams so that a
// client's GET event stream can be served by any replica.
//
// Each session maps to one stream key written with XADD (trimmed with an
// approximate MAXLEN and refreshed TTL) and read with blocking XREAD.
// CleanupSession deletes the stream and leaves a short-lived marker that
// ends subscribers elsewhere.
//
//	host, err := redishost.NewFromEnv(ctx)
//	if err != nil { ... }
//	defer host.Close()
package redishost
