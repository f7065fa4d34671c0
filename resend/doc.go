// Package resend is a small client for the Resend REST API.
//
// A Client is bound to exactly one API key for its whole life. NewClient
// performs no I/O and cannot fail; an invalid key surfaces as an *Error with
// StatusCode 401 or 403 on first use. Every Client owns its own rate limiter,
// so clients built for different keys never throttle one another.
//
// Resources are grouped into services hanging off the client:
//
//	c := resend.NewClient(apiKey)
//	sent, err := c.Emails.Send(ctx, &resend.SendEmailRequest{
//		From:    "Acme <onboarding@acme.dev>",
//		To:      []string{"user@example.com"},
//		Subject: "Hello",
//		Text:    "It works.",
//	})
//
// Requests that fail with 429 are retried after honoring Retry-After. Server
// errors (5xx) are retried only for GET and DELETE, or when the request
// carries an Idempotency-Key, which email sends always do.
package resend
