// Package sessionhosttest holds the contract suite shared by every
// sessions.Host implementation. Call RunSessionHostTests from the
// implementation's own test with a factory that returns a fresh host.
package sessionhosttest
