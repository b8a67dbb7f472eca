// Package history keeps the most recent calculations served by the API. It
// provides a thread-safe, size-capped record store with TTL eviction and an
// optional SQLite sink so the window survives restarts.
package history
