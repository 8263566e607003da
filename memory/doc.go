// Package memory implements the durable key-to-record store for persistent
// knowledge. Two implementations of core.MemoryStore are provided: a
// process-local InMemoryStore suited to tests and ephemeral setups, and a
// SQLite-backed SQLiteStore for durable single-binary deployments.
//
// Both share the same deterministic relevance ranking: tag-overlap count
// first, text-match count second, ties broken by most recent update.
// Identifiers are ULIDs, so creation order is recoverable from the
// identifier itself.
package memory
