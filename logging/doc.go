// Package logging provides a minimal logging interface and adapters for ToolMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) that the dispatch coordinator, stores and workflow coordinator use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - MeshLogger with contextual cloning helpers and domain convenience methods
//
// Usage:
//
//	logger := logging.NewMeshLogger(logging.LogLevelInfo, "json", false)
//	mesh := engine.New(engine.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
