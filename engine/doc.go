// Package engine wires the orchestration pieces into a single Mesh: the
// server registry, the dispatch coordinator, the built-in capability servers
// (memory, graph, reasoning) and the workflow coordinator.
//
// Built-in servers are not special-cased: each one is a registered server
// backed by a local in-process transport, so every invocation travels the
// same dispatch path, with the same retry policy and health reporting as an
// external server.
package engine
