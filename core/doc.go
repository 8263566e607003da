// Package core defines the shared contracts of the ToolMesh orchestration
// engine: the Transport abstraction every capability server is reached
// through, the store interfaces (memory, knowledge graph) the engine
// composes, the record types flowing through them, and the error types that
// are part of those contracts.
//
// Concrete implementations live in sibling packages (memory, graph,
// reasoning, dispatch, registry); core itself carries no behavior beyond
// small value helpers so that implementation packages never need to import
// each other.
package core
