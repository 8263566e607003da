package registry

import "fmt"

// DuplicateServerError is returned by Register when the name is already taken.
type DuplicateServerError struct {
	Name string `json:"name"`
}

func (e *DuplicateServerError) Error() string {
	return fmt.Sprintf("server %q is already registered", e.Name)
}

// UnknownServerError is returned when no server with the given name exists.
type UnknownServerError struct {
	Name string `json:"name"`
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("unknown server %q", e.Name)
}

// CapabilityUnsupportedError is returned when a server exists but does not
// declare the requested operation.
type CapabilityUnsupportedError struct {
	Server     string `json:"server"`
	Capability string `json:"capability"`
}

func (e *CapabilityUnsupportedError) Error() string {
	return fmt.Sprintf("server %q does not support capability %q", e.Server, e.Capability)
}
