// Package registry holds the validated descriptors of reachable capability
// servers: identity, authentication, declared capabilities and health. Health
// is mutated exclusively through ReportOutcome, which the dispatch
// coordinator calls after every attempt.
package registry

import (
	"fmt"
	"net/url"
	"sort"
)

// AuthType enumerates the supported authentication methods.
type AuthType string

const (
	// AuthNone disables authentication for the server.
	AuthNone AuthType = "none"
	// AuthBasic uses HTTP basic credentials.
	AuthBasic AuthType = "basic"
	// AuthBearer uses a bearer token.
	AuthBearer AuthType = "bearer"
)

// Valid reports whether the auth type is one of the known methods.
func (a AuthType) Valid() bool {
	switch a {
	case AuthNone, AuthBasic, AuthBearer:
		return true
	}
	return false
}

// Auth describes how a transport authenticates against a server. The
// credential is opaque to the engine; it is handed to the transport as-is.
type Auth struct {
	Type       AuthType `json:"type"`
	Credential string   `json:"credential,omitempty"`
}

// ServerDescriptor identifies one capability server. Name is unique within a
// registry. Health and ConsecutiveFailures reflect registry state at the time
// the descriptor copy was taken.
type ServerDescriptor struct {
	Name                string      `json:"name"`
	Endpoint            string      `json:"endpoint"`
	Auth                Auth        `json:"auth"`
	Capabilities        []string    `json:"capabilities"`
	Health              HealthState `json:"health"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
}

// Validate checks the descriptor's structural invariants: non-empty name, a
// parseable endpoint with a scheme, a known auth type (with a credential when
// the type requires one) and at least one capability.
func (d ServerDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("server descriptor: name is required")
	}
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return fmt.Errorf("server %q: invalid endpoint %q: %w", d.Name, d.Endpoint, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("server %q: endpoint %q has no scheme", d.Name, d.Endpoint)
	}
	authType := d.Auth.Type
	if authType == "" {
		authType = AuthNone
	}
	if !authType.Valid() {
		return fmt.Errorf("server %q: unknown auth type %q", d.Name, d.Auth.Type)
	}
	if authType != AuthNone && d.Auth.Credential == "" {
		return fmt.Errorf("server %q: auth type %q requires a credential", d.Name, authType)
	}
	if len(d.Capabilities) == 0 {
		return fmt.Errorf("server %q: at least one capability is required", d.Name)
	}
	return nil
}

// HasCapability reports whether the descriptor declares the given operation.
func (d ServerDescriptor) HasCapability(op string) bool {
	for _, c := range d.Capabilities {
		if c == op {
			return true
		}
	}
	return false
}

func (d ServerDescriptor) clone() ServerDescriptor {
	out := d
	out.Capabilities = append([]string(nil), d.Capabilities...)
	sort.Strings(out.Capabilities)
	return out
}
