package testutil

import (
	"github.com/hupe1980/toolmesh/registry"
)

// DescriptorBuilder helps construct server descriptors with fluent chaining
// for tests. Example:
//
//	desc := NewDescriptorBuilder("memory").Capabilities("create_memory").Build()
type DescriptorBuilder struct {
	desc registry.ServerDescriptor
}

// NewDescriptorBuilder creates a builder for a valid descriptor with the
// given name and a placeholder endpoint. Use chainable methods then call
// Build.
func NewDescriptorBuilder(name string) *DescriptorBuilder {
	return &DescriptorBuilder{desc: registry.ServerDescriptor{
		Name:         name,
		Endpoint:     "https://" + name + ".test",
		Capabilities: []string{"noop"},
	}}
}

// Endpoint overrides the placeholder endpoint (chainable).
func (b *DescriptorBuilder) Endpoint(e string) *DescriptorBuilder {
	b.desc.Endpoint = e
	return b
}

// Auth sets the auth type and credential (chainable).
func (b *DescriptorBuilder) Auth(t registry.AuthType, credential string) *DescriptorBuilder {
	b.desc.Auth = registry.Auth{Type: t, Credential: credential}
	return b
}

// Capabilities replaces the capability list (chainable).
func (b *DescriptorBuilder) Capabilities(caps ...string) *DescriptorBuilder {
	b.desc.Capabilities = caps
	return b
}

// Build returns the descriptor.
func (b *DescriptorBuilder) Build() registry.ServerDescriptor {
	return b.desc
}
