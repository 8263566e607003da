// Package config loads the mesh configuration from YAML and validates it
// before anything is wired. A bad descriptor aborts the load; nothing is
// registered from a config that failed validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/toolmesh/registry"
)

// AuthConfig configures how transports authenticate against a server.
type AuthConfig struct {
	Type       string `yaml:"type"`
	Credential string `yaml:"credential,omitempty"`
}

// ServerConfig describes one external capability server.
type ServerConfig struct {
	Name         string     `yaml:"name"`
	Endpoint     string     `yaml:"endpoint"`
	Auth         AuthConfig `yaml:"auth,omitempty"`
	Capabilities []string   `yaml:"capabilities"`

	// AllowedDirs restricts filesystem-backed servers to the listed
	// directories. Entries must be absolute paths.
	AllowedDirs []string `yaml:"allowed_dirs,omitempty"`
}

// Config is the root of the YAML configuration file.
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every server entry and fails on the first violation:
// duplicate names, malformed endpoints, unknown auth types, missing
// credentials and relative allow-list entries all abort the load.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("config: duplicate server name %q", s.Name)
		}
		seen[s.Name] = struct{}{}

		if err := s.descriptor().Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}

		for _, dir := range s.AllowedDirs {
			if !filepath.IsAbs(dir) {
				return fmt.Errorf("config: server %q: allowed dir %q is not absolute", s.Name, dir)
			}
		}
	}
	return nil
}

// Descriptors converts the configured servers into registry descriptors.
func (c *Config) Descriptors() []registry.ServerDescriptor {
	out := make([]registry.ServerDescriptor, 0, len(c.Servers))
	for _, s := range c.Servers {
		out = append(out, s.descriptor())
	}
	return out
}

func (s ServerConfig) descriptor() registry.ServerDescriptor {
	authType := registry.AuthType(s.Auth.Type)
	if s.Auth.Type == "" {
		authType = registry.AuthNone
	}
	return registry.ServerDescriptor{
		Name:     s.Name,
		Endpoint: s.Endpoint,
		Auth: registry.Auth{
			Type:       authType,
			Credential: s.Auth.Credential,
		},
		Capabilities: append([]string(nil), s.Capabilities...),
	}
}
