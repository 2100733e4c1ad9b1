package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/systmms/secretseed/internal/config"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// Example usage:
//
//	cfg := NewTestConfig(t).
//	    WithSecret("db_pass", "secrets.yaml").
//	    WithNamePrefix("app-").
//	    WithSourceFixtures().
//	    Write()
type TestConfigBuilder struct {
	t       *testing.T
	dir     string
	def     *config.Definition
	sources bool
}

// NewTestConfig creates a builder writing into a fresh temp dir
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		t:   t,
		dir: t.TempDir(),
		def: &config.Definition{
			Secrets: make(map[string]string),
		},
	}
}

// WithSecret adds one name → location entry
func (b *TestConfigBuilder) WithSecret(name, location string) *TestConfigBuilder {
	b.def.Secrets[name] = location
	return b
}

// WithParameterStore selects the parameter store sink
func (b *TestConfigBuilder) WithParameterStore() *TestConfigBuilder {
	b.def.UseParameterStore = true
	return b
}

// WithNamePrefix sets name_prefix
func (b *TestConfigBuilder) WithNamePrefix(prefix string) *TestConfigBuilder {
	b.def.NamePrefix = prefix
	return b
}

// WithTags sets resource_tags
func (b *TestConfigBuilder) WithTags(tags map[string]string) *TestConfigBuilder {
	b.def.ResourceTags = tags
	return b
}

// WithSourceFixtures also writes the standard source files next to the config
func (b *TestConfigBuilder) WithSourceFixtures() *TestConfigBuilder {
	b.sources = true
	return b
}

// Build returns the definition without writing anything
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.def
}

// Write writes secretseed.yaml (and the source fixtures if requested) and
// returns the path
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal config: %v", err)
	}

	path := filepath.Join(b.dir, "secretseed.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write config: %v", err)
	}
	if b.sources {
		WriteFiles(b.t, b.dir, SourceFixtures)
	}
	return path
}
