package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/logging"
	"github.com/systmms/secretseed/internal/sink"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the secretseed.yaml structure
type Definition struct {
	Version int `yaml:"version"`

	// Secrets maps secret name to location
	Secrets map[string]string `yaml:"secrets"`

	// UseParameterStore publishes to SSM Parameter Store instead of Secrets Manager
	UseParameterStore bool              `yaml:"use_parameter_store,omitempty"`
	NamePrefix        string            `yaml:"name_prefix,omitempty"`
	KMSKeyID          string            `yaml:"kms_key_id,omitempty"`
	ResourceTags      map[string]string `yaml:"resource_tags,omitempty"`

	AWS AWSSettings `yaml:"aws,omitempty"`
}

// AWSSettings holds connection settings for the AWS clients
type AWSSettings struct {
	Region          string `yaml:"region,omitempty"`
	Profile         string `yaml:"profile,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// Load reads, validates and parses the configuration file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create secretseed.yaml or pass --config",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	c.Definition = def
	if c.Logger != nil {
		c.Logger.Debug("Loaded %d secret entries from %s", len(def.Secrets), c.Path)
	}
	return nil
}

// Parse validates raw YAML against the schema and decodes it
func Parse(data []byte) (*Definition, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		return nil, dserrors.ConfigError{
			Message:    "configuration file is empty",
			Suggestion: "Add a 'secrets:' mapping of secret name to location",
		}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("failed to decode configuration: %v", err),
			Suggestion: "Check value types against the documented configuration format",
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your secretseed.yaml file",
		}
	}

	return &def, nil
}

func validateSchema(raw map[string]interface{}) error {
	doc, err := json.Marshal(raw)
	if err != nil {
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration cannot be validated: %v", err),
			Suggestion: "Use string keys only",
		}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(definitionSchema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		sort.Strings(messages)
		return dserrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
			Suggestion: "Compare your file with the example in the README",
		}
	}
	return nil
}

// BaseDir is the directory relative secret file paths resolve against
func (c *Config) BaseDir() string {
	if c.Path == "" {
		return "."
	}
	return filepath.Dir(c.Path)
}

// Overridable settings. Keys use viper's dotted form; the matching
// environment variable is SECRETSEED_ plus the key upper-cased with dots
// replaced by underscores (e.g. SECRETSEED_AWS_REGION).
const (
	KeyUseParameterStore = "use_parameter_store"
	KeyNamePrefix        = "name_prefix"
	KeyKMSKeyID          = "kms_key_id"
	KeyRegion            = "aws.region"
	KeyProfile           = "aws.profile"
	KeyEndpoint          = "aws.endpoint"
)

// NewSettings returns a viper instance reading SECRETSEED_* environment variables.
// Command flags are bound onto it by the caller.
func NewSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SECRETSEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides layers flag and environment settings over the file.
// Only keys that were explicitly set take effect. The result is checked
// against the same schema as the file.
func (c *Config) ApplyOverrides(v *viper.Viper) error {
	if c.Definition == nil || v == nil {
		return nil
	}
	def := c.Definition

	if v.IsSet(KeyUseParameterStore) {
		def.UseParameterStore = v.GetBool(KeyUseParameterStore)
	}
	overrideString(v, KeyNamePrefix, &def.NamePrefix)
	overrideString(v, KeyKMSKeyID, &def.KMSKeyID)
	overrideString(v, KeyRegion, &def.AWS.Region)
	overrideString(v, KeyProfile, &def.AWS.Profile)
	overrideString(v, KeyEndpoint, &def.AWS.Endpoint)

	if err := def.validate(); err != nil {
		return fmt.Errorf("invalid flag or environment override: %w", err)
	}
	return nil
}

// validate re-checks a decoded definition against the schema
func (d *Definition) validate() error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return validateSchema(raw)
}

func overrideString(v *viper.Viper, key string, target *string) {
	if v.IsSet(key) {
		*target = v.GetString(key)
	}
}

// SinkKind returns the sink kind selected for the whole run
func (d *Definition) SinkKind() string {
	if d.UseParameterStore {
		return sink.KindParameterStore
	}
	return sink.KindSecretsManager
}

// AWSConfig converts the settings for the sink package
func (d *Definition) AWSConfig() sink.AWSConfig {
	return sink.AWSConfig{
		Region:          d.AWS.Region,
		Profile:         d.AWS.Profile,
		Endpoint:        d.AWS.Endpoint,
		AccessKeyID:     d.AWS.AccessKeyID,
		SecretAccessKey: d.AWS.SecretAccessKey,
	}
}

// SinkOptions converts the settings for the sink package
func (d *Definition) SinkOptions(logger *logging.Logger) sink.Options {
	return sink.Options{
		NamePrefix: d.NamePrefix,
		KMSKeyID:   d.KMSKeyID,
		Tags:       d.ResourceTags,
		Logger:     logger,
	}
}
