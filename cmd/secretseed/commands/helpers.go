package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/systmms/secretseed/internal/config"
	"github.com/systmms/secretseed/internal/history"
	"github.com/systmms/secretseed/internal/identity"
	"github.com/systmms/secretseed/internal/logging"
	"github.com/systmms/secretseed/internal/sink"
)

// newSink builds the sink a publish run writes to. Tests replace it.
var newSink = func(ctx context.Context, def *config.Definition, logger *logging.Logger) (sink.Sink, error) {
	return sink.New(ctx, def.UseParameterStore, def.AWSConfig(), def.SinkOptions(logger))
}

// newIdentityClient builds the STS client used by doctor. Tests replace it.
var newIdentityClient = func(ctx context.Context, def *config.Definition) (identity.STSClientAPI, string, error) {
	awsCfg, err := sink.LoadAWSConfig(ctx, def.AWSConfig())
	if err != nil {
		return nil, "", err
	}
	return identity.NewClient(awsCfg), awsCfg.Region, nil
}

// addNamingFlags registers the flags that change resource names
func addNamingFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().Bool("parameter-store", false, "Publish to SSM Parameter Store instead of Secrets Manager")
	cmd.Flags().String("name-prefix", "", "Prefix for created resource names")

	bindFlag(v, config.KeyUseParameterStore, cmd, "parameter-store")
	bindFlag(v, config.KeyNamePrefix, cmd, "name-prefix")
}

// addAWSFlags registers the flags that change how AWS is reached
func addAWSFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().String("kms-key-id", "", "KMS key for encrypting created resources")
	cmd.Flags().String("region", "", "AWS region")
	cmd.Flags().String("profile", "", "AWS shared config profile")
	cmd.Flags().String("endpoint", "", "Custom AWS endpoint (e.g. LocalStack)")

	bindFlag(v, config.KeyKMSKeyID, cmd, "kms-key-id")
	bindFlag(v, config.KeyRegion, cmd, "region")
	bindFlag(v, config.KeyProfile, cmd, "profile")
	bindFlag(v, config.KeyEndpoint, cmd, "endpoint")
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	_ = v.BindPFlag(key, cmd.Flags().Lookup(name))
}

// loadConfig loads the file and layers flag and environment overrides on top
func loadConfig(cfg *config.Config, v *viper.Viper) error {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(false, false)
	}
	if err := cfg.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyOverrides(v); err != nil {
		return err
	}
	cfg.Logger.Debug("Loaded %d secrets from %s (sink: %s)", len(cfg.Definition.Secrets), cfg.Path, cfg.Definition.SinkKind())
	return nil
}

// namingSink returns a sink that is only used for naming; it holds no client
func namingSink(def *config.Definition) sink.Sink {
	opts := def.SinkOptions(nil)
	if def.UseParameterStore {
		return sink.NewParameterStoreSink(nil, opts)
	}
	return sink.NewSecretsManagerSink(nil, opts)
}

// openHistory returns the SQLite store when dbPath is set, otherwise the
// JSON file store in dir
func openHistory(ctx context.Context, dir, dbPath string) (history.Store, func(), error) {
	if dbPath != "" {
		store, err := history.NewSQLStore(ctx, dbPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	if dir == "" {
		dir = history.DefaultDir()
	}
	return history.NewFileStore(dir), func() {}, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
