package sink

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// AWSConfig holds connection settings for the AWS clients
type AWSConfig struct {
	Region   string
	Profile  string
	Endpoint string // Optional custom endpoint for LocalStack or testing

	// Static credentials, mainly for LocalStack
	AccessKeyID     string
	SecretAccessKey string
}

// LoadAWSConfig resolves an aws.Config through the default credential chain
func LoadAWSConfig(ctx context.Context, c AWSConfig) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error

	if c.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(c.Region))
	}
	if c.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if c.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(c.Endpoint)
	}
	return cfg, nil
}

// New builds the sink selected by useParameterStore
func New(ctx context.Context, useParameterStore bool, awsCfg AWSConfig, opts Options) (Sink, error) {
	cfg, err := LoadAWSConfig(ctx, awsCfg)
	if err != nil {
		return nil, err
	}

	if useParameterStore {
		return NewParameterStoreSink(ssm.NewFromConfig(cfg), opts), nil
	}
	return NewSecretsManagerSink(secretsmanager.NewFromConfig(cfg), opts), nil
}
