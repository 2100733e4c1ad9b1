package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/logging"
)

// SecretsManagerClientAPI defines the subset of AWS Secrets Manager operations
// used by the sink. This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// SecretsManagerSink creates one secret, plus a value version, per entry
type SecretsManagerSink struct {
	client SecretsManagerClientAPI
	opts   Options
	logger *logging.Logger
}

// NewSecretsManagerSink creates a Secrets Manager sink
func NewSecretsManagerSink(client SecretsManagerClientAPI, opts Options) *SecretsManagerSink {
	return &SecretsManagerSink{
		client: client,
		opts:   opts,
		logger: opts.logger(),
	}
}

// Kind returns KindSecretsManager
func (s *SecretsManagerSink) Kind() string {
	return KindSecretsManager
}

// ResourceName returns "{prefix}{name}-{suffix}"
func (s *SecretsManagerSink) ResourceName(name, suffix string) string {
	return SecretName(s.opts.NamePrefix, name, suffix)
}

// Publish creates the secret and stores value as its first version.
// The returned identifier is the secret ARN.
func (s *SecretsManagerSink) Publish(ctx context.Context, name, value, suffix string) (string, error) {
	secretName := s.ResourceName(name, suffix)

	input := &secretsmanager.CreateSecretInput{
		Name:        aws.String(secretName),
		Description: aws.String(fmt.Sprintf("%s published by secretseed", name)),
		Tags:        secretTags(s.opts.Tags),
	}
	if s.opts.KMSKeyID != "" {
		input.KmsKeyId = aws.String(s.opts.KMSKeyID)
	}

	s.logger.Debug("Creating secret %s", secretName)
	created, err := s.client.CreateSecret(ctx, input)
	if err != nil {
		var exists *types.ResourceExistsException
		if errors.As(err, &exists) {
			return "", fmt.Errorf("%w: secret %s already exists", dserrors.ErrNamingConflict, secretName)
		}
		return "", dserrors.ProviderError(KindSecretsManager, "CreateSecret", err)
	}

	arn := aws.ToString(created.ARN)
	if arn == "" {
		arn = secretName
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(arn),
		SecretString: aws.String(value),
	})
	if err != nil {
		// the empty secret is useless without its value
		if derr := s.Delete(ctx, arn); derr != nil {
			s.logger.Warn("Failed to remove secret %s after failed value write: %v", secretName, derr)
		}
		return "", dserrors.ProviderError(KindSecretsManager, "PutSecretValue", err)
	}

	return arn, nil
}

// Read returns the current value of a secret
func (s *SecretsManagerSink) Read(ctx context.Context, identifier string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(identifier),
	})
	if err != nil {
		return "", dserrors.ProviderError(KindSecretsManager, "GetSecretValue", err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	if out.SecretBinary != nil {
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("secret '%s' has no value", identifier)
}

// Delete removes a secret immediately, skipping the recovery window
func (s *SecretsManagerSink) Delete(ctx context.Context, identifier string) error {
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(identifier),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return dserrors.ProviderError(KindSecretsManager, "DeleteSecret", err)
	}
	return nil
}

func secretTags(tags map[string]string) []types.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := sortedKeys(tags)
	out := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
