package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/logging"
)

// SSMClientAPI defines the subset of AWS SSM Parameter Store operations
// used by the sink. This allows for mocking in tests.
type SSMClientAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error)
}

// ParameterStoreSink creates one SecureString parameter per entry
type ParameterStoreSink struct {
	client SSMClientAPI
	opts   Options
	logger *logging.Logger
}

// NewParameterStoreSink creates a Parameter Store sink
func NewParameterStoreSink(client SSMClientAPI, opts Options) *ParameterStoreSink {
	return &ParameterStoreSink{
		client: client,
		opts:   opts,
		logger: opts.logger(),
	}
}

// Kind returns KindParameterStore
func (p *ParameterStoreSink) Kind() string {
	return KindParameterStore
}

// ResourceName returns "/{prefix}{suffix}/{name}"
func (p *ParameterStoreSink) ResourceName(name, suffix string) string {
	return ParameterName(p.opts.NamePrefix, name, suffix)
}

// Publish creates the parameter. Existing parameters are never overwritten.
// The returned identifier is the parameter name.
func (p *ParameterStoreSink) Publish(ctx context.Context, name, value, suffix string) (string, error) {
	parameterName := p.ResourceName(name, suffix)

	input := &ssm.PutParameterInput{
		Name:      aws.String(parameterName),
		Value:     aws.String(value),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(false),
		Tags:      parameterTags(p.opts.Tags),
	}
	if p.opts.KMSKeyID != "" {
		input.KeyId = aws.String(p.opts.KMSKeyID)
	}

	p.logger.Debug("Creating parameter %s", parameterName)
	if _, err := p.client.PutParameter(ctx, input); err != nil {
		var exists *types.ParameterAlreadyExists
		if errors.As(err, &exists) {
			return "", fmt.Errorf("%w: parameter %s already exists", dserrors.ErrNamingConflict, parameterName)
		}
		return "", dserrors.ProviderError(KindParameterStore, "PutParameter", err)
	}

	return parameterName, nil
}

// Read returns the decrypted value of a parameter
func (p *ParameterStoreSink) Read(ctx context.Context, identifier string) (string, error) {
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(identifier),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", dserrors.ProviderError(KindParameterStore, "GetParameter", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter has no value")
	}
	return *out.Parameter.Value, nil
}

// Delete removes a parameter
func (p *ParameterStoreSink) Delete(ctx context.Context, identifier string) error {
	_, err := p.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(identifier),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return dserrors.ProviderError(KindParameterStore, "DeleteParameter", err)
	}
	return nil
}

func parameterTags(tags map[string]string) []types.Tag {
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
