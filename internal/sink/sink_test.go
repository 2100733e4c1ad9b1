package sink_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/sink"
	"github.com/systmms/secretseed/tests/fakes"
)

func TestNewSuffix(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^[a-z0-9]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		suffix, err := sink.NewSuffix()
		require.NoError(t, err)
		assert.Regexp(t, pattern, suffix)
		seen[suffix] = true
	}
	// 36^6 possibilities; fifty draws colliding down to a handful would mean a broken generator
	assert.Greater(t, len(seen), 45)
}

func TestNaming(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "app-db_pass-x1y2z3", sink.SecretName("app-", "db_pass", "x1y2z3"))
	assert.Equal(t, "db_pass-x1y2z3", sink.SecretName("", "db_pass", "x1y2z3"))
	assert.Equal(t, "/app-x1y2z3/db_pass", sink.ParameterName("app-", "db_pass", "x1y2z3"))
	assert.Equal(t, "/x1y2z3/db_pass", sink.ParameterName("", "db_pass", "x1y2z3"))
}

func TestSecretsManagerSinkPublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakes.NewFakeSecretsManagerClient()
	s := sink.NewSecretsManagerSink(client, sink.Options{
		NamePrefix: "app-",
		KMSKeyID:   "alias/app",
		Tags:       map[string]string{"team": "platform"},
	})
	assert.Equal(t, sink.KindSecretsManager, s.Kind())

	arn, err := s.Publish(ctx, "db_pass", "s3cr3t", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:secretsmanager:us-east-1:123456789012:secret:app-db_pass-abc123-AbCdEf", arn)

	stored := client.Secrets["app-db_pass-abc123"]
	require.NotNil(t, stored)
	assert.Equal(t, "alias/app", aws.ToString(stored.KmsKeyId))
	assert.Equal(t, map[string]string{"team": "platform"}, stored.Tags)
	assert.Equal(t, 1, stored.Versions)

	value, err := s.Read(ctx, arn)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
}

func TestSecretsManagerSinkNamingConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakes.NewFakeSecretsManagerClient()
	s := sink.NewSecretsManagerSink(client, sink.Options{})

	_, err := s.Publish(ctx, "db_pass", "one", "abc123")
	require.NoError(t, err)

	_, err = s.Publish(ctx, "db_pass", "two", "abc123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dserrors.ErrNamingConflict))

	// original value untouched
	value, err := s.Read(ctx, "db_pass-abc123")
	require.NoError(t, err)
	assert.Equal(t, "one", value)
}

func TestSecretsManagerSinkValueWriteFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakes.NewFakeSecretsManagerClient()
	client.PutSecretValueFunc = func(ctx context.Context, params *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error) {
		return nil, fmt.Errorf("AccessDeniedException: no PutSecretValue")
	}
	s := sink.NewSecretsManagerSink(client, sink.Options{})

	_, err := s.Publish(ctx, "db_pass", "s3cr3t", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PutSecretValue")

	// the empty secret was cleaned up
	assert.Empty(t, client.Names())
	assert.Equal(t, []string{"db_pass-abc123"}, client.Deleted)
}

func TestSecretsManagerSinkDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakes.NewFakeSecretsManagerClient()
	s := sink.NewSecretsManagerSink(client, sink.Options{})

	arn, err := s.Publish(ctx, "api", "v", "abc123")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, arn))
	assert.Empty(t, client.Names())

	// deleting twice is not an error
	require.NoError(t, s.Delete(ctx, arn))
}

func TestParameterStoreSinkPublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakes.NewFakeSSMClient()
	s := sink.NewParameterStoreSink(client, sink.Options{
		NamePrefix: "app-",
		KMSKeyID:   "alias/app",
		Tags:       map[string]string{"env": "prod", "team": "platform"},
	})
	assert.Equal(t, sink.KindParameterStore, s.Kind())

	id, err := s.Publish(ctx, "db_pass", "s3cr3t", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "/app-abc123/db_pass", id)

	stored := client.Parameters[id]
	require.NotNil(t, stored)
	assert.Equal(t, ssmtypes.ParameterTypeSecureString, stored.Type)
	assert.Equal(t, "alias/app", aws.ToString(stored.KeyId))
	assert.Equal(t, map[string]string{"env": "prod", "team": "platform"}, stored.Tags)

	value, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
}

func TestParameterStoreSinkNamingConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakes.NewFakeSSMClient()
	s := sink.NewParameterStoreSink(client, sink.Options{})

	_, err := s.Publish(ctx, "db_pass", "one", "abc123")
	require.NoError(t, err)

	_, err = s.Publish(ctx, "db_pass", "two", "abc123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dserrors.ErrNamingConflict))
	assert.Equal(t, "one", client.Parameters["/abc123/db_pass"].Value)
}

func TestParameterStoreSinkErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := fakes.NewFakeSSMClient()
	client.PutParameterFunc = func(ctx context.Context, params *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
		return nil, fmt.Errorf("AccessDeniedException: denied")
	}
	s := sink.NewParameterStoreSink(client, sink.Options{})

	_, err := s.Publish(ctx, "db_pass", "v", "abc123")
	require.Error(t, err)

	var userErr dserrors.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Contains(t, userErr.Suggestion, "ssm:PutParameter")

	_, err = s.Read(ctx, "/missing")
	require.Error(t, err)

	require.NoError(t, s.Delete(ctx, "/missing"))
}

func TestResourceName(t *testing.T) {
	t.Parallel()

	opts := sink.Options{NamePrefix: "svc-"}
	sm := sink.NewSecretsManagerSink(fakes.NewFakeSecretsManagerClient(), opts)
	ps := sink.NewParameterStoreSink(fakes.NewFakeSSMClient(), opts)

	assert.Equal(t, "svc-token-zz9", sm.ResourceName("token", "zz9"))
	assert.Equal(t, "/svc-zz9/token", ps.ResourceName("token", "zz9"))
}
