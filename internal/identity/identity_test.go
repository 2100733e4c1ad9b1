package identity_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretseed/internal/identity"
	"github.com/systmms/secretseed/tests/fakes"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeSTSClient()
	caller, err := identity.Resolve(context.Background(), client, "eu-west-1")
	require.NoError(t, err)

	assert.Equal(t, "123456789012", caller.Account)
	assert.Equal(t, "arn:aws:iam::123456789012:user/ci", caller.ARN)
	assert.Equal(t, "eu-west-1", caller.Region)
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	t.Run("sts failure", func(t *testing.T) {
		client := fakes.NewFakeSTSClient()
		client.Err = fmt.Errorf("NoCredentialProviders: no valid providers in chain")

		_, err := identity.Resolve(context.Background(), client, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "caller identity")
		assert.Contains(t, err.Error(), "aws configure")
	})

	t.Run("empty account", func(t *testing.T) {
		client := fakes.NewFakeSTSClient()
		client.Account = ""

		_, err := identity.Resolve(context.Background(), client, "")
		require.Error(t, err)
	})
}
