package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretseed/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "aws.region",
		Value:      "mars-1",
		Message:    "unknown region",
		Suggestion: "Use a region such as us-east-1",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "aws.region")
	assert.Contains(t, errMsg, "mars-1")
	assert.Contains(t, errMsg, "unknown region")
	assert.Contains(t, errMsg, "us-east-1")
}

func TestSecretErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := &errors.SecretError{
		Name:     "db_pass",
		Location: "secrets/app.yaml:db_pass",
		Op:       "extract",
		Err:      fmt.Errorf("%w: db_pass", errors.ErrKeyNotFound),
	}

	assert.True(t, stderrors.Is(err, errors.ErrKeyNotFound))
	assert.Contains(t, err.Error(), `secret "db_pass"`)
	assert.Contains(t, err.Error(), "secrets/app.yaml:db_pass")
	assert.Contains(t, err.Error(), "extract")

	wrapped := fmt.Errorf("run failed: %w", err)
	var secretErr *errors.SecretError
	require.True(t, stderrors.As(wrapped, &secretErr))
	assert.Equal(t, "db_pass", secretErr.Name)
}

func TestProviderErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sink     string
		err      error
		contains string
	}{
		{
			name:     "naming conflict",
			sink:     "secretsmanager",
			err:      fmt.Errorf("%w: app-db-abc123", errors.ErrNamingConflict),
			contains: "suffix",
		},
		{
			name:     "api error code",
			sink:     "ssm",
			err:      &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "User is not authorized"},
			contains: "ssm:PutParameter",
		},
		{
			name:     "secretsmanager access denied",
			sink:     "secretsmanager",
			err:      fmt.Errorf("AccessDeniedException: not allowed"),
			contains: "secretsmanager:CreateSecret",
		},
		{
			name:     "ssm access denied",
			sink:     "ssm",
			err:      fmt.Errorf("AccessDeniedException: not allowed"),
			contains: "ssm:PutParameter",
		},
		{
			name:     "throttling",
			sink:     "ssm",
			err:      fmt.Errorf("ThrottlingException: slow down"),
			contains: "rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.ProviderError(tt.sink, "publish", tt.err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.True(t, stderrors.Is(err, tt.err))
		})
	}
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, errors.SimplifyError(nil))
	})

	t.Run("user error unchanged", func(t *testing.T) {
		orig := errors.UserError{Message: "already friendly"}
		assert.Equal(t, orig, errors.SimplifyError(orig))
	})

	t.Run("taxonomy errors get suggestions", func(t *testing.T) {
		cases := map[error]string{
			errors.ErrAmbiguousLocation: "could not be classified",
			errors.ErrFileNotFound:      "file not found",
			errors.ErrKeyNotFound:       "key missing",
			errors.ErrPatternNotMatched: "Credential field",
			errors.ErrParse:             "not valid YAML",
		}
		for sentinel, want := range cases {
			err := &errors.SecretError{Name: "x", Op: "extract", Err: sentinel}
			simplified := errors.SimplifyError(err)
			assert.Contains(t, simplified.Error(), want)
			assert.True(t, stderrors.Is(simplified, sentinel))
		}
	})

	t.Run("unknown error returned as is", func(t *testing.T) {
		orig := fmt.Errorf("something odd")
		assert.Equal(t, orig, errors.SimplifyError(orig))
	})
}
