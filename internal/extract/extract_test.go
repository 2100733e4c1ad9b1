package extract_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/extract"
	"github.com/systmms/secretseed/internal/location"
)

const credentialsFile = `[default]
aws_access_key_id = AKIADEFAULT00000000
aws_secret_access_key = defaultsecretkey/abc

[prod]
aws_access_key_id=AKIAPROD000000000000
aws_secret_access_key =   prodsecretkey+xyz
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func classify(t *testing.T, name, raw string) location.Location {
	t.Helper()
	loc, err := location.Classify(name, raw)
	require.NoError(t, err)
	return loc
}

func TestStructured(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "secrets/app.yaml", `
db_pass: s3cr3t
port: 5432
enabled: true
multiline: |
  line one
  line two
nested:
  inner: value
list: [a, b]
empty:
blank: ""
base: &anchor shared
alias: *anchor
`)
	writeFile(t, dir, "secrets/app.json", `{"db_pass": "s3cr3t", "api_key": "k-123"}`)
	writeFile(t, dir, "secrets/broken.yaml", "db_pass: [unterminated\n")
	writeFile(t, dir, "secrets/list.json", `["a", "b"]`)
	writeFile(t, dir, "secrets/blank.yml", "")

	ex := extract.New(extract.WithBaseDir(dir))

	tests := []struct {
		name      string
		secret    string
		raw       string
		expected  string
		expectErr error
	}{
		{name: "explicit key", secret: "db_pass", raw: "secrets/app.yaml:db_pass", expected: "s3cr3t"},
		{name: "key from secret name", secret: "db_pass", raw: "secrets/app.yaml", expected: "s3cr3t"},
		{name: "json file", secret: "token", raw: "secrets/app.json:api_key", expected: "k-123"},
		{name: "integer rendered as text", secret: "port", raw: "secrets/app.yaml", expected: "5432"},
		{name: "boolean rendered as text", secret: "enabled", raw: "secrets/app.yaml", expected: "true"},
		{name: "block scalar preserved", secret: "multiline", raw: "secrets/app.yaml", expected: "line one\nline two\n"},
		{name: "alias resolved", secret: "alias", raw: "secrets/app.yaml", expected: "shared"},
		{name: "missing key", secret: "nope", raw: "secrets/app.yaml", expectErr: dserrors.ErrKeyNotFound},
		{name: "null value", secret: "empty", raw: "secrets/app.yaml", expectErr: dserrors.ErrKeyNotFound},
		{name: "empty string value", secret: "blank", raw: "secrets/app.yaml", expectErr: dserrors.ErrKeyNotFound},
		{name: "mapping value", secret: "nested", raw: "secrets/app.yaml", expectErr: dserrors.ErrParse},
		{name: "sequence value", secret: "list", raw: "secrets/app.yaml", expectErr: dserrors.ErrParse},
		{name: "nested key path unsupported", secret: "x", raw: "secrets/app.yaml:nested.inner", expectErr: dserrors.ErrKeyNotFound},
		{name: "malformed yaml", secret: "db_pass", raw: "secrets/broken.yaml", expectErr: dserrors.ErrParse},
		{name: "top level sequence", secret: "a", raw: "secrets/list.json", expectErr: dserrors.ErrParse},
		{name: "empty document", secret: "a", raw: "secrets/blank.yml", expectErr: dserrors.ErrParse},
		{name: "missing file", secret: "db_pass", raw: "secrets/absent.yaml", expectErr: dserrors.ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := ex.Extract(classify(t, tt.secret, tt.raw))
			if tt.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)

				var secretErr *dserrors.SecretError
				require.True(t, errors.As(err, &secretErr))
				assert.Equal(t, "extract", secretErr.Op)
				assert.Equal(t, tt.secret, secretErr.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestCredential(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "creds/aws_credentials", credentialsFile)
	writeFile(t, dir, "creds/other_credentials", "region = us-east-1\n")
	writeFile(t, dir, "creds/blank_credentials", "[default]\naws_access_key_id =\naws_secret_access_key = TOPSECRET\n")

	ex := extract.New(extract.WithBaseDir(dir))

	tests := []struct {
		name      string
		raw       string
		expected  string
		expectErr error
	}{
		{name: "first access key wins", raw: "creds/aws_credentials:aws_access_key_id", expected: "AKIADEFAULT00000000"},
		{name: "first secret key wins", raw: "creds/aws_credentials:aws_secret_access_key", expected: "defaultsecretkey/abc"},
		{name: "profile scoped access key", raw: "creds/aws_credentials:prod:aws_access_key_id", expected: "AKIAPROD000000000000"},
		{name: "profile scoped value trimmed", raw: "creds/aws_credentials:prod:aws_secret_access_key", expected: "prodsecretkey+xyz"},
		{name: "unknown profile", raw: "creds/aws_credentials:staging:aws_access_key_id", expectErr: dserrors.ErrPatternNotMatched},
		{name: "empty value does not read next line", raw: "creds/blank_credentials:aws_access_key_id", expectErr: dserrors.ErrPatternNotMatched},
		{name: "line after empty value still readable", raw: "creds/blank_credentials:aws_secret_access_key", expected: "TOPSECRET"},
		{name: "field absent", raw: "creds/other_credentials:aws_access_key_id", expectErr: dserrors.ErrPatternNotMatched},
		{name: "missing file", raw: "creds/none_credentials:aws_access_key_id", expectErr: dserrors.ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := ex.Extract(classify(t, "aws", tt.raw))
			if tt.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestCredentialAbsolutePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "credentials", "aws_access_key_id = AKIA1234567890ABCDEF\n")

	// base dir must not be applied to absolute paths
	ex := extract.New(extract.WithBaseDir("/does/not/exist"))
	value, err := ex.Extract(classify(t, "aws_id", filepath.Join(dir, "credentials")+":aws_access_key_id"))
	require.NoError(t, err)
	assert.Equal(t, "AKIA1234567890ABCDEF", value)
}

func TestExtractExistingReference(t *testing.T) {
	t.Parallel()

	ex := extract.New()
	_, err := ex.Extract(classify(t, "api_key", "arn:aws:secretsmanager:us-east-1:123456789012:secret:api_key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passed through")
}
