package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Values stored in the standard source fixtures
const (
	FixtureDBPass         = "s3cr3t"
	FixtureAPIToken       = "tok-123"
	FixtureAccessKeyID    = "AKIA123"
	FixtureSecretKey      = "abc/def"
	FixtureCIAccessKeyID  = "AKIACI999"
	FixtureExistingSecret = "arn:aws:secretsmanager:us-east-1:123456789012:secret:prod/api-AbCdEf"
	FixtureExistingParam  = "arn:aws:ssm:us-east-1:123456789012:parameter/prod/db"
)

// SourceFixtures are the files written by WriteSourceFixtures
var SourceFixtures = map[string]string{
	"secrets.yaml": "db_pass: " + FixtureDBPass + "\napi_token: " + FixtureAPIToken + "\n",
	"secrets.json": `{"db_pass": "` + FixtureDBPass + `", "port": 5432, "nested": {"a": 1}}`,
	"credentials": "[default]\n" +
		"aws_access_key_id = " + FixtureAccessKeyID + "\n" +
		"aws_secret_access_key = " + FixtureSecretKey + "\n" +
		"\n" +
		"[ci]\n" +
		"aws_access_key_id = " + FixtureCIAccessKeyID + "\n",
}

// WriteFiles writes name → content pairs into dir, creating parent directories
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("Failed to write fixture %s: %v", name, err)
		}
	}
}

// WriteSourceFixtures writes the standard secret source files into a new
// temp dir and returns it
func WriteSourceFixtures(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	WriteFiles(t, dir, SourceFixtures)
	return dir
}
