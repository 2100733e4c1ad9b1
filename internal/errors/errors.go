package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// Sentinel errors for the publish pipeline. Every one of them aborts the run.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrParse             = errors.New("parse error")
	ErrKeyNotFound       = errors.New("key not found")
	ErrPatternNotMatched = errors.New("pattern not matched")
	ErrNamingConflict    = errors.New("naming conflict")
	ErrAmbiguousLocation = errors.New("ambiguous location")
)

// SecretError ties a pipeline failure to the secret entry that caused it
type SecretError struct {
	Name     string
	Location string
	Op       string // classify, extract, publish, verify
	Err      error
}

func (e *SecretError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("secret %q (%s): %s: %v", e.Name, e.Location, e.Op, e.Err)
	}
	return fmt.Sprintf("secret %q: %s: %v", e.Name, e.Op, e.Err)
}

func (e *SecretError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderError enhances AWS sink errors with context
func ProviderError(sink string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", sink, operation),
		Details:    err.Error(),
		Suggestion: getProviderSuggestion(sink, err),
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on sink and error
func getProviderSuggestion(sink string, err error) string {
	errStr := err.Error()
	if code := apiErrorCode(err); code != "" {
		errStr = code + " " + errStr
	}

	if errors.Is(err, ErrNamingConflict) {
		return "A resource with the generated name already exists. Re-run to draw a new suffix or change name_prefix"
	}

	switch sink {
	case "secretsmanager":
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:CreateSecret and secretsmanager:PutSecretValue"
		}
		if strings.Contains(errStr, "KMS") {
			return "Verify kms_key_id exists in the target region and the caller may use it"
		}

	case "ssm":
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for ssm:PutParameter and ssm:AddTagsToResource"
		}
		if strings.Contains(errStr, "ParameterLimitExceeded") {
			return "The account parameter limit is reached. Delete unused parameters or use the secret store"
		}
	}

	if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
		return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
	}
	if strings.Contains(errStr, "ThrottlingException") {
		return "AWS rate limit exceeded. Wait a moment and try again"
	}
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network, region and endpoint configuration"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	switch {
	case errors.Is(err, ErrAmbiguousLocation):
		return UserError{
			Message:    "Secret location could not be classified",
			Details:    err.Error(),
			Suggestion: "Use an ARN, a .json/.yaml/.yml file path, or '<credentials file>:aws_access_key_id'",
			Err:        err,
		}
	case errors.Is(err, ErrFileNotFound):
		return UserError{
			Message:    "Secret source file not found",
			Details:    err.Error(),
			Suggestion: "Paths are resolved relative to the configuration file directory",
			Err:        err,
		}
	case errors.Is(err, ErrKeyNotFound):
		return UserError{
			Message:    "Secret key missing from source file",
			Details:    err.Error(),
			Suggestion: "Add the key to the file or set an explicit key with '<file>:<key>'",
			Err:        err,
		}
	case errors.Is(err, ErrPatternNotMatched):
		return UserError{
			Message:    "Credential field not found in credentials file",
			Details:    err.Error(),
			Suggestion: "Expected a line of the form 'aws_access_key_id = ...'",
			Err:        err,
		}
	case errors.Is(err, ErrParse):
		return UserError{
			Message:    "Secret source file is not valid YAML or JSON",
			Details:    err.Error(),
			Suggestion: "Check for indentation errors and missing quotes",
			Err:        err,
		}
	}

	errStr := err.Error()

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	return err
}

// apiErrorCode returns the AWS error code carried by err, if any
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
