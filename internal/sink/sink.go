// Package sink publishes secret values to AWS Secrets Manager or SSM
// Parameter Store.
package sink

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/systmms/secretseed/internal/logging"
)

// Sink kinds
const (
	KindSecretsManager = "secretsmanager"
	KindParameterStore = "ssm"
)

// Sink creates one resource per published secret
type Sink interface {
	// Kind returns KindSecretsManager or KindParameterStore
	Kind() string

	// ResourceName returns the name a secret would be created under
	ResourceName(name, suffix string) string

	// Publish creates a new resource holding value and returns its identifier
	Publish(ctx context.Context, name, value, suffix string) (string, error)

	// Read returns the current value of a published resource
	Read(ctx context.Context, identifier string) (string, error)

	// Delete removes a published resource; used to roll back failed runs
	Delete(ctx context.Context, identifier string) error
}

// Options holds settings shared by both sinks
type Options struct {
	NamePrefix string
	KMSKeyID   string
	Tags       map[string]string
	Logger     *logging.Logger
}

func (o Options) logger() *logging.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

const (
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength   = 6
)

// NewSuffix returns a short random suffix. One suffix is drawn per run and
// shared by every resource that run creates.
func NewSuffix() (string, error) {
	return suffixFrom(rand.Reader)
}

// suffixFrom draws suffix characters from r, discarding bytes at or above
// the largest multiple of the alphabet size so every character is equally likely.
func suffixFrom(r io.Reader) (string, error) {
	limit := byte(256 - 256%len(suffixAlphabet))

	var sb strings.Builder
	sb.Grow(suffixLength)
	buf := make([]byte, suffixLength)
	for sb.Len() < suffixLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to generate name suffix: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			sb.WriteByte(suffixAlphabet[int(b)%len(suffixAlphabet)])
			if sb.Len() == suffixLength {
				break
			}
		}
	}
	return sb.String(), nil
}

// SecretName is the Secrets Manager naming scheme: "{prefix}{name}-{suffix}"
func SecretName(prefix, name, suffix string) string {
	return prefix + name + "-" + suffix
}

// ParameterName is the Parameter Store naming scheme: "/{prefix}{suffix}/{name}"
func ParameterName(prefix, name, suffix string) string {
	return "/" + prefix + suffix + "/" + name
}
