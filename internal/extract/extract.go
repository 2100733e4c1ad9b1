// Package extract reads secret values out of local source files.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/location"
	"github.com/systmms/secretseed/internal/logging"
	"gopkg.in/yaml.v3"
)

// Extractor resolves file-backed locations to their literal values
type Extractor struct {
	baseDir string
	logger  *logging.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithBaseDir resolves relative file paths against dir
func WithBaseDir(dir string) Option {
	return func(e *Extractor) {
		e.baseDir = dir
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *logging.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the value for a structured or credentials location.
// Failures are wrapped in a SecretError carrying the entry name.
func (e *Extractor) Extract(loc location.Location) (string, error) {
	var (
		value string
		err   error
	)

	switch loc.Kind {
	case location.KindStructuredFile:
		value, err = e.Structured(loc)
	case location.KindCredentialsFile:
		value, err = e.Credential(loc)
	case location.KindExistingReference:
		err = fmt.Errorf("existing references are passed through, not extracted")
	default:
		err = fmt.Errorf("%w: kind %s", dserrors.ErrAmbiguousLocation, loc.Kind)
	}

	if err != nil {
		return "", &dserrors.SecretError{
			Name:     loc.Name,
			Location: loc.Raw,
			Op:       "extract",
			Err:      err,
		}
	}

	e.logger.Debug("Extracted %s from %s (%s)", loc.Name, loc.Path, loc.Kind)
	return value, nil
}

// Structured parses the file as YAML (JSON is accepted as a YAML subset)
// and returns the top-level value stored under loc.Key.
func (e *Extractor) Structured(loc location.Location) (string, error) {
	data, err := e.readFile(loc.Path)
	if err != nil {
		return "", err
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("%w: %s: %v", dserrors.ErrParse, loc.Path, err)
	}
	if doc == nil {
		return "", fmt.Errorf("%w: %s: document is empty", dserrors.ErrParse, loc.Path)
	}

	node, ok := doc[loc.Key]
	if !ok {
		return "", fmt.Errorf("%w: %q in %s", dserrors.ErrKeyNotFound, loc.Key, loc.Path)
	}

	return scalarValue(node, loc)
}

// Credential scans a shared credentials file for "<field> = <value>".
//
// Without a profile this is a flat scan of the whole file and the first
// occurrence wins, whatever section it sits in. With a profile only the
// lines of that [profile] section are scanned.
func (e *Extractor) Credential(loc location.Location) (string, error) {
	data, err := e.readFile(loc.Path)
	if err != nil {
		return "", err
	}

	content := string(data)
	if loc.Profile != "" {
		section, ok := profileSection(content, loc.Profile)
		if !ok {
			return "", fmt.Errorf("%w: profile [%s] not found in %s", dserrors.ErrPatternNotMatched, loc.Profile, loc.Path)
		}
		content = section
	}

	// The match never crosses a line break.
	pattern := regexp.MustCompile(regexp.QuoteMeta(loc.Key) + `[ \t]*=[ \t]*(.*)`)
	match := pattern.FindStringSubmatch(content)
	if match == nil {
		return "", fmt.Errorf("%w: %s in %s", dserrors.ErrPatternNotMatched, loc.Key, loc.Path)
	}

	value := strings.TrimRight(match[1], " \t\r")
	if value == "" {
		return "", fmt.Errorf("%w: %s in %s has no value", dserrors.ErrPatternNotMatched, loc.Key, loc.Path)
	}
	return value, nil
}

func (e *Extractor) readFile(path string) ([]byte, error) {
	resolved := path
	if strings.HasPrefix(resolved, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			resolved = filepath.Join(home, resolved[2:])
		}
	}
	if !filepath.IsAbs(resolved) && e.baseDir != "" {
		resolved = filepath.Join(e.baseDir, resolved)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", dserrors.ErrFileNotFound, resolved)
		}
		return nil, fmt.Errorf("failed to read %s: %w", resolved, err)
	}
	return data, nil
}

func scalarValue(node yaml.Node, loc location.Location) (string, error) {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = *node.Alias
	}
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("%w: %q in %s is not a scalar value", dserrors.ErrParse, loc.Key, loc.Path)
	}
	if node.Tag == "!!null" {
		return "", fmt.Errorf("%w: %q in %s is null", dserrors.ErrKeyNotFound, loc.Key, loc.Path)
	}
	if node.Value == "" {
		return "", fmt.Errorf("%w: %q in %s is empty", dserrors.ErrKeyNotFound, loc.Key, loc.Path)
	}
	return node.Value, nil
}

var sectionHeader = regexp.MustCompile(`^\s*\[\s*([^\]]+?)\s*\]\s*$`)

// profileSection returns the body of the named [profile] section
func profileSection(content, profile string) (string, bool) {
	var (
		body    []string
		inside  bool
		matched bool
	)

	for _, line := range strings.Split(content, "\n") {
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			inside = m[1] == profile || m[1] == "profile "+profile
			matched = matched || inside
			continue
		}
		if inside {
			body = append(body, line)
		}
	}

	return strings.Join(body, "\n"), matched
}
