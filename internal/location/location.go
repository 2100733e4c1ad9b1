// Package location classifies configured secret locations.
//
// A location is one of:
//
//   - an ARN of an existing Secrets Manager secret or SSM parameter, passed through as is
//   - "<file>.yaml[:<key>]" (also .yml and .json), a value read from a structured file
//   - "<credentials file>[:<profile>]:aws_access_key_id" (or aws_secret_access_key),
//     a value scanned out of an AWS shared credentials file
//
// Classification looks only at the text of the location. Files are read later
// by the extract package.
package location

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	dserrors "github.com/systmms/secretseed/internal/errors"
)

// Kind identifies how a location is resolved
type Kind int

const (
	KindUnknown Kind = iota
	KindExistingReference
	KindStructuredFile
	KindCredentialsFile
)

func (k Kind) String() string {
	switch k {
	case KindExistingReference:
		return "existing"
	case KindStructuredFile:
		return "structured"
	case KindCredentialsFile:
		return "credentials"
	default:
		return "unknown"
	}
}

// CredentialFields lists the credentials file fields that may be extracted
var CredentialFields = []string{"aws_access_key_id", "aws_secret_access_key"}

var (
	arnPattern        = regexp.MustCompile(`^arn:aws[a-z-]*:(secretsmanager|ssm):`)
	structuredSuffix  = regexp.MustCompile(`(?i)\.(json|ya?ml)$`)
	credentialsMarker = "credentials:"
)

// Location is a classified secret entry
type Location struct {
	Name string
	Raw  string
	Kind Kind

	// Path is the source file for file-backed kinds.
	Path string
	// Key is the mapping key (structured) or credential field (credentials).
	Key string
	// Profile optionally restricts a credentials scan to one [profile] section.
	Profile string
}

// IsNew reports whether the entry needs a value extracted and published
func (l Location) IsNew() bool {
	return l.Kind == KindStructuredFile || l.Kind == KindCredentialsFile
}

// Classify determines the kind of a location and parses its components.
// Locations matching no rule, or more than one, fail with ErrAmbiguousLocation.
func Classify(name, raw string) (Location, error) {
	loc := Location{Name: name, Raw: raw}

	if strings.TrimSpace(raw) == "" {
		return loc, ambiguous(name, raw, "location is empty")
	}

	var matched []Kind
	if isExistingReference(raw) {
		matched = append(matched, KindExistingReference)
	}
	structured := isStructured(raw)
	if structured {
		matched = append(matched, KindStructuredFile)
	}
	if !structured && isCredentials(raw) {
		matched = append(matched, KindCredentialsFile)
	}

	switch len(matched) {
	case 0:
		return loc, ambiguous(name, raw, "matches no known location form")
	case 1:
	default:
		return loc, ambiguous(name, raw, fmt.Sprintf("matches several location forms (%s)", joinKinds(matched)))
	}

	loc.Kind = matched[0]
	switch loc.Kind {
	case KindExistingReference:
	case KindStructuredFile:
		loc.Path, loc.Key = splitFirst(raw)
		if loc.Key == "" {
			loc.Key = name
		}
	case KindCredentialsFile:
		parseCredentials(&loc)
	}

	return loc, nil
}

// ClassifyAll classifies every entry of a secrets map. The result is sorted by
// name. All classification failures are reported together.
func ClassifyAll(secrets map[string]string) ([]Location, error) {
	names := make([]string, 0, len(secrets))
	for name := range secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	locations := make([]Location, 0, len(names))
	var errs []error
	for _, name := range names {
		loc, err := Classify(name, secrets[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return locations, nil
}

func isExistingReference(raw string) bool {
	return arnPattern.MatchString(raw)
}

func isStructured(raw string) bool {
	path, _ := splitFirst(raw)
	return structuredSuffix.MatchString(path)
}

func isCredentials(raw string) bool {
	if !strings.Contains(raw, credentialsMarker) {
		return false
	}
	for _, field := range CredentialFields {
		if strings.Contains(raw, ":"+field) {
			return true
		}
	}
	return false
}

// parseCredentials handles "<path>:<field>" and "<path>:<profile>:<field>"
func parseCredentials(loc *Location) {
	// the file path ends at the first "credentials:"
	idx := strings.Index(loc.Raw, credentialsMarker)
	loc.Path = loc.Raw[:idx+len(credentialsMarker)-1]
	rest := loc.Raw[idx+len(credentialsMarker):]

	if sep := strings.LastIndex(rest, ":"); sep >= 0 {
		loc.Profile = rest[:sep]
		loc.Key = rest[sep+1:]
		return
	}
	loc.Key = rest
}

func splitFirst(raw string) (string, string) {
	path, key, _ := strings.Cut(raw, ":")
	return path, key
}

func joinKinds(kinds []Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

func ambiguous(name, raw, reason string) error {
	return &dserrors.SecretError{
		Name:     name,
		Location: raw,
		Op:       "classify",
		Err:      fmt.Errorf("%w: %s", dserrors.ErrAmbiguousLocation, reason),
	}
}
