package publish

import (
	"github.com/systmms/secretseed/internal/location"
	"github.com/systmms/secretseed/internal/sink"
)

// SuffixPlaceholder stands in for the per-run suffix in planned names
const SuffixPlaceholder = "<suffix>"

// PlannedEntry describes what a run would do with one secret
type PlannedEntry struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Key      string `json:"key,omitempty"`
	Profile  string `json:"profile,omitempty"`
	// Target is the existing reference, or the resource name to be created
	Target string `json:"target"`
}

// Plan is the classification of a secrets map, without any I/O
type Plan struct {
	Sink    string         `json:"sink"`
	Entries []PlannedEntry `json:"entries"`
	Counts  map[string]int `json:"counts"`
}

// BuildPlan classifies secrets and names the resources a run would create
// in s. Nothing is read or published.
func BuildPlan(secrets map[string]string, s sink.Sink) (*Plan, error) {
	locs, err := location.ClassifyAll(secrets)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Sink:    s.Kind(),
		Entries: make([]PlannedEntry, 0, len(locs)),
		Counts: map[string]int{
			location.KindExistingReference.String(): 0,
			location.KindStructuredFile.String():    0,
			location.KindCredentialsFile.String():   0,
		},
	}

	for _, loc := range locs {
		entry := PlannedEntry{
			Name:     loc.Name,
			Location: loc.Raw,
			Kind:     loc.Kind.String(),
			Path:     loc.Path,
			Key:      loc.Key,
			Profile:  loc.Profile,
			Target:   loc.Raw,
		}
		if loc.IsNew() {
			entry.Target = s.ResourceName(loc.Name, SuffixPlaceholder)
		}
		plan.Entries = append(plan.Entries, entry)
		plan.Counts[entry.Kind]++
	}

	return plan, nil
}

// NewCount returns how many resources a run would create
func (p *Plan) NewCount() int {
	return p.Counts[location.KindStructuredFile.String()] + p.Counts[location.KindCredentialsFile.String()]
}
