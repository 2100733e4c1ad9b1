// Package publish runs the classify, extract and publish pipeline.
//
// A run classifies every entry, extracts every new value, and only then
// touches the sink. Existing references are passed through untouched. New
// values all go to the single sink chosen for the run, named with one random
// suffix shared by the whole run. If any publish fails, resources created
// earlier in the same run are deleted again.
package publish

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	dserrors "github.com/systmms/secretseed/internal/errors"
	"github.com/systmms/secretseed/internal/extract"
	"github.com/systmms/secretseed/internal/location"
	"github.com/systmms/secretseed/internal/logging"
	"github.com/systmms/secretseed/internal/metrics"
	"github.com/systmms/secretseed/internal/secure"
	"github.com/systmms/secretseed/internal/sink"
)

// Publisher publishes a secrets map to one sink
type Publisher struct {
	sink      sink.Sink
	extractor *extract.Extractor
	logger    *logging.Logger
	metrics   *metrics.RunMetrics
	suffix    string
	verify    bool
}

// Option configures a Publisher
type Option func(*Publisher)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics records run metrics into m
func WithMetrics(m *metrics.RunMetrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithSuffix fixes the name suffix instead of drawing a random one
func WithSuffix(suffix string) Option {
	return func(p *Publisher) {
		p.suffix = suffix
	}
}

// WithVerify reads every published value back and compares it
func WithVerify(verify bool) Option {
	return func(p *Publisher) {
		p.verify = verify
	}
}

// New creates a Publisher
func New(s sink.Sink, ex *extract.Extractor, opts ...Option) *Publisher {
	p := &Publisher{
		sink:      s,
		extractor: ex,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	return p
}

// Result is the outcome of a run
type Result struct {
	RunID  string `json:"run_id"`
	Suffix string `json:"suffix"`
	Sink   string `json:"sink"`

	// Outputs maps every input secret name to its identifier
	Outputs map[string]string `json:"outputs"`

	Published     []string `json:"published"`
	PassedThrough []string `json:"passed_through"`
	RolledBack    []string `json:"rolled_back,omitempty"`
	Verified      bool     `json:"verified"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type created struct {
	name       string
	identifier string
}

// Run classifies, extracts and publishes secrets. On failure the returned
// Result describes what happened, including any rolled back resources.
func (p *Publisher) Run(ctx context.Context, secrets map[string]string) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Sink:      p.sink.Kind(),
		Outputs:   make(map[string]string, len(secrets)),
		StartedAt: time.Now(),
	}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
		p.metrics.MarkFinished()
	}()

	locs, err := location.ClassifyAll(secrets)
	if err != nil {
		return result, err
	}
	for _, loc := range locs {
		p.metrics.RecordClassified(loc.Kind.String())
	}

	values, err := p.extractAll(locs)
	if err != nil {
		return result, err
	}
	defer func() {
		for _, buf := range values {
			buf.Destroy()
		}
	}()

	suffix := p.suffix
	if suffix == "" {
		suffix, err = sink.NewSuffix()
		if err != nil {
			return result, err
		}
	}
	result.Suffix = suffix

	var done []created
	for _, loc := range locs {
		if !loc.IsNew() {
			result.Outputs[loc.Name] = loc.Raw
			result.PassedThrough = append(result.PassedThrough, loc.Name)
			p.logger.Debug("Passing through %s", loc.Name)
			continue
		}

		identifier, err := p.publishOne(ctx, loc, values[loc.Name], suffix)
		if err != nil {
			p.abort(ctx, result, done)
			return result, err
		}

		done = append(done, created{name: loc.Name, identifier: identifier})
		result.Outputs[loc.Name] = identifier
		result.Published = append(result.Published, loc.Name)
	}

	if p.verify {
		if err := p.verifyAll(ctx, done, values); err != nil {
			p.abort(ctx, result, done)
			return result, err
		}
		result.Verified = true
	}

	return result, nil
}

// extractAll reads every new value before anything is published
func (p *Publisher) extractAll(locs []location.Location) (map[string]*secure.SecureBuffer, error) {
	values := make(map[string]*secure.SecureBuffer)
	for _, loc := range locs {
		if !loc.IsNew() {
			continue
		}
		value, err := p.extractor.Extract(loc)
		if err != nil {
			for _, buf := range values {
				buf.Destroy()
			}
			return nil, err
		}
		values[loc.Name] = secure.FromString(value)
		p.logger.Debug("Extracted %s: %s", loc.Name, logging.Secret(value))
	}
	return values, nil
}

func (p *Publisher) publishOne(ctx context.Context, loc location.Location, buf *secure.SecureBuffer, suffix string) (string, error) {
	value, err := buf.Reveal()
	if err != nil {
		return "", &dserrors.SecretError{Name: loc.Name, Location: loc.Raw, Op: "publish", Err: err}
	}

	start := time.Now()
	identifier, err := p.sink.Publish(ctx, loc.Name, value, suffix)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		p.metrics.RecordPublish(p.sink.Kind(), metrics.StatusFailed, elapsed)
		return "", &dserrors.SecretError{Name: loc.Name, Location: loc.Raw, Op: "publish", Err: err}
	}

	p.metrics.RecordPublish(p.sink.Kind(), metrics.StatusPublished, elapsed)
	p.logger.Info("Published %s → %s", loc.Name, identifier)
	return identifier, nil
}

func (p *Publisher) verifyAll(ctx context.Context, done []created, values map[string]*secure.SecureBuffer) error {
	for _, c := range done {
		want, err := values[c.name].Reveal()
		if err != nil {
			return &dserrors.SecretError{Name: c.name, Op: "verify", Err: err}
		}
		got, err := p.sink.Read(ctx, c.identifier)
		if err != nil {
			return &dserrors.SecretError{Name: c.name, Location: c.identifier, Op: "verify", Err: err}
		}
		if got != want {
			return &dserrors.SecretError{
				Name:     c.name,
				Location: c.identifier,
				Op:       "verify",
				Err:      fmt.Errorf("stored value differs from source (%d bytes stored, %d expected)", len(got), len(want)),
			}
		}
		p.logger.Debug("Verified %s", c.name)
	}
	return nil
}

// abort rolls back and drops the removed resources from the result
func (p *Publisher) abort(ctx context.Context, result *Result, done []created) {
	result.RolledBack = p.rollback(ctx, done)

	removed := make(map[string]bool, len(result.RolledBack))
	for _, id := range result.RolledBack {
		removed[id] = true
	}
	var kept []string
	for _, c := range done {
		if removed[c.identifier] {
			delete(result.Outputs, c.name)
			continue
		}
		kept = append(kept, c.name)
	}
	result.Published = kept
}

// rollback deletes resources created earlier in this run, newest first.
// Failures are logged and the remaining resources are still attempted.
func (p *Publisher) rollback(ctx context.Context, done []created) []string {
	var removed []string
	for i := len(done) - 1; i >= 0; i-- {
		c := done[i]
		if err := p.sink.Delete(ctx, c.identifier); err != nil {
			p.logger.Error("Rollback failed for %s (%s): %v", c.name, c.identifier, err)
			continue
		}
		p.metrics.RecordRollback(p.sink.Kind())
		p.metrics.RecordPublish(p.sink.Kind(), metrics.StatusRolledBack, 0)
		p.logger.Warn("Rolled back %s (%s)", c.name, c.identifier)
		removed = append(removed, c.identifier)
	}
	sort.Strings(removed)
	return removed
}
