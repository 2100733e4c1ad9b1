package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqlTimeout = 10 * time.Second

type runRecord struct {
	bun.BaseModel `bun:"table:publish_runs"`

	ID            string            `bun:",pk"`
	Timestamp     time.Time         `bun:",notnull"`
	Sink          string            `bun:",notnull"`
	Suffix        string            `bun:",nullzero"`
	NamePrefix    string            `bun:",nullzero"`
	Status        string            `bun:",notnull"`
	Error         string            `bun:",nullzero"`
	DurationMS    int64             `bun:"duration_ms"`
	User          string            `bun:",nullzero"`
	ConfigPath    string            `bun:",nullzero"`
	Outputs       map[string]string `bun:",type:jsonb"`
	Published     []string          `bun:",type:jsonb"`
	PassedThrough []string          `bun:",type:jsonb"`
	RolledBack    []string          `bun:",type:jsonb"`
}

// SQLStore keeps run history in a SQLite database
type SQLStore struct {
	db *bun.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens (and creates if needed) the SQLite database at path
func NewSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	sqldb, err := sql.Open(sqliteshim.DriverName(), "file:"+path+"?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().Model((*runRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Save records a run, replacing any earlier record with the same ID
func (s *SQLStore) Save(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), sqlTimeout)
	defer cancel()

	_, err := s.db.NewInsert().
		Model(toRunRecord(run)).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("error = EXCLUDED.error").
		Set("outputs = EXCLUDED.outputs").
		Set("published = EXCLUDED.published").
		Set("rolled_back = EXCLUDED.rolled_back").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get returns the run with the given ID. A unique ID prefix is accepted.
func (s *SQLStore) Get(id string) (*Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqlTimeout)
	defer cancel()

	var recs []runRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("substr(id, 1, ?) = ?", utf8.RuneCountInString(id), id).
		OrderExpr("id = ? DESC, timestamp DESC", id).
		Limit(2).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	for _, rec := range recs {
		if rec.ID == id {
			run := fromRunRecord(rec)
			return &run, nil
		}
	}
	switch len(recs) {
	case 0:
		return nil, fmt.Errorf("no run found with ID %s", id)
	case 1:
		run := fromRunRecord(recs[0])
		return &run, nil
	default:
		return nil, fmt.Errorf("run ID prefix %s is ambiguous", id)
	}
}

// List returns runs newest first; limit <= 0 means all
func (s *SQLStore) List(limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqlTimeout)
	defer cancel()

	var recs []runRecord
	query := s.db.NewSelect().Model(&recs).OrderExpr("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, fromRunRecord(rec))
	}
	return runs, nil
}

// Cleanup removes runs older than the specified duration and returns how many
func (s *SQLStore) Cleanup(olderThan time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqlTimeout)
	defer cancel()

	res, err := s.db.NewDelete().
		Model((*runRecord)(nil)).
		Where("timestamp < ?", time.Now().Add(-olderThan).UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up runs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func toRunRecord(run *Run) *runRecord {
	return &runRecord{
		ID:            run.ID,
		Timestamp:     run.Timestamp.UTC(),
		Sink:          run.Sink,
		Suffix:        run.Suffix,
		NamePrefix:    run.NamePrefix,
		Status:        run.Status,
		Error:         run.Error,
		DurationMS:    run.Duration.Milliseconds(),
		User:          run.User,
		ConfigPath:    run.ConfigPath,
		Outputs:       run.Outputs,
		Published:     run.Published,
		PassedThrough: run.PassedThrough,
		RolledBack:    run.RolledBack,
	}
}

func fromRunRecord(rec runRecord) Run {
	return Run{
		ID:            rec.ID,
		Timestamp:     rec.Timestamp,
		Sink:          rec.Sink,
		Suffix:        rec.Suffix,
		NamePrefix:    rec.NamePrefix,
		Status:        rec.Status,
		Error:         rec.Error,
		Duration:      time.Duration(rec.DurationMS) * time.Millisecond,
		User:          rec.User,
		ConfigPath:    rec.ConfigPath,
		Outputs:       rec.Outputs,
		Published:     rec.Published,
		PassedThrough: rec.PassedThrough,
		RolledBack:    rec.RolledBack,
	}
}
