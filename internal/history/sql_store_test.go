package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretseed/internal/history"
)

func newSQLStore(t *testing.T) *history.SQLStore {
	t.Helper()
	store, err := history.NewSQLStore(context.Background(), filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStoreSaveAndList(t *testing.T) {
	t.Parallel()
	store := newSQLStore(t)

	runs, err := store.List(0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaaa-1111", "bbbb-2222", "cccc-3333"} {
		require.NoError(t, store.Save(&history.Run{
			ID:        id,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Sink:      "secretsmanager",
			Suffix:    "x1y2z3",
			Status:    history.StatusSucceeded,
			Duration:  1500 * time.Millisecond,
			Outputs:   map[string]string{"db_pass": "arn:aws:secretsmanager:us-east-1:123456789012:secret:db_pass-x1y2z3"},
			Published: []string{"db_pass"},
		}))
	}

	runs, err = store.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "cccc-3333", runs[0].ID)
	assert.Equal(t, "aaaa-1111", runs[2].ID)
	assert.Equal(t, []string{"db_pass"}, runs[0].Published)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.Contains(t, runs[0].Outputs["db_pass"], "db_pass-x1y2z3")

	limited, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLStoreGet(t *testing.T) {
	t.Parallel()
	store := newSQLStore(t)

	now := time.Now()
	require.NoError(t, store.Save(&history.Run{ID: "abcd-0001", Timestamp: now, Sink: "ssm", Status: history.StatusSucceeded}))
	require.NoError(t, store.Save(&history.Run{ID: "abcd-0002", Timestamp: now.Add(time.Second), Sink: "ssm", Status: history.StatusFailed}))

	run, err := store.Get("abcd-0002")
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, run.Status)

	_, err = store.Get("abcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = store.Get("ffff")
	require.Error(t, err)
}

func TestSQLStoreGetPrefixIsLiteral(t *testing.T) {
	t.Parallel()
	store := newSQLStore(t)

	now := time.Now()
	require.NoError(t, store.Save(&history.Run{ID: "ab_d-0001", Timestamp: now, Sink: "ssm", Status: history.StatusSucceeded}))
	require.NoError(t, store.Save(&history.Run{ID: "abcd-0002", Timestamp: now.Add(time.Second), Sink: "ssm", Status: history.StatusFailed}))

	run, err := store.Get("ab_")
	require.NoError(t, err)
	assert.Equal(t, "ab_d-0001", run.ID)

	_, err = store.Get("ab%")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run found")
}

func TestSQLStoreSaveReplaces(t *testing.T) {
	t.Parallel()
	store := newSQLStore(t)

	run := &history.Run{ID: "run-1", Sink: "ssm", Status: history.StatusSucceeded}
	require.NoError(t, store.Save(run))

	run.Status = history.StatusRolledBack
	run.RolledBack = []string{"/abc123/db_pass"}
	require.NoError(t, store.Save(run))

	got, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, history.StatusRolledBack, got.Status)
	assert.Equal(t, []string{"/abc123/db_pass"}, got.RolledBack)
}

func TestSQLStoreCleanup(t *testing.T) {
	t.Parallel()
	store := newSQLStore(t)

	now := time.Now()
	require.NoError(t, store.Save(&history.Run{ID: "old", Timestamp: now.Add(-48 * time.Hour), Sink: "ssm", Status: history.StatusSucceeded}))
	require.NoError(t, store.Save(&history.Run{ID: "new", Timestamp: now, Sink: "ssm", Status: history.StatusSucceeded}))

	removed, err := store.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	runs, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}
