package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const fileTimeLayout = "20060102-150405"

// FileStore implements Store with one JSON file per run
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a new file-based store rooted at baseDir
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{
		baseDir: baseDir,
	}
}

// DefaultDir returns the default history directory
func DefaultDir() string {
	if dir := os.Getenv("SECRETSEED_HISTORY_DIR"); dir != "" {
		return dir
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "secretseed", "history")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "secretseed", "history")
	}

	return filepath.Join(os.TempDir(), "secretseed", "history")
}

// Dir returns the directory runs are written to
func (fs *FileStore) Dir() string {
	return fs.baseDir
}

// Save writes a run record
func (fs *FileStore) Save(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.baseDir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	filename := filepath.Join(fs.baseDir, runFilename(run))
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}

	return nil
}

// Get returns the run with the given ID. A unique ID prefix is accepted.
func (fs *FileStore) Get(id string) (*Run, error) {
	runs, err := fs.List(0)
	if err != nil {
		return nil, err
	}

	var found []Run
	for _, run := range runs {
		if run.ID == id {
			return &run, nil
		}
		if strings.HasPrefix(run.ID, id) {
			found = append(found, run)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no run found with ID %s", id)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("run ID prefix %s is ambiguous (%d matches)", id, len(found))
	}
}

// List returns runs newest first
func (fs *FileStore) List(limit int) ([]Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := os.Stat(fs.baseDir); os.IsNotExist(err) {
		return []Run{}, nil
	}

	files, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	runs := []Run{}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.baseDir, file.Name()))
		if err != nil {
			continue // Skip files that can't be read
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue // Skip invalid JSON files
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Cleanup removes runs older than the specified duration and returns how many
func (fs *FileStore) Cleanup(olderThan time.Duration) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	files, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || filepath.Ext(name) != ".json" || len(name) < len(fileTimeLayout) {
			continue
		}
		// Expected format: 20060102-150405-<id>.json
		ts, err := time.ParseInLocation(fileTimeLayout, name[:len(fileTimeLayout)], time.UTC)
		if err != nil || !ts.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(fs.baseDir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed++
	}

	return removed, nil
}

func runFilename(run *Run) string {
	return fmt.Sprintf("%s-%s.json", run.Timestamp.UTC().Format(fileTimeLayout), sanitizeFilename(run.ID))
}

// sanitizeFilename replaces characters that might be problematic in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
