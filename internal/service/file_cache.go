package service

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vilaca/alm-eventlog/internal/domain"
)

// ErrNoSnapshot is returned when an offline run finds no snapshot for a project.
var ErrNoSnapshot = errors.New("no snapshot")

// Logger interface for logging operations (Interface Segregation Principle).
type Logger interface {
	Printf(format string, v ...interface{})
}

// Snapshot is everything fetched for one project, in phase order. Target is
// the project reference as configured, which keys the snapshot file.
type Snapshot struct {
	Timestamp     time.Time                   `json:"timestamp"`
	Platform      string                      `json:"platform"`
	Target        string                      `json:"target"`
	Project       domain.Project              `json:"project"`
	Issues        []domain.Issue              `json:"issues,omitempty"`
	MergeRequests []domain.MergeRequest       `json:"merge_requests,omitempty"`
	Commits       []domain.Commit             `json:"commits,omitempty"`
	Definitions   []domain.PipelineDefinition `json:"definitions,omitempty"`
	Pipelines     []domain.Pipeline           `json:"pipelines,omitempty"`
}

// FileCache persists one JSON snapshot per project so a run can be replayed
// offline.
// Follows Single Responsibility Principle - only handles file-based caching.
type FileCache struct {
	dir    string
	mu     sync.RWMutex
	logger Logger
}

// NewFileCache creates a new file cache rooted at dir.
// Follows Dependency Injection pattern.
func NewFileCache(dir string, logger Logger) *FileCache {
	return &FileCache{
		dir:    dir,
		logger: logger,
	}
}

// Path returns the snapshot file of a project.
func (c *FileCache) Path(platform, projectID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_").Replace(projectID)
	return filepath.Join(c.dir, platform+"_"+safe+".json")
}

// Load loads the snapshot of a project. Returns ErrNoSnapshot if the file
// doesn't exist.
func (c *FileCache) Load(platform, projectID string) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.Path(platform, projectID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Printf("File cache: No snapshot found at %s", path)
		return nil, ErrNoSnapshot
	}
	if err != nil {
		c.logger.Printf("File cache: Failed to read snapshot: %v", err)
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Printf("File cache: Failed to parse snapshot: %v", err)
		return nil, err
	}

	c.logger.Printf("File cache: Loaded snapshot from %s (age: %v, issues: %d, merge requests: %d)",
		path, time.Since(snap.Timestamp).Round(time.Second), len(snap.Issues), len(snap.MergeRequests))
	return &snap, nil
}

// Save writes the snapshot of a project.
func (c *FileCache) Save(snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap.Timestamp = time.Now()

	// Marshal to JSON with indentation for readability
	jsonData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		c.logger.Printf("File cache: Failed to marshal snapshot: %v", err)
		return err
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		c.logger.Printf("File cache: Failed to create directory %s: %v", c.dir, err)
		return err
	}

	// Write to temporary file first (atomic write)
	path := c.Path(snap.Platform, snap.Target)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		c.logger.Printf("File cache: Failed to write temp file: %v", err)
		return err
	}

	// Rename (atomic operation on most filesystems)
	if err := os.Rename(tempFile, path); err != nil {
		c.logger.Printf("File cache: Failed to rename temp file: %v", err)
		os.Remove(tempFile) // Cleanup temp file
		return err
	}

	c.logger.Printf("File cache: Saved snapshot to %s", path)
	return nil
}

// Clear removes the snapshot of a project.
func (c *FileCache) Clear(platform, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.Path(platform, projectID)); err != nil && !os.IsNotExist(err) {
		c.logger.Printf("File cache: Failed to remove snapshot: %v", err)
		return err
	}
	return nil
}
