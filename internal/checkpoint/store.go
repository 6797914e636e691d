// Package checkpoint manages the single configuration document that
// accompanies each project database: Jira connection settings, the
// per-project sync_enabled/last_synced flags, and the two resumable
// cursors (SyncCheckpoint, SnapshotCheckpoint) that the Sync and
// Snapshot Engines persist through read-modify-write callbacks.
package checkpoint

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ysksm/jd-sub000/internal/types"
)

// JiraConfig holds the remote connection settings read once at startup.
type JiraConfig struct {
	BaseURL  string `yaml:"base-url"`
	Username string `yaml:"username"`
	APIKey   string `yaml:"api-key"`
}

// ProjectState is the per-project slice of the configuration document.
type ProjectState struct {
	SyncEnabled        bool                      `yaml:"sync-enabled"`
	LastSynced         string                    `yaml:"last-synced,omitempty"`
	SyncCheckpoint     *types.SyncCheckpoint     `yaml:"sync-checkpoint,omitempty"`
	SnapshotCheckpoint *types.SnapshotCheckpoint `yaml:"snapshot-checkpoint,omitempty"`
}

// Document is the whole configuration file: Jira connection settings plus
// one ProjectState per tracked project key.
type Document struct {
	Jira       JiraConfig              `yaml:"jira"`
	Embeddings EmbeddingsConfig        `yaml:"embeddings"`
	Projects   map[string]ProjectState `yaml:"projects"`
}

// EmbeddingsConfig names the active embedding provider/model.
type EmbeddingsConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Store reads and writes a single Document at Path, serializing all
// writers through a mutex since the document is read-modify-write and
// engines may persist checkpoints from a page-loop callback.
type Store struct {
	Path string

	mu sync.Mutex
}

// NewStore returns a Store rooted at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the document, returning an empty (not nil) Document if the
// file does not yet exist or fails to parse — matching the convention
// that a missing config is the same as an unconfigured one.
func (s *Store) Load() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() *Document {
	doc := &Document{Projects: map[string]ProjectState{}}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return doc
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return &Document{Projects: map[string]ProjectState{}}
	}
	if doc.Projects == nil {
		doc.Projects = map[string]ProjectState{}
	}
	return doc
}

// save re-marshals the whole document and writes it back, creating
// parent directories as needed.
func (s *Store) save(doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.Path, data, 0o644)
}

// ProjectState returns the stored state for projectKey, or a zero-value
// ProjectState if the project has no entry yet.
func (s *Store) ProjectState(projectKey string) ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked().Projects[projectKey]
}

// SaveSyncCheckpoint persists cp as the sync cursor for projectKey. This
// is the durable-persistence side of the Sync Engine's on_checkpoint
// callback — failures here must not abort the caller's sync run, so
// callers log rather than propagate.
func (s *Store) SaveSyncCheckpoint(projectKey string, cp types.SyncCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.loadLocked()
	state := doc.Projects[projectKey]
	state.SyncCheckpoint = &cp
	doc.Projects[projectKey] = state
	return s.save(doc)
}

// SaveSnapshotCheckpoint persists cp as the snapshot cursor for
// projectKey, mirroring SaveSyncCheckpoint for the Snapshot Engine.
func (s *Store) SaveSnapshotCheckpoint(projectKey string, cp types.SnapshotCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.loadLocked()
	state := doc.Projects[projectKey]
	state.SnapshotCheckpoint = &cp
	doc.Projects[projectKey] = state
	return s.save(doc)
}

// SetSyncEnabled toggles whether periodic sync is enabled for projectKey.
func (s *Store) SetSyncEnabled(projectKey string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.loadLocked()
	state := doc.Projects[projectKey]
	state.SyncEnabled = enabled
	doc.Projects[projectKey] = state
	return s.save(doc)
}
