package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const registryFilename = "projects.json"

// Manager keeps the registry of onboarded projects in a projects.json file
// under the projects store.
type Manager struct {
	mu        sync.Mutex
	storePath string
	registry  string
	projects  []Info
}

// NewManager loads (or initializes) the registry under storePath.
func NewManager(storePath string) (*Manager, error) {
	if err := os.MkdirAll(storePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create projects store: %w", err)
	}

	m := &Manager{
		storePath: storePath,
		registry:  filepath.Join(storePath, registryFilename),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.registry)
	if os.IsNotExist(err) {
		m.projects = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read projects registry: %w", err)
	}
	if err := json.Unmarshal(data, &m.projects); err != nil {
		return fmt.Errorf("failed to parse projects registry: %w", err)
	}
	return nil
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal projects registry: %w", err)
	}
	if err := os.WriteFile(m.registry, data, 0o644); err != nil {
		return fmt.Errorf("failed to write projects registry: %w", err)
	}
	return nil
}

// Get returns the Info for a repository, or false when not onboarded.
func (m *Manager) Get(repoFullName string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.projects {
		if info.RepoFullName == repoFullName {
			return info, true
		}
	}
	return Info{}, false
}

// Add registers a new project. Adding an already-registered repository fails.
func (m *Manager) Add(info Info) error {
	if err := info.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.projects {
		if existing.RepoFullName == info.RepoFullName {
			return fmt.Errorf("project already exists: %s", info.RepoFullName)
		}
	}
	m.projects = append(m.projects, info)
	return m.save()
}

// Update replaces the Info for an already-registered repository, or adds it.
func (m *Manager) Update(info Info) error {
	if err := info.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.projects {
		if existing.RepoFullName == info.RepoFullName {
			m.projects[i] = info
			return m.save()
		}
	}
	m.projects = append(m.projects, info)
	return m.save()
}

// List returns a copy of all registered projects.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, len(m.projects))
	copy(out, m.projects)
	return out
}

// StorePath returns the root folder the registry lives under.
func (m *Manager) StorePath() string { return m.storePath }
