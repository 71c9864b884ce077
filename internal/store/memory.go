package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/specforge/internal/project"
)

// Memory keeps projects in process memory.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*project.Project
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{projects: map[string]*project.Project{}, now: time.Now}
}

// List returns summaries, most recently updated first.
func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, summarize(p))
	}
	sortSummaries(out)
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) Create(ctx context.Context, p *project.Project) (*project.Project, error) {
	out, err := prepareCreate(p, m.now())
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.projects[out.ID] = out
	m.mu.Unlock()
	return out.Clone(), nil
}

func (m *Memory) Update(ctx context.Context, id string, patch func(*project.Project) error) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	out, err := applyPatch(existing, patch, m.now())
	if err != nil {
		return nil, err
	}
	m.projects[id] = out
	return out.Clone(), nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *Memory) Close() error { return nil }

func sortSummaries(s []Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].UpdatedAt.After(s[j].UpdatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
