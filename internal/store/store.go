// Package store persists projects by id.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/specforge/internal/project"
)

// ErrNotFound is returned when no project has the requested id.
var ErrNotFound = errors.New("project not found")

// ErrNameRequired is returned when a project without a name is saved.
var ErrNameRequired = errors.New("project name is required")

// Summary is the listing view of a stored project.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a project repository. Implementations renormalize the schema
// text before saving and refuse a project whose schema text is invalid.
type Store interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (*project.Project, error)
	Create(ctx context.Context, p *project.Project) (*project.Project, error)
	// Update loads the project, applies patch to it and saves the result.
	Update(ctx context.Context, id string, patch func(*project.Project) error) (*project.Project, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// prepareCreate assigns the id and timestamps and renormalizes a copy of p.
func prepareCreate(p *project.Project, now time.Time) (*project.Project, error) {
	out := p.Clone()
	if out == nil {
		out = &project.Project{}
	}
	if strings.TrimSpace(out.Name) == "" {
		return nil, ErrNameRequired
	}
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Requests == nil {
		out.Requests = []project.RequestSpec{}
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	if err := out.Renormalize(); err != nil {
		return nil, err
	}
	return out, nil
}

// applyPatch runs patch on a copy of existing and revalidates the result.
// The id and creation time cannot be changed by a patch.
func applyPatch(existing *project.Project, patch func(*project.Project) error, now time.Time) (*project.Project, error) {
	out := existing.Clone()
	if patch != nil {
		if err := patch(out); err != nil {
			return nil, err
		}
	}
	out.ID = existing.ID
	out.CreatedAt = existing.CreatedAt
	if strings.TrimSpace(out.Name) == "" {
		return nil, ErrNameRequired
	}
	out.UpdatedAt = now
	if err := out.Renormalize(); err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(p *project.Project) Summary {
	return Summary{ID: p.ID, Name: p.Name, UpdatedAt: p.UpdatedAt}
}
