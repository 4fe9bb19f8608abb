package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicdocs/sourcemgr/pkg/schema"
)

// Project is the on-disk document for one project record. Metadata holds
// the validated form payload; sources, citations, and source order grow as
// sources are attached after creation.
type Project struct {
	ID          string                  `json:"id"`
	TypeCode    string                  `json:"type_code"`
	Metadata    map[string]any          `json:"metadata"`
	Sources     map[string]SourceRecord `json:"sources,omitempty"`
	Citations   map[string]string       `json:"citations,omitempty"`
	SourceOrder []string                `json:"source_order,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// ProjectStore reads and writes project documents under a root directory,
// one file per project keyed by a generated id. It implements Gateway.
type ProjectStore struct {
	root     string
	registry *schema.Registry
	now      func() time.Time
}

var _ Gateway = (*ProjectStore)(nil)

// NewProjectStore creates the root directory if needed.
func NewProjectStore(root string, registry *schema.Registry) (*ProjectStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create project root: %w", err)
	}
	return &ProjectStore{root: root, registry: registry, now: time.Now}, nil
}

func (s *ProjectStore) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

// Save persists a validated payload as a new project document and returns
// its generated id.
func (s *ProjectStore) Save(ctx context.Context, typeCode string, payload map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.registry.Has(typeCode) {
		return "", &schema.UnknownTypeError{TypeCode: typeCode}
	}

	now := s.now().UTC()
	project := Project{
		ID:        uuid.NewString(),
		TypeCode:  typeCode,
		Metadata:  payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := writeJSON(s.path(project.ID), project); err != nil {
		return "", err
	}
	return project.ID, nil
}

// Load returns the stored metadata payload for a project. The type code
// must match the one the project was saved under.
func (s *ProjectStore) Load(ctx context.Context, typeCode, id string) (map[string]any, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.TypeCode != typeCode {
		return nil, fmt.Errorf("store: project %s has type %s, not %s", id, project.TypeCode, typeCode)
	}
	return project.Metadata, nil
}

// Get reads the full project document.
func (s *ProjectStore) Get(ctx context.Context, id string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var project Project
	if err := readJSON(s.path(id), &project); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &project, nil
}

// Path returns where the project document lives on disk.
func (s *ProjectStore) Path(id string) string { return s.path(id) }

// Update overwrites a project's metadata payload with a revalidated one.
func (s *ProjectStore) Update(ctx context.Context, id string, payload map[string]any) error {
	project, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	project.Metadata = payload
	project.UpdatedAt = s.now().UTC()
	return writeJSON(s.path(id), project)
}

// AttachSource records a source against the project along with its rendered
// citation, appending it to the source order if it is new.
func (s *ProjectStore) AttachSource(ctx context.Context, projectID string, source SourceRecord, citation string) error {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if source.ID == "" {
		return fmt.Errorf("store: source has no id")
	}
	if project.Sources == nil {
		project.Sources = make(map[string]SourceRecord)
	}
	if project.Citations == nil {
		project.Citations = make(map[string]string)
	}
	if _, exists := project.Sources[source.ID]; !exists {
		project.SourceOrder = append(project.SourceOrder, source.ID)
	}
	project.Sources[source.ID] = source
	project.Citations[source.ID] = citation
	project.UpdatedAt = s.now().UTC()
	return writeJSON(s.path(projectID), project)
}

// DetachSource removes a source and its citation from the project.
func (s *ProjectStore) DetachSource(ctx context.Context, projectID, sourceID string) error {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if _, exists := project.Sources[sourceID]; !exists {
		return fmt.Errorf("%w: source %s on project %s", ErrNotFound, sourceID, projectID)
	}
	delete(project.Sources, sourceID)
	delete(project.Citations, sourceID)
	project.SourceOrder = slices.DeleteFunc(project.SourceOrder, func(id string) bool {
		return id == sourceID
	})
	project.UpdatedAt = s.now().UTC()
	return writeJSON(s.path(projectID), project)
}

// ReorderSources replaces the citation order. Every id must already be
// attached, and every attached source must appear exactly once.
func (s *ProjectStore) ReorderSources(ctx context.Context, projectID string, order []string) error {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if len(order) != len(project.Sources) {
		return fmt.Errorf("store: order lists %d sources, project has %d", len(order), len(project.Sources))
	}
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, attached := project.Sources[id]; !attached {
			return fmt.Errorf("%w: source %s on project %s", ErrNotFound, id, projectID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("store: source %s listed twice in order", id)
		}
		seen[id] = struct{}{}
	}
	project.SourceOrder = append([]string(nil), order...)
	project.UpdatedAt = s.now().UTC()
	return writeJSON(s.path(projectID), project)
}
