// Package sourcemgr wires the schema registry, form controller, stores,
// and prompt driver into one application facade. Library consumers can use
// the sub-packages directly; this package is the convenient front door.
package sourcemgr

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mosaicdocs/sourcemgr/pkg/citation"
	"github.com/mosaicdocs/sourcemgr/pkg/form"
	"github.com/mosaicdocs/sourcemgr/pkg/layout"
	"github.com/mosaicdocs/sourcemgr/pkg/prompt"
	"github.com/mosaicdocs/sourcemgr/pkg/schema"
	"github.com/mosaicdocs/sourcemgr/pkg/store"
	"github.com/mosaicdocs/sourcemgr/pkg/validate"
)

// Commonly used types, re-exported so simple callers need only this
// package.
type (
	Registry         = schema.Registry
	EntityTypeSchema = schema.EntityTypeSchema
	FieldSchema      = schema.FieldSchema
	TypeInfo         = schema.TypeInfo
	FormState        = form.State
	ValidationResult = validate.Result
	LayoutPlan       = layout.Plan
	Project          = store.Project
	SourceRecord     = store.SourceRecord
)

// LoadRegistry reads schema declarations from a directory tree.
func LoadRegistry(dir string) (*schema.Registry, error) {
	return schema.LoadFS(os.DirFS(dir))
}

// LoadRegistryFS reads schema declarations from any filesystem, typically
// an embed.FS carrying the built-in declarations.
func LoadRegistryFS(fsys fs.FS) (*schema.Registry, error) {
	return schema.LoadFS(fsys)
}

// App bundles the registry with the stores and terminal driver an
// interactive consumer needs.
type App struct {
	Registry  *schema.Registry
	Projects  *store.ProjectStore
	Sources   *store.SourceStore
	Recent    *store.RecentList
	Citations *citation.Renderer
	driver    prompt.Driver
	implicit  ImplicitFiller
}

// ImplicitFiller supplies the value for an implicit-stage field during
// project creation. Returning false leaves the field unset.
type ImplicitFiller func(typeCode string, field schema.FieldSchema) (any, bool)

// defaultImplicitValue covers the system fields the built-in declarations
// use: the selected type code, the current year, and the OS login.
func defaultImplicitValue(typeCode string, field schema.FieldSchema) (any, bool) {
	switch field.Name {
	case "project_type":
		return typeCode, true
	case "current_year":
		return strconv.Itoa(time.Now().Year()), true
	case "created_by":
		if u, err := user.Current(); err == nil && u.Username != "" {
			return u.Username, true
		}
		return os.Getenv("USER"), true
	}
	return nil, false
}

// Option configures an App.
type Option func(*config)

type config struct {
	dataDir   string
	mappings  []store.RegionMapping
	recentCap int
	driver    prompt.Driver
	implicit  ImplicitFiller
}

// WithDataDir sets where project, source, and recent-list files live.
// Defaults to ".sourcemgr" under the working directory.
func WithDataDir(dir string) Option {
	return func(c *config) { c.dataDir = dir }
}

// WithRegionMappings sets the glob mappings that partition master sources
// into region files.
func WithRegionMappings(mappings []store.RegionMapping) Option {
	return func(c *config) { c.mappings = mappings }
}

// WithRecentCap bounds the recent-project list.
func WithRecentCap(limit int) Option {
	return func(c *config) { c.recentCap = limit }
}

// WithDriver substitutes the terminal driver, typically a fake in tests.
func WithDriver(driver prompt.Driver) Option {
	return func(c *config) { c.driver = driver }
}

// WithImplicitFiller substitutes how implicit-stage fields are filled
// during project creation.
func WithImplicitFiller(f ImplicitFiller) Option {
	return func(c *config) { c.implicit = f }
}

// New builds an App around a loaded registry.
func New(registry *schema.Registry, opts ...Option) (*App, error) {
	if registry == nil {
		return nil, fmt.Errorf("sourcemgr: registry is required")
	}
	cfg := &config{dataDir: ".sourcemgr"}
	for _, opt := range opts {
		opt(cfg)
	}

	projects, err := store.NewProjectStore(filepath.Join(cfg.dataDir, "projects"), registry)
	if err != nil {
		return nil, err
	}
	sources, err := store.NewSourceStore(filepath.Join(cfg.dataDir, "sources"), cfg.mappings)
	if err != nil {
		return nil, err
	}

	driver := cfg.driver
	if driver == nil {
		driver = prompt.NewSurveyDriver()
	}
	implicit := cfg.implicit
	if implicit == nil {
		implicit = defaultImplicitValue
	}

	return &App{
		Registry:  registry,
		Projects:  projects,
		Sources:   sources,
		Recent:    store.NewRecentList(filepath.Join(cfg.dataDir, "recent.json"), cfg.recentCap),
		Citations: citation.New(),
		driver:    driver,
		implicit:  implicit,
	}, nil
}

// NewForm opens a form for the given entity type.
func (a *App) NewForm(typeCode string, opts ...form.Option) (*form.State, error) {
	et, err := a.Registry.Schema(typeCode)
	if err != nil {
		return nil, err
	}
	return form.New(et, opts...), nil
}

// CreateProject runs the interactive creation flow: dialog-stage prompts
// first, the remaining metadata fields second, then validation, persist,
// and a recent-list touch. Returns the new project id.
func (a *App) CreateProject(ctx context.Context, typeCode string) (string, error) {
	et, err := a.Registry.Schema(typeCode)
	if err != nil {
		return "", err
	}
	dialog, err := a.Registry.DialogFields(typeCode)
	if err != nil {
		return "", err
	}
	dialogNames := make([]string, len(dialog))
	for i, field := range dialog {
		dialogNames[i] = field.Name
	}
	rest, err := a.Registry.Fields(typeCode, dialogNames...)
	if err != nil {
		return "", err
	}

	state := form.New(et)
	session := prompt.NewSession(a.driver)
	if err := session.Fill(ctx, state, dialog); err != nil {
		return "", err
	}
	if err := session.Fill(ctx, state, rest); err != nil {
		return "", err
	}

	for _, field := range et.Fields {
		if field.Stage != schema.StageImplicit {
			continue
		}
		value, ok := a.implicit(typeCode, field)
		if !ok {
			continue
		}
		if _, err := state.SetValue(field.Name, value); err != nil {
			return "", err
		}
	}

	id, err := state.Submit(ctx, a.Projects)
	if err != nil {
		return "", err
	}

	name := typeCode
	if title, ok := state.Value("project_name"); ok {
		if text, ok := title.(string); ok && text != "" {
			name = text
		}
	}
	if err := a.Recent.Touch(a.Projects.Path(id), name); err != nil {
		return id, err
	}
	return id, nil
}

// OpenProject loads a project's payload into a fresh form for editing and
// touches the recent list.
func (a *App) OpenProject(ctx context.Context, typeCode, id string) (*form.State, error) {
	payload, err := a.Projects.Load(ctx, typeCode, id)
	if err != nil {
		return nil, err
	}
	state, err := a.NewForm(typeCode, form.WithInitialValues(payload))
	if err != nil {
		return nil, err
	}
	name := typeCode
	if title, ok := payload["project_name"].(string); ok && title != "" {
		name = title
	}
	if err := a.Recent.Touch(a.Projects.Path(id), name); err != nil {
		return nil, err
	}
	return state, nil
}

// ProjectFilename renders the display filename for a project from its
// type's filename template. Falls back to the id when the type declares no
// template.
func (a *App) ProjectFilename(typeCode, id string, payload map[string]any) (string, error) {
	et, err := a.Registry.Schema(typeCode)
	if err != nil {
		return "", err
	}
	if et.FilenameTemplate == "" {
		return id, nil
	}
	return a.Citations.Filename(et.FilenameTemplate, payload)
}
