// Package citation renders citation strings and project filenames from
// pongo2 templates. Templates come from schema declarations (a type's
// FilenameTemplate) or from the built-in citation format.
package citation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// DefaultTemplate is the citation format used when a source declares none.
const DefaultTemplate = `{{ title }}{% if publisher %}, {{ publisher }}{% endif %}{% if year %} ({{ year }}){% endif %}{% if url %}. {{ url }}{% endif %}`

// Renderer compiles and caches pongo2 templates keyed by their source
// text. Safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	cache map[string]*pongo2.Template
}

func New() *Renderer {
	return &Renderer{
		cache: make(map[string]*pongo2.Template),
	}
}

func (r *Renderer) template(text string) (*pongo2.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.cache[text]; ok {
		return tmpl, nil
	}
	tmpl, err := pongo2.FromString(text)
	if err != nil {
		return nil, fmt.Errorf("citation: parse template: %w", err)
	}
	r.cache[text] = tmpl
	return tmpl, nil
}

// Render executes the template against the given values and returns the
// whitespace-trimmed result.
func (r *Renderer) Render(text string, values map[string]any) (string, error) {
	tmpl, err := r.template(text)
	if err != nil {
		return "", err
	}
	rendered, err := tmpl.Execute(pongo2.Context(values))
	if err != nil {
		return "", fmt.Errorf("citation: execute template: %w", err)
	}
	return strings.TrimSpace(rendered), nil
}

// Citation renders the source fields with the default citation format.
func (r *Renderer) Citation(values map[string]any) (string, error) {
	return r.Render(DefaultTemplate, values)
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	repeatedSpace       = regexp.MustCompile(`\s+`)
)

// Filename renders a type's filename template and normalises the result
// into a safe file stem: filesystem-reserved characters removed, runs of
// whitespace collapsed. Returns "untitled" when the template renders to
// nothing.
func (r *Renderer) Filename(text string, values map[string]any) (string, error) {
	rendered, err := r.Render(text, values)
	if err != nil {
		return "", err
	}
	stem := unsafeFilenameChars.ReplaceAllString(rendered, "")
	stem = strings.TrimSpace(repeatedSpace.ReplaceAllString(stem, " "))
	if stem == "" {
		stem = "untitled"
	}
	return stem, nil
}
