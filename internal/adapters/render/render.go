// Package render turns a variant identifier into the page shown to the visitor.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sort"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// Data is passed to every variant template.
type Data struct {
	Variant string
	Reused  bool
}

// Renderer writes the page for a variant.
type Renderer interface {
	Render(ctx context.Context, w io.Writer, data Data) error
}

// TemplateRenderer renders variants from html/template files named after the variant id.
type TemplateRenderer struct {
	fsys    fs.FS
	pattern string
	tmpl    *template.Template
}

// New parses the templates. Without options it uses the embedded
// variationA/B/C.html pages.
func New(opts ...Option) (*TemplateRenderer, error) {
	sub, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	r := &TemplateRenderer{
		fsys:    sub,
		pattern: "*.html",
	}
	for _, opt := range opts {
		opt(r)
	}

	tmpl, err := template.ParseFS(r.fsys, r.pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Render executes the template named data.Variant. Output is buffered so a
// failed execution never leaves a half-written page.
func (r *TemplateRenderer) Render(_ context.Context, w io.Writer, data Data) error {
	t := r.lookup(data.Variant)
	if t == nil {
		return fmt.Errorf("%w: %q", ErrTemplateNotFound, data.Variant)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrRender, data.Variant, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	return nil
}

func (r *TemplateRenderer) lookup(name string) *template.Template {
	if name == "" {
		return nil
	}
	return r.tmpl.Lookup(name)
}

// Check returns an error naming every variant that has no template.
func (r *TemplateRenderer) Check(variants []string) error {
	var missing []string
	for _, v := range variants {
		if r.lookup(v) == nil {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrTemplateNotFound, missing)
	}
	return nil
}

// Names lists the loaded variant templates, sorted.
func (r *TemplateRenderer) Names() []string {
	var names []string
	for _, t := range r.tmpl.Templates() {
		if t.Tree != nil {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}
