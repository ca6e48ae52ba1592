package render

import (
	"io/fs"
	"os"
)

// Option applies a configuration option to the TemplateRenderer.
type Option func(*TemplateRenderer)

// WithFS loads templates from fsys instead of the embedded defaults.
func WithFS(fsys fs.FS) Option {
	return func(r *TemplateRenderer) {
		if fsys != nil {
			r.fsys = fsys
		}
	}
}

// WithDir loads templates from a directory on disk. Empty keeps the defaults.
func WithDir(dir string) Option {
	return func(r *TemplateRenderer) {
		if dir != "" {
			r.fsys = os.DirFS(dir)
		}
	}
}

// WithPattern sets the glob used to select template files.
func WithPattern(pattern string) Option {
	return func(r *TemplateRenderer) {
		if pattern != "" {
			r.pattern = pattern
		}
	}
}
