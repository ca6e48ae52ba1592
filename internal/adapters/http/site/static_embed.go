package site

import (
	"embed"
	"errors"
	"io/fs"
)

//go:embed static/*.html
var staticFS embed.FS

// Index returns the landing page bytes.
func Index() ([]byte, error) {
	b, err := fs.ReadFile(staticFS, "static/index.html")
	if err != nil {
		return nil, errors.Join(ErrServe, err)
	}
	return b, nil
}
