package render

import "errors"

// Sentinel kinds for render errors.
var (
	ErrTemplateNotFound = errors.New("variant template not found")
	ErrRender           = errors.New("variant render failed")
	ErrLoad             = errors.New("variant templates load failed")
)
