package assign

import "errors"

// ErrInvalidConfiguration reports a malformed experiment definition. It is a
// deployment error: there is no safe variant to fall back to.
var ErrInvalidConfiguration = errors.New("invalid experiment configuration")
