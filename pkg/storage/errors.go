package storage

import "errors"

// ErrNotFound is returned by Get/Update when the requested (kind, id) has
// no row. Callers wrap it with fmt.Errorf("%w: ...") to add context.
var ErrNotFound = errors.New("storage: resource not found")
