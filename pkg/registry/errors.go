package registry

import "errors"

// ErrUnknownCollection is returned when a name or ID has no entry in
// name_id_map_/holders_.
var ErrUnknownCollection = errors.New("registry: unknown collection")
