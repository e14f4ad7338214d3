package snapshot

import (
	"time"

	"github.com/cuemby/snapmeta/pkg/types"
)

// nowTimestamp returns the current engine timestamp: nanoseconds since the
// Unix epoch, truncated to fit types.Timestamp. Operations stamp every
// resource they touch with the same value for a given Push, so CreatedOn
// and UpdatedOn across one batch always agree.
func nowTimestamp() types.Timestamp {
	return types.Timestamp(time.Now().UnixNano())
}
