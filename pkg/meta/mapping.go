package meta

import (
	"strconv"
	"strings"

	"github.com/cuemby/snapmeta/pkg/types"
)

// marshalMapping encodes a Mapping as a comma-delimited list of decimal
// IDs, sorted so two equal sets always produce byte-identical attribute
// values. The empty set encodes as the empty string.
func marshalMapping(m types.Mapping) ([]byte, error) {
	ids := m.Slice()
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return []byte(strings.Join(parts, ",")), nil
}

func unmarshalMapping(data []byte) (types.Mapping, error) {
	s := string(data)
	if s == "" {
		return types.Mapping{}, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]types.ID, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return types.NewMapping(ids...), nil
}
