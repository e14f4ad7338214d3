package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/snapmeta/pkg/types"
)

func TestMarshalMappingCommaDelimitedDecimals(t *testing.T) {
	b, err := marshalMapping(types.NewMapping(11, 7, 9))
	require.NoError(t, err)
	assert.Equal(t, "7,9,11", string(b))
}

func TestMarshalMappingEmptySetIsEmptyString(t *testing.T) {
	b, err := marshalMapping(types.NewMapping())
	require.NoError(t, err)
	assert.Equal(t, "", string(b))
}

func TestMappings2StrMatchesSpecFormat(t *testing.T) {
	assert.Equal(t, "7,9,11", mappings2str(types.NewMapping(7, 9, 11)))
	assert.Equal(t, "", mappings2str(types.NewMapping()))
	assert.Equal(t, "", mappings2str(nil))
}

func TestUnmarshalMappingRoundTrip(t *testing.T) {
	m, err := unmarshalMapping([]byte("7,9,11"))
	require.NoError(t, err)
	assert.True(t, m.Equal(types.NewMapping(7, 9, 11)))

	empty, err := unmarshalMapping([]byte(""))
	require.NoError(t, err)
	assert.True(t, empty.Equal(types.NewMapping()))
}

func TestStr2MappingsRejectsMalformedDecimal(t *testing.T) {
	_, err := str2mappings("7,nope,11")
	assert.ErrorIs(t, err, ErrMalformedAttribute)
}

func TestParams2StrAbsentEncodesAsEmptyObject(t *testing.T) {
	assert.Equal(t, "{}", params2str(nil))
	assert.Equal(t, "{}", params2str([]byte{}))
	assert.Equal(t, `{"a":1}`, params2str([]byte(`{"a":1}`)))
}
