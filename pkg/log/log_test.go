package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitJSONOutputWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestInitLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("should be filtered")
	assert.Empty(t, buf.String())

	Logger.Warn().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: Level("bogus"), JSONOutput: true, Output: &buf})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestWithCollectionAndSnapshotAddFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithCollection(42).Info().Msg("c")
	assert.Contains(t, buf.String(), `"collection_id":42`)

	buf.Reset()
	WithSnapshot(42, 7).Info().Msg("s")
	assert.Contains(t, buf.String(), `"commit_id":7`)
}
