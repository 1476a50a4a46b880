package log_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/log"
)

func TestStderrWriterFormat(t *testing.T) {
	assert.Equal(t, os.Stderr, log.StderrWriter(configs.LogFormatJSON))
	assert.IsType(t, zerolog.ConsoleWriter{}, log.StderrWriter(configs.LogFormatConsole))
	assert.IsType(t, zerolog.ConsoleWriter{}, log.StderrWriter(""))
}

func TestGinWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	l := zerolog.New(&buf).Level(zerolog.DebugLevel)

	w := log.NewGinWriter(&l, zerolog.ErrorLevel)
	n, err := w.Write([]byte("  [GIN] boom \n"))
	require.NoError(t, err)
	assert.Equal(t, 14, n)

	var ev map[string]any
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &ev))
	assert.Equal(t, "error", ev["level"])
	assert.Equal(t, "gin", ev["source"])
	assert.Equal(t, "[GIN] boom", ev["message"])

	buf.Reset()

	_, err = log.NewGinWriter(&l, zerolog.InfoLevel).Write([]byte("   "))
	require.NoError(t, err)
	assert.Zero(t, buf.Len())
}
