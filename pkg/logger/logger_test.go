package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Init)

	SetVerbose(false)
	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	t.Cleanup(func() { SetVerbose(false) })
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "DEBUG: ")
	assert.Contains(t, buf.String(), "shown 2")
}

func TestLevelsReportCaller(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Init)

	Infof("batch %d done", 3)
	Warn("slow source")
	Errorf("fetch failed")

	out := buf.String()
	assert.Contains(t, out, "INFO: ")
	assert.Contains(t, out, "WARN: ")
	assert.Contains(t, out, "ERROR: ")
	assert.Contains(t, out, "logger_test.go")
}

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, InitLogger(path, INFO))
	t.Cleanup(func() {
		Close()
		Init()
	})

	Info("written to file")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
