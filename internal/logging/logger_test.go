package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		" warn ":  WARN,
		"warning": WARN,
		"error":   ERROR,
		"info":    INFO,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFileLoggerRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	o := DefaultOptions()
	o.Dir = dir
	o.ConsoleLevel = ERROR
	o.FileLevel = INFO

	l, err := newLoggerWithOptions("scc", o)
	require.NoError(t, err)
	l.Debug("скрытое %d", 1)
	l.Info("загружено %d кадров", 3)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "scc.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "загружено 3 кадров")
	assert.Contains(t, string(data), `"component":"scc"`)
	assert.NotContains(t, string(data), "скрытое")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.Error("y")
		_ = l.Zap()
		assert.NoError(t, l.Close())
	})
}

func TestManagerReturnsSameLogger(t *testing.T) {
	Configure(Options{ConsoleLevel: ERROR, FileLevel: ERROR})
	t.Cleanup(func() { Configure(DefaultOptions()) })

	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	a, err := lm.GetLogger("engine")
	require.NoError(t, err)
	b, err := lm.GetLogger("engine")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []string{"engine"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("engine", DEBUG, DEBUG))
	assert.Error(t, lm.SetLogLevel("missing", DEBUG, DEBUG))
	assert.NoError(t, lm.CloseAll())
}
