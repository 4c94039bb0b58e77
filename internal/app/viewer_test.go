package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/annel0/scc-replay/internal/engine"
	"github.com/annel0/scc-replay/internal/scc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "kind,name,owner,faction,factionColor,entityId,health,position,rotation,gridSize"

func recording(t *testing.T, frames int) string {
	t.Helper()
	rows := []string{"version 2", header}
	for i := 0; i < frames; i++ {
		rows = append(rows, "start_block",
			fmt.Sprintf("grid,Ship,Owner,Red,1 0 0,E1,100,%d 0 0,0 0 0 1,Small", i*10))
	}
	path := filepath.Join(t.TempDir(), "rec.scc")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

func TestViewerWithoutSession(t *testing.T) {
	v := NewViewer(engine.New(engine.Options{}), Options{})

	err := v.Do(func(*engine.Session) error { return nil })
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = v.Summary()
	assert.ErrorIs(t, err, ErrNoSession)

	v.Step(1)
	assert.Zero(t, v.Ticks())
}

func TestViewerLoadAndStep(t *testing.T) {
	v := NewViewer(engine.New(engine.Options{}), Options{})

	summary, err := v.Load(context.Background(), recording(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Frames)

	v.Step(0.5)
	assert.EqualValues(t, 1, v.Ticks())

	var cursor float64
	require.NoError(t, v.Do(func(s *engine.Session) error {
		cursor = s.Cursor()
		return nil
	}))
	assert.Greater(t, cursor, 0.0)
}

func TestViewerFailedLoadKeepsSession(t *testing.T) {
	v := NewViewer(engine.New(engine.Options{}), Options{})
	_, err := v.Load(context.Background(), recording(t, 2))
	require.NoError(t, err)

	bad := filepath.Join(t.TempDir(), "bad.scc")
	require.NoError(t, os.WriteFile(bad, []byte("version 9\n"+header+"\n"), 0644))
	_, err = v.Load(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scc.ErrVersionMismatch))

	summary, err := v.Summary()
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Frames)
}

func TestViewerDoPropagatesError(t *testing.T) {
	v := NewViewer(engine.New(engine.Options{}), Options{})
	_, err := v.Load(context.Background(), recording(t, 2))
	require.NoError(t, err)

	boom := errors.New("boom")
	assert.Equal(t, boom, v.Do(func(*engine.Session) error { return boom }))
}

func TestViewerRunStopsOnCancel(t *testing.T) {
	v := NewViewer(engine.New(engine.Options{}), Options{TickInterval: time.Millisecond})
	_, err := v.Load(context.Background(), recording(t, 3))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	require.Eventually(t, func() bool { return v.Ticks() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены")
	}
}
