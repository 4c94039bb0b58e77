package recorder

import (
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/annel0/scc-replay/internal/scc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingParses(t *testing.T) {
	var buf bytes.Buffer
	entities := RandomEntities(5, rand.New(rand.NewSource(1)))
	rec := New(&buf, entities, NewMotion(7))

	require.NoError(t, rec.WriteHeader())
	for i := 0; i < 4; i++ {
		require.NoError(t, rec.WriteFrame(float64(i)))
	}
	assert.Equal(t, 4, rec.Frames())

	p := scc.NewParser(scc.Options{SupportedVersion: Version})
	batch, err := p.ParseFull(buf.String())
	require.NoError(t, err)
	require.Len(t, batch.Frames, 4)
	assert.Len(t, batch.Volumes, 5)
	assert.Zero(t, p.Summary().IssueCount())
	assert.Equal(t, 5, batch.Frames[0].Len())

	// объемы пишутся только один раз
	assert.Equal(t, 5, strings.Count(buf.String(), "\nvolume,"))
}

func TestRandomEntities(t *testing.T) {
	entities := RandomEntities(8, rand.New(rand.NewSource(3)))
	require.Len(t, entities, 8)

	ids := map[string]bool{}
	for i, e := range entities {
		ids[e.ID] = true
		if i%4 == 3 {
			assert.True(t, strings.HasPrefix(e.Name, "Large Grid"))
			assert.Equal(t, scc.GridLarge, e.GridSize)
		}
		assert.GreaterOrEqual(t, e.Size, 2)
	}
	assert.Len(t, ids, 8)
}

func TestMotionDeterministic(t *testing.T) {
	a, b := NewMotion(42), NewMotion(42)
	for _, ts := range []float64{0, 1.5, 10} {
		assert.Equal(t, a.Position(2, ts), b.Position(2, ts))
	}
	q := a.Heading(0, 3)
	assert.InDelta(t, 1.0, math.Sqrt(q.Y*q.Y+q.W*q.W), 1e-9)
}

func TestHullIsSphere(t *testing.T) {
	var buf bytes.Buffer
	rec := New(&buf, []Entity{{ID: "E1", Name: "Probe", GridSize: scc.GridSmall, Size: 5}}, NewMotion(1))
	require.NoError(t, rec.WriteHeader())
	require.NoError(t, rec.WriteFrame(0))

	p := scc.NewParser(scc.Options{SupportedVersion: Version})
	batch, err := p.ParseFull(buf.String())
	require.NoError(t, err)
	require.Len(t, batch.Volumes, 1)

	v := batch.Volumes[0]
	assert.True(t, v.Occupied(2, 2, 2))
	assert.False(t, v.Occupied(0, 0, 0), "угол куба вне шара")
	assert.Less(t, v.Count(), 125)
}
