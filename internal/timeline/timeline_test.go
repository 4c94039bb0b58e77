package timeline

import (
	"math"
	"testing"

	"github.com/annel0/scc-replay/internal/scc"
	"github.com/annel0/scc-replay/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(id string, x float64) scc.EntitySnapshot {
	return scc.EntitySnapshot{
		EntityID:    id,
		Name:        "Ship " + id,
		Position:    vec.Vec3Float{X: x},
		Orientation: vec.QuatIdentity,
	}
}

func threeFrames() *Timeline {
	return New(
		scc.NewFrame(snap("E1", 0)),
		scc.NewFrame(snap("E1", 10)),
		scc.NewFrame(snap("E1", 20)),
	)
}

func TestLocateBoundaries(t *testing.T) {
	pos, ok := Locate(0, 5)
	require.True(t, ok)
	assert.Equal(t, Position{Index: 0, T: 0}, pos)

	pos, ok = Locate(1, 5)
	require.True(t, ok)
	assert.Equal(t, 4, pos.Index)
	assert.Equal(t, 0.0, pos.T)

	pos, _ = Locate(1.7, 5)
	assert.Equal(t, 4, pos.Index, "курсор за концом не выходит за N-1")

	pos, _ = Locate(-0.3, 5)
	assert.Equal(t, Position{}, pos)

	pos, _ = Locate(math.NaN(), 5)
	assert.Equal(t, Position{}, pos)
}

func TestLocateSmallTimelines(t *testing.T) {
	_, ok := Locate(0.5, 0)
	assert.False(t, ok)

	pos, ok := Locate(0.5, 1)
	assert.True(t, ok)
	assert.Equal(t, Position{}, pos, "один кадр: статичный показ без деления на ноль")

	assert.Equal(t, 0.0, ProportionPerFrame(1))
	assert.Equal(t, 0.5, ProportionPerFrame(3))
}

func TestSampleScenario(t *testing.T) {
	pos, poses := Sample(threeFrames(), 0.25)

	assert.Equal(t, 0, pos.Index)
	assert.InDelta(t, 0.5, pos.T, 1e-12)
	require.Len(t, poses, 1)
	assert.InDelta(t, 5.0, poses[0].Position.X, 1e-9)
	assert.Equal(t, 0.0, poses[0].Position.Y)
}

func TestSampleEndOfTimeline(t *testing.T) {
	_, poses := Sample(threeFrames(), 1)
	require.Len(t, poses, 1)
	assert.Equal(t, 20.0, poses[0].Position.X)
}

func TestSampleIdempotent(t *testing.T) {
	tl := threeFrames()
	_, a := Sample(tl, 0.6)
	_, b := Sample(tl, 0.6)
	assert.Equal(t, a, b)
}

func TestSampleEntityMissingInNextFrame(t *testing.T) {
	tl := New(
		scc.NewFrame(snap("E1", 0), snap("E2", 7)),
		scc.NewFrame(snap("E1", 10)),
	)

	_, poses := Sample(tl, 0.5)
	require.Len(t, poses, 2)
	assert.Equal(t, 5.0, poses[0].Position.X)
	assert.Equal(t, 7.0, poses[1].Position.X, "без пары в следующем кадре движения нет")

	_, poses = Sample(tl, 1)
	require.Len(t, poses, 1, "сущности, которых нет в текущем кадре, не выдаются")
	assert.Equal(t, "E1", poses[0].EntityID)
}

func TestSampleSingleAndEmpty(t *testing.T) {
	_, poses := Sample(New(), 0.5)
	assert.Nil(t, poses)

	_, poses = Sample(New(scc.NewFrame(snap("E1", 3))), 0.9)
	require.Len(t, poses, 1)
	assert.Equal(t, 3.0, poses[0].Position.X)
}

func TestSampleSlerpShortestPath(t *testing.T) {
	// Поворот на 90° вокруг Y; второй кадр хранит -q того же поворота
	s := math.Sqrt(0.5)
	a := snap("E1", 0)
	b := snap("E1", 0)
	a.Orientation = vec.QuatIdentity
	b.Orientation = vec.Quat{Y: -s, W: -s}

	tl := New(scc.NewFrame(a), scc.NewFrame(b))
	_, poses := Sample(tl, 0.5)
	require.Len(t, poses, 1)

	q := poses[0].Orientation
	// Половина от 90° = 45°: w = cos(22.5°)
	assert.InDelta(t, math.Cos(math.Pi/8), math.Abs(q.W), 1e-9)
	assert.InDelta(t, 1.0, q.Length(), 1e-9)
}

func TestSampleNormalizesInputs(t *testing.T) {
	a := snap("E1", 0)
	a.Orientation = vec.Quat{W: 2}
	tl := New(scc.NewFrame(a), scc.NewFrame(a))

	_, poses := Sample(tl, 0.3)
	require.Len(t, poses, 1)
	assert.InDelta(t, 1.0, poses[0].Orientation.W, 1e-9)
}

func TestAppendKeepsExistingFrames(t *testing.T) {
	tl := threeFrames()
	first := tl.Frame(0)
	tl.Append(scc.NewFrame(snap("E1", 30)), nil)

	assert.Equal(t, 4, tl.Len())
	assert.Same(t, first, tl.Frame(0))
}
