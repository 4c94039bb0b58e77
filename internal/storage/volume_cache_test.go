package storage

import (
	"bytes"
	"testing"

	"github.com/annel0/scc-replay/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeCacheInMemory(t *testing.T) {
	vc, err := NewVolumeCache("", nil)
	require.NoError(t, err)
	defer vc.Close()

	_, ok := vc.Get("payload")
	assert.False(t, ok)

	raw := bytes.Repeat([]byte{0xAB, 0x00}, 512)
	vc.Put("payload", raw)

	got, ok := vc.Get("payload")
	require.True(t, ok)
	assert.Equal(t, raw, got)
	assert.Equal(t, 1, vc.Len())
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Writes: 1}, vc.Stats())
}

func TestVolumeCachePersists(t *testing.T) {
	dir := t.TempDir()

	vc, err := NewVolumeCache(dir, nil)
	require.NoError(t, err)
	vc.Put("abc", []byte{1, 2, 3})
	require.NoError(t, vc.Close())
	require.NoError(t, vc.Close(), "повторное закрытие безопасно")

	vc, err = NewVolumeCache(dir, nil)
	require.NoError(t, err)
	defer vc.Close()

	got, ok := vc.Get("abc")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestVolumeCacheClosed(t *testing.T) {
	vc, err := NewVolumeCache("", nil)
	require.NoError(t, err)
	require.NoError(t, vc.Close())

	vc.Put("x", []byte{1})
	_, ok := vc.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, vc.Len())
}

func TestKeyDependsOnLength(t *testing.T) {
	assert.NotEqual(t, Key("a"), Key("aa"))
	assert.Equal(t, Key("same"), Key("same"))
	assert.True(t, bytes.HasPrefix(Key("x"), keyPrefix))
}

func TestDecoderUsesVolumeCache(t *testing.T) {
	vc, err := NewVolumeCache("", nil)
	require.NoError(t, err)
	defer vc.Close()

	mask := volume.PackBits(2, 2, 2, func(x, y, z int) bool { return true })
	payload := volume.Encode(2, 2, 2, mask)
	dec := &volume.Decoder{Cache: vc}

	first, err := dec.Decode("E1", payload)
	require.NoError(t, err)
	second, err := dec.Decode("E1", payload)
	require.NoError(t, err)

	assert.Equal(t, first.Bits(), second.Bits())
	assert.Equal(t, 8, second.Count())
	assert.Equal(t, uint64(1), vc.Stats().Hits)
	assert.Equal(t, uint64(1), vc.Stats().Writes)
}
