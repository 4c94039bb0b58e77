package volume

import (
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/annel0/scc-replay/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressRLE(t *testing.T) {
	out, truncated := DecompressRLE([]byte{0x01, 0x03, 0x00, 0x05})
	assert.False(t, truncated)
	assert.Equal(t, []byte{1, 1, 1, 0, 0, 0, 0, 0}, out)
}

func TestDecompressRLEOddLength(t *testing.T) {
	out, truncated := DecompressRLE([]byte{0x07, 0x02, 0x09})
	assert.True(t, truncated, "нечетная длина должна помечаться")
	assert.Equal(t, []byte{7, 7}, out)
}

func TestDecompressRLEZeroCount(t *testing.T) {
	out, _ := DecompressRLE([]byte{0x05, 0x00, 0x06, 0x01})
	assert.Equal(t, []byte{6}, out)
}

func TestCompressRLESplitsLongRuns(t *testing.T) {
	data := make([]byte, 300)
	packed := CompressRLE(data)
	assert.Equal(t, []byte{0, 255, 0, 45}, packed)

	out, _ := DecompressRLE(packed)
	assert.Equal(t, data, out)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	w, h, d := 5, 3, 4
	mask := PackBits(w, h, d, func(x, y, z int) bool {
		return (x+y+z)%3 == 0
	})

	payload := Encode(w, h, d, mask)
	v, err := Decode("E1", payload)
	require.NoError(t, err)

	gw, gh, gd := v.Size()
	assert.Equal(t, []int{w, h, d}, []int{gw, gh, gd})
	assert.Equal(t, mask, v.Bits(), "маска должна восстанавливаться без потерь")
	assert.Equal(t, "E1", v.EntityID())

	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				assert.Equal(t, (x+y+z)%3 == 0, v.Occupied(x, y, z))
			}
		}
	}
}

func TestBitOrderMSBFirst(t *testing.T) {
	// 2x2x2: только ячейка (1,0,0) -> bitIndex 1 -> бит 6 первого байта
	v, err := New("E", 2, 2, 2, []byte{0x40})
	require.NoError(t, err)
	assert.True(t, v.Occupied(1, 0, 0))
	assert.False(t, v.Occupied(0, 0, 0))
	assert.Equal(t, 1, v.Count())

	// ячейка (0,1,1): 1*4 + 1*2 + 0 = 6 -> бит 1
	v, err = New("E", 2, 2, 2, []byte{0x02})
	require.NoError(t, err)
	assert.True(t, v.Occupied(0, 1, 1))
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"invalid base64", "@@not-base64@@"},
		{"short header", base64.StdEncoding.EncodeToString(CompressRLE([]byte{1, 0, 0, 0}))},
		{"size mismatch", func() string {
			raw := make([]byte, 12, 14)
			binary.LittleEndian.PutUint32(raw[0:], 4)
			binary.LittleEndian.PutUint32(raw[4:], 4)
			binary.LittleEndian.PutUint32(raw[8:], 4)
			raw = append(raw, 0xFF, 0xFF) // нужно 8 байт
			return base64.StdEncoding.EncodeToString(CompressRLE(raw))
		}()},
		{"negative size", func() string {
			raw := make([]byte, 12)
			binary.LittleEndian.PutUint32(raw[0:], 0xFFFFFFFF)
			binary.LittleEndian.PutUint32(raw[4:], 1)
			binary.LittleEndian.PutUint32(raw[8:], 1)
			return base64.StdEncoding.EncodeToString(CompressRLE(raw))
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode("E", tt.payload)
			assert.Nil(t, v)
			assert.ErrorIs(t, err, ErrDecodeFailure)
		})
	}
}

func TestSurfaceSolidCube(t *testing.T) {
	// Сплошной куб 3x3x3: центральная ячейка закрыта со всех сторон
	mask := PackBits(3, 3, 3, func(x, y, z int) bool { return true })
	v, err := New("cube", 3, 3, 3, mask)
	require.NoError(t, err)

	surface := v.Surface()
	assert.Len(t, surface, 26)
	assert.NotContains(t, surface, vec.Vec3{X: 1, Y: 1, Z: 1})
	assert.Equal(t, 27, v.Count())
	assert.Equal(t, 26, v.SurfaceCount())
}

func TestSurfaceCountMatchesSurface(t *testing.T) {
	shapes := map[string]func(x, y, z int) bool{
		"пусто":    func(x, y, z int) bool { return false },
		"сплошной": func(x, y, z int) bool { return true },
		"оболочка": func(x, y, z int) bool { return x == 0 || x == 4 || y == 0 || y == 4 || z == 0 || z == 4 },
		"шахматы":  func(x, y, z int) bool { return (x+y+z)%2 == 0 },
		"плита":    func(x, y, z int) bool { return y < 2 },
	}
	for name, occupied := range shapes {
		t.Run(name, func(t *testing.T) {
			v, err := New(name, 5, 5, 5, PackBits(5, 5, 5, occupied))
			require.NoError(t, err)
			assert.Equal(t, len(v.Surface()), v.SurfaceCount())
		})
	}

	solid, err := New("solid", 5, 5, 5, PackBits(5, 5, 5, shapes["сплошной"]))
	require.NoError(t, err)
	assert.Equal(t, 125, solid.Count())
	assert.Equal(t, 98, solid.SurfaceCount(), "внутренние 3x3x3 закрыты")
}

func TestSurfaceSingleCell(t *testing.T) {
	mask := PackBits(1, 1, 1, func(x, y, z int) bool { return true })
	v, err := New("dot", 1, 1, 1, mask)
	require.NoError(t, err)
	assert.Equal(t, []vec.Vec3{{X: 0, Y: 0, Z: 0}}, v.Surface(), "соседи за границей считаются пустыми")
	assert.Equal(t, 1, v.SurfaceCount())
}

type mapCache struct {
	data map[string][]byte
	hits int
}

func (m *mapCache) Get(payload string) ([]byte, bool) {
	raw, ok := m.data[payload]
	if ok {
		m.hits++
	}
	return raw, ok
}

func (m *mapCache) Put(payload string, raw []byte) { m.data[payload] = raw }

func TestDecoderUsesCache(t *testing.T) {
	cache := &mapCache{data: map[string][]byte{}}
	dec := &Decoder{Cache: cache}

	mask := PackBits(2, 2, 2, func(x, y, z int) bool { return x == y })
	payload := Encode(2, 2, 2, mask)

	first, err := dec.Decode("A", payload)
	require.NoError(t, err)
	second, err := dec.Decode("B", payload)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Bits(), second.Bits())
	assert.Equal(t, "B", second.EntityID())
}
