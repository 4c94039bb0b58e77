// Package volume декодирует воксельные объемы SCC: base64 -> RLE -> LE-заголовок
// (Width, Height, Depth) -> битовая маска занятости (MSB-first).
package volume

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/vec"
)

// ErrDecodeFailure объем не удалось декодировать; сущность отображается без объема
var ErrDecodeFailure = errors.New("volume decode failure")

const headerSize = 12

// Volume неизменяемая сетка занятости, привязанная к одной сущности
type Volume struct {
	entityID string
	width    int
	height   int
	depth    int
	bits     []byte
	count    int
	surface  int
}

// EntityID идентификатор сущности-владельца
func (v *Volume) EntityID() string { return v.entityID }

// Size размеры сетки
func (v *Volume) Size() (width, height, depth int) { return v.width, v.height, v.depth }

// Bits возвращает копию битовой маски
func (v *Volume) Bits() []byte { return append([]byte(nil), v.bits...) }

// Count число занятых ячеек
func (v *Volume) Count() int { return v.count }

// SurfaceCount число открытых ячеек, то есть len(Surface()) без обхода сетки
func (v *Volume) SurfaceCount() int { return v.surface }

// Occupied занята ли ячейка; вне границ всегда false
func (v *Volume) Occupied(x, y, z int) bool {
	if x < 0 || y < 0 || z < 0 || x >= v.width || y >= v.height || z >= v.depth {
		return false
	}
	idx := z*v.width*v.height + y*v.width + x
	return v.bits[idx/8]&(1<<(7-uint(idx%8))) != 0
}

// Surface возвращает открытые ячейки: занятые, у которых хотя бы один
// из 6 осевых соседей свободен или лежит за границей.
func (v *Volume) Surface() []vec.Vec3 {
	var cells []vec.Vec3
	for z := 0; z < v.depth; z++ {
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				if v.exposed(x, y, z) {
					cells = append(cells, vec.Vec3{X: x, Y: y, Z: z})
				}
			}
		}
	}
	return cells
}

func (v *Volume) exposed(x, y, z int) bool {
	if !v.Occupied(x, y, z) {
		return false
	}
	for _, n := range vec.Neighbors6 {
		if !v.Occupied(x+n.X, y+n.Y, z+n.Z) {
			return true
		}
	}
	return false
}

// New создает объем из готовой маски; длина маски проверяется
func New(entityID string, width, height, depth int, mask []byte) (*Volume, error) {
	expected, ok := maskLen(width, height, depth)
	if !ok {
		return nil, fmt.Errorf("%w: недопустимые размеры %dx%dx%d", ErrDecodeFailure, width, height, depth)
	}
	if uint64(len(mask)) != expected {
		return nil, fmt.Errorf("%w: размер маски %d байт, ожидалось %d для %dx%dx%d",
			ErrDecodeFailure, len(mask), expected, width, height, depth)
	}

	v := &Volume{
		entityID: entityID,
		width:    width,
		height:   height,
		depth:    depth,
		bits:     append([]byte(nil), mask...),
	}
	cells := width * height * depth
	for i := 0; i < cells; i++ {
		if v.bits[i/8]&(1<<(7-uint(i%8))) != 0 {
			v.count++
		}
	}
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if v.exposed(x, y, z) {
					v.surface++
				}
			}
		}
	}
	return v, nil
}

// maskLen ceil(w*h*d/8) с защитой от переполнения
func maskLen(w, h, d int) (uint64, bool) {
	if w < 0 || h < 0 || d < 0 {
		return 0, false
	}
	hi, wh := bits.Mul64(uint64(w), uint64(h))
	if hi != 0 {
		return 0, false
	}
	hi, cells := bits.Mul64(wh, uint64(d))
	if hi != 0 || cells > 1<<40 {
		return 0, false
	}
	return (cells + 7) / 8, true
}

// Cache хранит раскрытый RLE-поток по исходному payload
type Cache interface {
	Get(payload string) ([]byte, bool)
	Put(payload string, raw []byte)
}

// Decoder декодирует payload объемов; кеш и логгер необязательны
type Decoder struct {
	Cache  Cache
	Logger *logging.Logger
}

// Decode декодирует payload без кеша
func Decode(entityID, payload string) (*Volume, error) {
	return (&Decoder{}).Decode(entityID, payload)
}

// Decode base64 -> RLE -> заголовок -> маска
func (d *Decoder) Decode(entityID, payload string) (*Volume, error) {
	var raw []byte
	cached := false
	if d.Cache != nil {
		raw, cached = d.Cache.Get(payload)
	}

	if !cached {
		packed, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %v", ErrDecodeFailure, err)
		}

		var truncated bool
		raw, truncated = DecompressRLE(packed)
		if truncated {
			d.Logger.Warn("объем %s: нечетная длина RLE-потока (%d байт), последний байт отброшен", entityID, len(packed))
		}
		if d.Cache != nil {
			d.Cache.Put(payload, raw)
		}
	}

	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: поток %d байт короче заголовка", ErrDecodeFailure, len(raw))
	}

	width := int(int32(binary.LittleEndian.Uint32(raw[0:4])))
	height := int(int32(binary.LittleEndian.Uint32(raw[4:8])))
	depth := int(int32(binary.LittleEndian.Uint32(raw[8:12])))

	return New(entityID, width, height, depth, raw[headerSize:])
}

// Encode упаковывает объем обратно в payload (заголовок + маска -> RLE -> base64)
func Encode(width, height, depth int, mask []byte) string {
	raw := make([]byte, headerSize, headerSize+len(mask))
	binary.LittleEndian.PutUint32(raw[0:4], uint32(int32(width)))
	binary.LittleEndian.PutUint32(raw[4:8], uint32(int32(height)))
	binary.LittleEndian.PutUint32(raw[8:12], uint32(int32(depth)))
	raw = append(raw, mask...)
	return base64.StdEncoding.EncodeToString(CompressRLE(raw))
}

// PackBits упаковывает функцию занятости в маску MSB-first
func PackBits(width, height, depth int, occupied func(x, y, z int) bool) []byte {
	cells := width * height * depth
	mask := make([]byte, (cells+7)/8)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if occupied(x, y, z) {
					idx := z*width*height + y*width + x
					mask[idx/8] |= 1 << (7 - uint(idx%8))
				}
			}
		}
	}
	return mask
}
