package scc

import (
	"fmt"

	"github.com/annel0/scc-replay/internal/vec"
)

// GridSize класс размера сетки сущности
type GridSize uint8

const (
	GridSmall GridSize = iota
	GridLarge
)

// String возвращает имя класса в формате SCC
func (g GridSize) String() string {
	switch g {
	case GridSmall:
		return "Small"
	case GridLarge:
		return "Large"
	default:
		return "Unknown"
	}
}

// VoxelPitch размер одного вокселя в единицах сцены
func (g GridSize) VoxelPitch() float64 {
	if g == GridSmall {
		return 0.5
	}
	return 2.5
}

// MarshalText для JSON-ответов API
func (g GridSize) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText для клиентов API
func (g *GridSize) UnmarshalText(text []byte) error {
	v, err := ParseGridSize(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// ParseGridSize разбирает значение колонки gridSize
func ParseGridSize(s string) (GridSize, error) {
	switch s {
	case "Small":
		return GridSmall, nil
	case "Large":
		return GridLarge, nil
	default:
		return 0, fmt.Errorf("неизвестный gridSize %q", s)
	}
}

// EntitySnapshot состояние одной сущности в кадре. Не изменяется после разбора.
type EntitySnapshot struct {
	EntityID     string
	Name         string
	Owner        string
	Faction      string
	FactionColor vec.Vec3Float
	Health       float64
	Position     vec.Vec3Float
	Orientation  vec.Quat
	GridSize     GridSize
}

// Frame один записанный шаг: набор снимков, уникальных по EntityID
type Frame struct {
	entities []EntitySnapshot
	index    map[string]int
}

func newFrame() *Frame {
	return &Frame{index: make(map[string]int)}
}

// add добавляет снимок; false если EntityID уже есть в кадре
func (f *Frame) add(e EntitySnapshot) bool {
	if _, exists := f.index[e.EntityID]; exists {
		return false
	}
	f.index[e.EntityID] = len(f.entities)
	f.entities = append(f.entities, e)
	return true
}

// NewFrame собирает кадр из снимков; дубликаты EntityID отбрасываются
func NewFrame(entities ...EntitySnapshot) *Frame {
	f := newFrame()
	for _, e := range entities {
		f.add(e)
	}
	return f
}

// Len число сущностей в кадре
func (f *Frame) Len() int { return len(f.entities) }

// At снимок по порядковому номеру
func (f *Frame) At(i int) EntitySnapshot { return f.entities[i] }

// Find ищет сущность по EntityID
func (f *Frame) Find(entityID string) (EntitySnapshot, bool) {
	i, ok := f.index[entityID]
	if !ok {
		return EntitySnapshot{}, false
	}
	return f.entities[i], true
}

// Entities возвращает копию списка снимков
func (f *Frame) Entities() []EntitySnapshot {
	return append([]EntitySnapshot(nil), f.entities...)
}
