// Package timeline хранит кадры записи и вычисляет интерполированные позы
// по нормализованному курсору.
package timeline

import (
	"math"

	"github.com/annel0/scc-replay/internal/scc"
)

// Timeline упорядоченная последовательность кадров, растущая только с хвоста.
// Кадр меняется только парсером, пока в файле дописывается его блок.
type Timeline struct {
	frames []*scc.Frame
}

// New создает таймлайн из готовых кадров
func New(frames ...*scc.Frame) *Timeline {
	tl := &Timeline{}
	tl.Append(frames...)
	return tl
}

// Append добавляет кадры в конец; nil пропускается
func (tl *Timeline) Append(frames ...*scc.Frame) {
	for _, f := range frames {
		if f != nil {
			tl.frames = append(tl.frames, f)
		}
	}
}

// Len число кадров
func (tl *Timeline) Len() int { return len(tl.frames) }

// Frame кадр по индексу, O(1)
func (tl *Timeline) Frame(i int) *scc.Frame { return tl.frames[i] }

// Position индекс кадра и доля перехода к следующему
type Position struct {
	Index int
	T     float64
}

// Locate отображает курсор [0,1] на индекс кадра.
// ok == false для пустого таймлайна. При одном кадре интерполяции нет.
func Locate(cursor float64, n int) (pos Position, ok bool) {
	if n <= 0 {
		return Position{}, false
	}
	if n == 1 {
		return Position{}, true
	}

	if math.IsNaN(cursor) || cursor < 0 {
		cursor = 0
	}
	if cursor > 1 {
		cursor = 1
	}
	remapped := cursor * float64(n-1)
	floor := math.Floor(remapped)
	index := int(floor)
	t := remapped - floor

	if index < 0 {
		index, t = 0, 0
	}
	if index >= n-1 {
		index, t = n-1, 0
	}
	return Position{Index: index, T: t}, true
}

// ProportionPerFrame доля курсора, приходящаяся на один кадр; 0 при n <= 1
func ProportionPerFrame(n int) float64 {
	if n <= 1 {
		return 0
	}
	return 1.0 / float64(n-1)
}
