// Package playback хранит состояние проигрывателя: курсор, режимы и пресеты скорости.
package playback

import (
	"fmt"
	"math"
)

// Preset именованный множитель скорости воспроизведения
type Preset struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// DefaultPresets стандартный набор скоростей
var DefaultPresets = []Preset{
	{Name: "Very Fast", Multiplier: 10.0},
	{Name: "Fast", Multiplier: 4.0},
	{Name: "Realtime", Multiplier: 1.1},
	{Name: "Slow", Multiplier: 0.5},
}

// DefaultPresetIndex индекс "Realtime"
const DefaultPresetIndex = 2

// Presets строит набор пресетов из множителей; имена берутся из
// стандартного набора по позиции.
func Presets(multipliers []float64) []Preset {
	if len(multipliers) == 0 {
		return append([]Preset(nil), DefaultPresets...)
	}
	out := make([]Preset, len(multipliers))
	for i, m := range multipliers {
		name := fmt.Sprintf("x%.2g", m)
		if i < len(DefaultPresets) {
			name = DefaultPresets[i].Name
		}
		out[i] = Preset{Name: name, Multiplier: m}
	}
	return out
}

// State состояние воспроизведения одной сессии
type State struct {
	frames      int
	cursor      float64
	playing     bool
	streaming   bool
	looping     bool
	scrubbing   bool
	presets     []Preset
	presetIndex int
}

// NewState создает состояние с заданными пресетами. Неверный индекс
// заменяется на DefaultPresetIndex (или 0, если пресетов меньше).
func NewState(presets []Preset, presetIndex int) *State {
	if len(presets) == 0 {
		presets = DefaultPresets
	}
	s := &State{presets: append([]Preset(nil), presets...)}
	if err := s.SetPreset(presetIndex); err != nil {
		s.presetIndex = 0
		if DefaultPresetIndex < len(s.presets) {
			s.presetIndex = DefaultPresetIndex
		}
	}
	return s
}

// Reset подготавливает состояние к новой записи из frames кадров.
// Воспроизведение запускается, если есть хотя бы один кадр.
func (s *State) Reset(frames int) {
	s.frames = frames
	s.cursor = 0
	s.streaming = false
	s.scrubbing = false
	s.playing = frames > 0
}

// Frames число кадров, на которое рассчитан курсор
func (s *State) Frames() int { return s.frames }

// SetFrames обновляет число кадров без сброса курсора
func (s *State) SetFrames(n int) { s.frames = n }

// Cursor позиция курсора в [0,1]
func (s *State) Cursor() float64 { return s.cursor }

// SetCursor устанавливает курсор с ограничением в [0,1]
func (s *State) SetCursor(c float64) {
	s.cursor = clamp01(c)
}

// AtEnd курсор достиг конца записи
func (s *State) AtEnd() bool { return s.cursor >= 1 }

// Rewind откатывает курсор на один кадр из n (при n <= 1 без изменений).
// Курсор не становится отрицательным.
func (s *State) Rewind(n int) {
	if n <= 1 {
		return
	}
	s.cursor = math.Max(0, s.cursor-1/float64(n-1))
}

// Playing идет ли воспроизведение
func (s *State) Playing() bool { return s.playing }

// SetPlaying запускает или останавливает воспроизведение
func (s *State) SetPlaying(v bool) { s.playing = v }

// Streaming режим следования за растущим файлом
func (s *State) Streaming() bool { return s.streaming }

// SetStreaming включает режим стриминга
func (s *State) SetStreaming(v bool) { s.streaming = v }

func (s *State) Looping() bool { return s.looping }

func (s *State) SetLooping(v bool) { s.looping = v }

func (s *State) Scrubbing() bool { return s.scrubbing }

// BeginScrub начало перетаскивания курсора: стриминг выключается
func (s *State) BeginScrub() {
	s.scrubbing = true
	s.streaming = false
}

// EndScrub конец перетаскивания
func (s *State) EndScrub() {
	s.scrubbing = false
}

// Presets доступные пресеты скорости
func (s *State) Presets() []Preset {
	return append([]Preset(nil), s.presets...)
}

// PresetIndex индекс выбранного пресета
func (s *State) PresetIndex() int { return s.presetIndex }

// Preset выбранный пресет
func (s *State) Preset() Preset { return s.presets[s.presetIndex] }

// SetPreset выбирает пресет по индексу
func (s *State) SetPreset(index int) error {
	if index < 0 || index >= len(s.presets) {
		return fmt.Errorf("speed preset %d out of range [0,%d)", index, len(s.presets))
	}
	s.presetIndex = index
	return nil
}

// Advance сдвигает курсор на dt секунд с множителем speed.
// Один кадр записи соответствует секунде при множителе пресета 1.
// Возвращает true, если курсор изменился.
func (s *State) Advance(dt, speed float64) bool {
	if !s.playing || s.scrubbing || s.frames <= 1 || dt <= 0 {
		return false
	}
	mult := s.Preset().Multiplier
	if mult <= 0 {
		return false
	}

	before := s.cursor
	s.cursor += dt / (float64(s.frames) / mult) * speed
	if s.cursor > 1 {
		if s.looping && !s.streaming {
			s.cursor = 0
		} else {
			s.cursor = 1
		}
	}
	return s.cursor != before
}

// TimeLabel прошедшее и полное время записи, один кадр = одна секунда
func (s *State) TimeLabel() (elapsed, total string) {
	n := float64(s.frames)
	return FormatTime(math.Floor(s.cursor * n)), FormatTime(n)
}

// FormatTime форматирует секунды как HH:MM:SS
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	sec := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec%3600/60, sec%60)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
