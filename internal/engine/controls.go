package engine

import (
	"sort"
	"strings"

	"github.com/annel0/scc-replay/internal/playback"
	"github.com/annel0/scc-replay/internal/volume"
)

// HiddenNamePrefix сущности с таким именем не попадают в список
const HiddenNamePrefix = "Large Grid"

// SetCursor устанавливает курсор (значение ограничивается [0,1]) и
// сразу пересчитывает позы
func (s *Session) SetCursor(c float64) {
	s.state.SetCursor(c)
	s.refresh()
}

// Cursor текущая позиция курсора
func (s *Session) Cursor() float64 { return s.state.Cursor() }

// CurrentPoses видимые маркеры на момент курсора
func (s *Session) CurrentPoses() []Marker {
	return s.markers.Visible()
}

// IsStreaming включен ли режим следования за хвостом файла
func (s *Session) IsStreaming() bool { return s.state.Streaming() }

// TimeLabel прошедшее и полное время в формате HH:MM:SS
func (s *Session) TimeLabel() (elapsed, total string) { return s.state.TimeLabel() }

// BeginScrub начало перетаскивания: стриминг выключается, опрос файла
// приостанавливается до EndScrub
func (s *Session) BeginScrub() {
	if s.state.Streaming() {
		s.setStreaming(false, "scrub")
	}
	s.state.BeginScrub()
}

// EndScrub конец перетаскивания
func (s *Session) EndScrub() {
	s.state.EndScrub()
}

// SetPlaying запускает или останавливает воспроизведение
func (s *Session) SetPlaying(on bool) {
	if s.state.Playing() == on {
		return
	}
	s.state.SetPlaying(on)
	s.emitPlayState()
}

// TogglePlaying переключает воспроизведение
func (s *Session) TogglePlaying() bool {
	s.SetPlaying(!s.state.Playing())
	return s.state.Playing()
}

// SetSpeedPreset выбирает пресет скорости
func (s *Session) SetSpeedPreset(index int) error {
	if err := s.state.SetPreset(index); err != nil {
		return err
	}
	s.emitPlayState()
	return nil
}

// SetLooping включает зацикливание
func (s *Session) SetLooping(on bool) {
	s.state.SetLooping(on)
	s.emitPlayState()
}

// Volume объем сущности, если он был декодирован
func (s *Session) Volume(entityID string) (*volume.Volume, bool) {
	v, ok := s.volumes[entityID]
	return v, ok
}

// VolumeCount число зарегистрированных объемов
func (s *Session) VolumeCount() int { return len(s.volumes) }

// EntityItem элемент списка сущностей
type EntityItem struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	Faction  string `json:"faction"`
}

// Entities сущности текущего кадра, кроме "Large Grid…", по имени
func (s *Session) Entities() []EntityItem {
	markers := s.markers.Visible()
	out := make([]EntityItem, 0, len(markers))
	for _, m := range markers {
		if strings.HasPrefix(m.Name, HiddenNamePrefix) {
			continue
		}
		out = append(out, EntityItem{EntityID: m.EntityID, Name: m.Name, Owner: m.Owner, Faction: m.Faction})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Tracking результат поиска отслеживаемой сущности
type Tracking struct {
	EntityID string `json:"entity_id"`
	Found    bool   `json:"found"`
	Visible  bool   `json:"visible"`
	Marker   Marker `json:"marker"`
}

// Track выбирает сущность для слежения; пустой id сбрасывает выбор
func (s *Session) Track(entityID string) Tracking {
	s.tracked = entityID
	return s.Tracked()
}

// Tracked текущее состояние отслеживаемой сущности. Скрытая сущность
// возвращает последнюю известную позу.
func (s *Session) Tracked() Tracking {
	if s.tracked == "" {
		return Tracking{}
	}
	m, visible, ok := s.markers.Get(s.tracked)
	return Tracking{EntityID: s.tracked, Found: ok, Visible: visible, Marker: m}
}

// Status снимок состояния для внешних наблюдателей
type Status struct {
	SessionID   string            `json:"session_id"`
	Path        string            `json:"path"`
	Frames      int               `json:"frames"`
	Volumes     int               `json:"volumes"`
	FrameIndex  int               `json:"frame_index"`
	FrameT      float64           `json:"frame_t"`
	Cursor      float64           `json:"cursor"`
	Playing     bool              `json:"playing"`
	Streaming   bool              `json:"streaming"`
	Looping     bool              `json:"looping"`
	Scrubbing   bool              `json:"scrubbing"`
	Preset      playback.Preset   `json:"preset"`
	PresetIndex int               `json:"preset_index"`
	Presets     []playback.Preset `json:"presets"`
	Speed       float64           `json:"speed"`
	Buffered    float64           `json:"buffered_frames"`
	Elapsed     string            `json:"elapsed"`
	Total       string            `json:"total"`
	BytesRead   int64             `json:"bytes_read"`
	Tracked     string            `json:"tracked,omitempty"`
}

// Status снимок состояния
func (s *Session) Status() Status {
	elapsed, total := s.state.TimeLabel()
	return Status{
		SessionID:   s.id,
		Path:        s.path,
		Frames:      s.timeline.Len(),
		Volumes:     len(s.volumes),
		FrameIndex:  s.position.Index,
		FrameT:      s.position.T,
		Cursor:      s.state.Cursor(),
		Playing:     s.state.Playing(),
		Streaming:   s.state.Streaming(),
		Looping:     s.state.Looping(),
		Scrubbing:   s.state.Scrubbing(),
		Preset:      s.state.Preset(),
		PresetIndex: s.state.PresetIndex(),
		Presets:     s.state.Presets(),
		Speed:       s.speed.LastSpeed(),
		Buffered:    s.speed.LastBuffered(),
		Elapsed:     elapsed,
		Total:       total,
		BytesRead:   s.tailer.Offset(),
		Tracked:     s.tracked,
	}
}
