package engine

import (
	"time"

	"github.com/annel0/scc-replay/internal/eventbus"
	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/metrics"
	"github.com/annel0/scc-replay/internal/pid"
	"github.com/annel0/scc-replay/internal/playback"
	"github.com/annel0/scc-replay/internal/scc"
	"github.com/annel0/scc-replay/internal/stream"
	"github.com/annel0/scc-replay/internal/timeline"
	"github.com/annel0/scc-replay/internal/volume"
)

// Session состояние воспроизведения одного файла. Все изменения происходят
// в Tick и методах управления; сессия не потокобезопасна.
type Session struct {
	id      string
	path    string
	opts    Options
	log     *logging.Logger
	metrics *metrics.Engine

	parser   *scc.Parser
	timeline *timeline.Timeline
	volumes  map[string]*volume.Volume
	tailer   *stream.Tailer
	state    *playback.State
	speed    *pid.SpeedController
	markers  *Registry
	emit     *eventbus.Emitter

	tracked       string
	position      timeline.Position
	bytesReported int64
	issues        map[string]int
}

// ID идентификатор сессии
func (s *Session) ID() string { return s.id }

// Path путь к файлу записи
func (s *Session) Path() string { return s.path }

// FrameCount число кадров таймлайна
func (s *Session) FrameCount() int { return s.timeline.Len() }

// Summary сводка разбора с учетом дописанных строк
func (s *Session) Summary() scc.Summary { return s.parser.Summary() }

// Tick один шаг движка: опрос файла (если не идет перетаскивание),
// продвижение курсора и обновление маркеров. Ошибки не возвращаются.
func (s *Session) Tick(dt float64) {
	start := time.Now()

	if !s.state.Scrubbing() && s.tailer.Due() {
		lines, err := s.tailer.Poll()
		if err != nil {
			s.log.Warn("опрос %s: %v", s.path, err)
			s.metrics.ObservePollError()
		}
		s.reportBytes()
		if len(lines) > 0 {
			s.ingest(lines)
		}
	}

	s.advance(dt)
	s.refresh()

	s.metrics.ObserveState(s.state.Cursor(), s.state.Playing(), s.state.Streaming(), s.speed.LastSpeed(), s.speed.LastBuffered())
	s.metrics.ObserveTick(time.Since(start).Seconds())
}

// OnFileGrew принимает дописанные байты от внешнего наблюдателя за файлом
func (s *Session) OnFileGrew(data []byte) {
	lines := s.tailer.Feed(data)
	s.reportBytes()
	if len(lines) > 0 {
		s.ingest(lines)
		s.refresh()
	}
}

func (s *Session) reportBytes() {
	read := s.tailer.Stats().BytesRead
	s.metrics.ObserveBytes(int(read - s.bytesReported))
	s.bytesReported = read
}

// ingest разбирает новые строки. Перед добавлением кадров курсор
// откатывается на один кадр старого таймлайна; если курсор был в конце,
// включается стриминг.
func (s *Session) ingest(lines []string) {
	batch := s.parser.ParseLines(lines)
	s.addVolumes(batch.Volumes)

	issues := s.parser.Summary().Issues
	s.metrics.AddIssues(issueDelta(issues, s.issues))
	s.issues = issues

	if len(batch.Frames) == 0 {
		return
	}

	oldN := s.timeline.Len()
	// Пустой таймлайн: следить больше не за чем, кроме хвоста
	wasAtEnd := s.state.AtEnd() || oldN == 0
	s.state.Rewind(oldN)
	s.timeline.Append(batch.Frames...)
	s.state.SetFrames(s.timeline.Len())

	if oldN == 0 {
		s.state.SetPlaying(true)
	}
	if wasAtEnd && !s.state.Streaming() {
		s.setStreaming(true, "tail")
	}

	s.metrics.ObserveAppend(len(batch.Frames), s.timeline.Len(), len(s.volumes))
	s.emit.Emit(eventbus.TypeFramesAppended, eventbus.PriorityLow, eventbus.FramesAppended{
		Added:     len(batch.Frames),
		Total:     s.timeline.Len(),
		Streaming: s.state.Streaming(),
	})
	s.log.Debug("+%d кадров (всего %d), курсор %.4f, стриминг=%v", len(batch.Frames), s.timeline.Len(), s.state.Cursor(), s.state.Streaming())
}

// addVolumes регистрирует объемы; первый объем сущности остается в силе
func (s *Session) addVolumes(vols []*volume.Volume) {
	for _, v := range vols {
		if _, exists := s.volumes[v.EntityID()]; exists {
			continue
		}
		s.volumes[v.EntityID()] = v
	}
}

// advance продвигает курсор. Регулятор работает только при стриминге и
// воспроизведении и при N > 1.
func (s *Session) advance(dt float64) {
	speed := 1.0
	n := s.timeline.Len()
	if s.state.Streaming() && s.state.Playing() && !s.state.Scrubbing() && n > 1 {
		speed = s.speed.Speed(n, s.state.Cursor(), dt)
	}
	s.state.Advance(dt, speed)
}

// refresh пересчитывает позы и обновляет реестр маркеров
func (s *Session) refresh() {
	pos, poses := timeline.Sample(s.timeline, s.state.Cursor())
	s.position = pos
	diff := s.markers.Update(poses, s.volumes)
	if !diff.Empty() {
		s.emit.Emit(eventbus.TypeMarkersChanged, eventbus.PriorityLow, eventbus.MarkersChanged{
			Shown:  diff.Shown,
			Hidden: diff.Hidden,
		})
	}
}

func (s *Session) setStreaming(on bool, reason string) {
	if s.state.Streaming() == on {
		return
	}
	s.state.SetStreaming(on)
	if !on {
		s.speed.Reset()
	}
	s.log.Info("стриминг: %v (%s)", on, reason)
	s.emit.Emit(eventbus.TypeStreamingChanged, eventbus.PriorityHigh, eventbus.StreamingChanged{
		Streaming: on,
		Reason:    reason,
	})
}

func (s *Session) emitPlayState() {
	s.emit.Emit(eventbus.TypePlayStateChanged, eventbus.PriorityNormal, eventbus.PlayStateChanged{
		Playing: s.state.Playing(),
		Looping: s.state.Looping(),
		Preset:  s.state.Preset().Name,
		Cursor:  s.state.Cursor(),
	})
}

func issueDelta(now, before map[string]int) map[string]int {
	delta := make(map[string]int, len(now))
	for k, v := range now {
		if d := v - before[k]; d > 0 {
			delta[k] = d
		}
	}
	return delta
}
