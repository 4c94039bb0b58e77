// Package engine связывает разбор SCC, таймлайн, стриминг и регулятор
// скорости в одну сессию воспроизведения.
package engine

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/annel0/scc-replay/internal/config"
	"github.com/annel0/scc-replay/internal/eventbus"
	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/metrics"
	"github.com/annel0/scc-replay/internal/pid"
	"github.com/annel0/scc-replay/internal/playback"
	"github.com/annel0/scc-replay/internal/scc"
	"github.com/annel0/scc-replay/internal/stream"
	"github.com/annel0/scc-replay/internal/timeline"
	"github.com/annel0/scc-replay/internal/volume"
	"github.com/google/uuid"
)

// Options параметры движка. Нулевые значения заменяются стандартными.
type Options struct {
	SupportedVersion int
	PollInterval     time.Duration
	TargetBuffer     float64
	MinSpeed         float64
	MaxSpeed         float64
	Gains            pid.Gains
	IntegralLimit    float64
	Presets          []playback.Preset
	PresetIndex      int

	VolumeCache volume.Cache
	Logger      *logging.Logger
	Metrics     *metrics.Engine
	Bus         eventbus.EventBus
	// Now источник времени для опроса файла; nil означает time.Now
	Now func() time.Time
}

// OptionsFromConfig переносит секции engine и pid конфигурации
func OptionsFromConfig(cfg *config.Config) Options {
	kp, ki, kd := cfg.PID.Gains()
	minSpeed, maxSpeed := cfg.Engine.GetSpeedBounds()
	return Options{
		SupportedVersion: cfg.Engine.GetSupportedVersion(),
		PollInterval:     cfg.Engine.GetPollInterval(),
		TargetBuffer:     cfg.Engine.GetTargetBufferFrames(),
		MinSpeed:         minSpeed,
		MaxSpeed:         maxSpeed,
		Gains:            pid.Gains{Kp: kp, Ki: ki, Kd: kd},
		IntegralLimit:    cfg.PID.GetIntegralLimit(),
		Presets:          playback.Presets(cfg.Engine.GetSpeedPresets()),
		PresetIndex:      cfg.Engine.GetDefaultPreset(),
	}
}

func (o Options) withDefaults() Options {
	if o.SupportedVersion == 0 {
		o.SupportedVersion = config.DefaultSupportedVersion
	}
	if o.PollInterval <= 0 {
		o.PollInterval = stream.DefaultPollInterval
	}
	if o.Gains == (pid.Gains{}) {
		o.Gains = pid.Gains{Kp: config.DefaultKp, Ki: config.DefaultKi, Kd: config.DefaultKd}
	}
	if o.IntegralLimit <= 0 {
		o.IntegralLimit = config.DefaultIntegralLimit
	}
	if o.TargetBuffer <= 0 {
		o.TargetBuffer = config.DefaultTargetBufferFrames
	}
	if o.MinSpeed <= 0 {
		o.MinSpeed = config.DefaultMinSpeed
	}
	if o.MaxSpeed <= 0 || o.MaxSpeed < o.MinSpeed {
		o.MaxSpeed = config.DefaultMaxSpeed
	}
	if len(o.Presets) == 0 {
		o.Presets = playback.DefaultPresets
		if o.PresetIndex == 0 {
			o.PresetIndex = playback.DefaultPresetIndex
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine создает сессии воспроизведения с общими настройками
type Engine struct {
	opts Options
}

// New создает движок
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Options действующие настройки
func (e *Engine) Options() Options { return e.opts }

// Load читает и разбирает все полные строки файла. Незаконченная последняя
// строка уходит в буфер опроса и дочитывается вместе с ростом файла.
// При несовпадении версии или схемы сессия не создается, сводка содержит
// 0 кадров. Файл с заголовком и без кадров допустим: живая запись могла
// только начаться.
func (e *Engine) Load(path string) (*Session, scc.Summary, error) {
	log := e.opts.Logger

	data, err := os.ReadFile(path)
	if err != nil {
		e.opts.Metrics.ObserveLoad(false, 0, 0, nil)
		return nil, scc.Summary{Version: e.opts.SupportedVersion}, fmt.Errorf("чтение %s: %w", path, err)
	}

	parser := scc.NewParser(scc.Options{
		SupportedVersion: e.opts.SupportedVersion,
		Decoder:          &volume.Decoder{Cache: e.opts.VolumeCache, Logger: log},
		Logger:           log,
	})
	complete, carry := splitComplete(data)
	batch, err := parser.ParseFull(string(complete))
	summary := parser.Summary()
	if err != nil {
		log.Error("файл %s отклонен: %v", path, err)
		e.opts.Metrics.ObserveLoad(false, 0, 0, nil)
		return nil, summary, fmt.Errorf("загрузка %s: %w", path, err)
	}

	s := newSession(e.opts, path, parser, batch, int64(len(data)), carry)
	e.opts.Metrics.ObserveLoad(true, s.timeline.Len(), len(s.volumes), summary.Issues)
	s.issues = summary.Issues
	s.emit.Emit(eventbus.TypeFileLoaded, eventbus.PriorityHigh, eventbus.FileLoaded{
		Path:    path,
		Frames:  s.timeline.Len(),
		Volumes: len(s.volumes),
		Issues:  summary.Issues,
	})
	s.refresh()

	log.Info("📼 Загружен %s: %d кадров, %d объемов, проблемных строк: %d (сессия %s)",
		path, s.timeline.Len(), len(s.volumes), summary.IssueCount(), s.id)
	return s, summary, nil
}

// splitComplete отделяет незаконченную последнюю строку. Версия и
// заголовок всегда разбираются, даже если после заголовка нет '\n'.
func splitComplete(data []byte) (complete, carry []byte) {
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 || bytes.Count(data[:last+1], []byte{'\n'}) < 2 {
		return data, nil
	}
	return data[:last+1], data[last+1:]
}

func newSession(opts Options, path string, parser *scc.Parser, batch scc.Batch, offset int64, carry []byte) *Session {
	id := uuid.NewString()
	s := &Session{
		id:       id,
		path:     path,
		opts:     opts,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		parser:   parser,
		timeline: timeline.New(batch.Frames...),
		volumes:  make(map[string]*volume.Volume),
		tailer: stream.NewTailer(path, stream.Options{
			Offset:       offset,
			Carry:        carry,
			PollInterval: opts.PollInterval,
			Now:          opts.Now,
			Logger:       opts.Logger,
		}),
		state: playback.NewState(opts.Presets, opts.PresetIndex),
		speed: pid.NewSpeedController(
			pid.New(opts.Gains, opts.IntegralLimit),
			opts.TargetBuffer, opts.MinSpeed, opts.MaxSpeed,
		),
		markers: NewRegistry(),
		emit: &eventbus.Emitter{
			Bus:           opts.Bus,
			Source:        "engine",
			CorrelationID: id,
			Logger:        opts.Logger,
		},
	}
	s.addVolumes(batch.Volumes)
	s.state.Reset(s.timeline.Len())
	return s
}
