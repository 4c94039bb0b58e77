// Package app хост воспроизведения: держит одну сессию движка, крутит
// цикл тиков и сериализует внешние вызовы с тиком через один мьютекс.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/annel0/scc-replay/internal/engine"
	"github.com/annel0/scc-replay/internal/logging"
	"github.com/annel0/scc-replay/internal/observability"
	"github.com/annel0/scc-replay/internal/scc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoSession файл еще не загружен
var ErrNoSession = errors.New("сессия не загружена")

// DefaultTickInterval период тика при нулевом значении в Options
const DefaultTickInterval = time.Second / 60

// Options параметры хоста
type Options struct {
	TickInterval time.Duration
	Logger       *logging.Logger
	// Now источник времени для dt между тиками; nil означает time.Now
	Now func() time.Time
}

// Viewer владеет текущей сессией. Загрузка нового файла заменяет сессию
// целиком.
type Viewer struct {
	engine *engine.Engine
	opts   Options
	log    *logging.Logger

	mu       sync.Mutex
	session  *engine.Session
	lastTick time.Time
	ticks    uint64
}

// NewViewer создает хост поверх движка
func NewViewer(e *engine.Engine, opts Options) *Viewer {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Viewer{engine: e, opts: opts, log: opts.Logger}
}

// Load загружает файл. При ошибке текущая сессия сохраняется.
func (v *Viewer) Load(ctx context.Context, path string) (scc.Summary, error) {
	_, span := observability.Tracer().Start(ctx, "viewer.Load")
	defer span.End()
	span.SetAttributes(attribute.String("scc.path", path))

	s, summary, err := v.engine.Load(path)
	span.SetAttributes(
		attribute.Int("scc.frames", summary.Frames),
		attribute.Int("scc.volumes", summary.Volumes),
		attribute.Int("scc.issues", summary.IssueCount()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}

	v.mu.Lock()
	v.session = s
	v.lastTick = v.opts.Now()
	v.mu.Unlock()
	return summary, nil
}

// Summary сводка текущей сессии с учетом дописанных строк
func (v *Viewer) Summary() (scc.Summary, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return scc.Summary{}, ErrNoSession
	}
	return v.session.Summary(), nil
}

// Do выполняет fn над текущей сессией под мьютексом хоста
func (v *Viewer) Do(fn func(s *engine.Session) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return ErrNoSession
	}
	return fn(v.session)
}

// Step один тик с явным dt в секундах
func (v *Viewer) Step(dt float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.step(dt)
}

func (v *Viewer) step(dt float64) {
	if v.session == nil {
		return
	}
	v.session.Tick(dt)
	v.ticks++
}

// Ticks число выполненных тиков
func (v *Viewer) Ticks() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ticks
}

// Run крутит цикл тиков до отмены контекста
func (v *Viewer) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.opts.TickInterval)
	defer ticker.Stop()

	v.mu.Lock()
	v.lastTick = v.opts.Now()
	v.mu.Unlock()

	v.log.Info("▶ цикл тиков запущен (период %s)", v.opts.TickInterval)
	for {
		select {
		case <-ctx.Done():
			v.log.Info("⏹ цикл тиков остановлен")
			return ctx.Err()
		case <-ticker.C:
			v.mu.Lock()
			now := v.opts.Now()
			dt := now.Sub(v.lastTick).Seconds()
			v.lastTick = now
			v.step(dt)
			v.mu.Unlock()
		}
	}
}
