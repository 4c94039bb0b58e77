// Package metrics Prometheus-метрики движка воспроизведения.
// Все методы безопасны для nil-получателя.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scc"

// Engine набор метрик одной сессии воспроизведения
type Engine struct {
	Loads       *prometheus.CounterVec
	Frames      prometheus.Gauge
	Volumes     prometheus.Gauge
	RowIssues   *prometheus.CounterVec
	FramesAdded prometheus.Counter
	BytesPolled prometheus.Counter
	PollErrors  prometheus.Counter
	Streaming   prometheus.Gauge
	Playing     prometheus.Gauge
	Cursor      prometheus.Gauge
	Speed       prometheus.Gauge
	Buffered    prometheus.Gauge
	TickSeconds prometheus.Histogram
}

// NewEngine создает метрики и регистрирует их в reg
func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Загрузки файлов записи по результату.",
		}, []string{"result"}),
		Frames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames",
			Help:      "Кадров в таймлайне.",
		}),
		Volumes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volumes",
			Help:      "Декодированных объемов.",
		}),
		RowIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_issues_total",
			Help:      "Проблемные строки по категориям.",
		}, []string{"category"}),
		FramesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_appended_total",
			Help:      "Кадров, добавленных при стриминге.",
		}),
		BytesPolled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "bytes_read_total",
			Help:      "Байт, прочитанных из растущего файла.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "poll_errors_total",
			Help:      "Ошибки ввода при опросе файла.",
		}),
		Streaming: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streaming",
			Help:      "1, если включен режим стриминга.",
		}),
		Playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playing",
			Help:      "1, если идет воспроизведение.",
		}),
		Cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor",
			Help:      "Позиция курсора в [0,1].",
		}),
		Speed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pid",
			Name:      "speed_multiplier",
			Help:      "Множитель скорости регулятора.",
		}),
		Buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pid",
			Name:      "buffered_frames",
			Help:      "Запас кадров впереди курсора.",
		}),
		TickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика движка.",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05},
		}),
	}

	reg.MustRegister(
		m.Loads, m.Frames, m.Volumes, m.RowIssues, m.FramesAdded, m.BytesPolled,
		m.PollErrors, m.Streaming, m.Playing, m.Cursor, m.Speed, m.Buffered, m.TickSeconds,
	)
	return m
}

// ObserveLoad результат загрузки и проблемные строки
func (m *Engine) ObserveLoad(ok bool, frames, volumes int, issues map[string]int) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.Loads.WithLabelValues(result).Inc()
	m.Frames.Set(float64(frames))
	m.Volumes.Set(float64(volumes))
	m.AddIssues(issues)
}

// AddIssues прибавляет приращения проблем по категориям
func (m *Engine) AddIssues(issues map[string]int) {
	if m == nil {
		return
	}
	for category, n := range issues {
		if n > 0 {
			m.RowIssues.WithLabelValues(category).Add(float64(n))
		}
	}
}

// ObserveAppend новые кадры и объемы растущего файла
func (m *Engine) ObserveAppend(added, frames, volumes int) {
	if m == nil {
		return
	}
	m.FramesAdded.Add(float64(added))
	m.Frames.Set(float64(frames))
	m.Volumes.Set(float64(volumes))
}

// ObserveBytes прочитанные байты
func (m *Engine) ObserveBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesPolled.Add(float64(n))
}

// ObservePollError ошибка ввода
func (m *Engine) ObservePollError() {
	if m == nil {
		return
	}
	m.PollErrors.Inc()
}

// ObserveState состояние проигрывателя после тика
func (m *Engine) ObserveState(cursor float64, playing, streaming bool, speed, buffered float64) {
	if m == nil {
		return
	}
	m.Cursor.Set(cursor)
	m.Playing.Set(boolGauge(playing))
	m.Streaming.Set(boolGauge(streaming))
	m.Speed.Set(speed)
	m.Buffered.Set(buffered)
}

// ObserveTick длительность тика в секундах
func (m *Engine) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.TickSeconds.Observe(seconds)
}

// RegisterCacheStats экспортирует счетчики кеша объемов через функции
func RegisterCacheStats(reg prometheus.Registerer, hits, misses func() float64) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "volume_cache",
			Name:      "hits_total",
			Help:      "Попадания в кеш объемов.",
		}, hits),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "volume_cache",
			Name:      "misses_total",
			Help:      "Промахи кеша объемов.",
		}, misses),
	)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
