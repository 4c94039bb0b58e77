package eventbus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsExporter периодически переносит Stats шины в Prometheus.
// Эндпоинт /metrics обслуживает REST-сервер.
type MetricsExporter struct {
	bus      EventBus
	interval time.Duration

	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge

	prev Stats
}

// NewMetricsExporter создаёт экспортер и регистрирует метрики в reg.
func NewMetricsExporter(bus EventBus, reg prometheus.Registerer) *MetricsExporter {
	me := &MetricsExporter{
		bus:      bus,
		interval: time.Second,
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных сообщений.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных сообщений подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Сообщений, отброшенных из-за ошибок или back-pressure.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений в очереди.",
		}),
	}
	reg.MustRegister(me.published, me.consumed, me.dropped, me.inflight)
	return me
}

// Run обновляет метрики раз в секунду до отмены ctx.
func (m *MetricsExporter) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Collect()
		case <-ctx.Done():
			return
		}
	}
}

// Collect переносит приращения счетчиков с прошлого вызова.
func (m *MetricsExporter) Collect() {
	stats := m.bus.Metrics()

	if stats.Published > m.prev.Published {
		m.published.Add(float64(stats.Published - m.prev.Published))
	}
	if stats.Consumed > m.prev.Consumed {
		m.consumed.Add(float64(stats.Consumed - m.prev.Consumed))
	}
	if stats.Dropped > m.prev.Dropped {
		m.dropped.Add(float64(stats.Dropped - m.prev.Dropped))
	}
	m.inflight.Set(float64(stats.InFlight))

	m.prev = stats
}
