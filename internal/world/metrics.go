package world

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics метрики стриминга чанков
type Metrics struct {
	chunks     *prometheus.GaugeVec
	inflight   prometheus.Gauge
	queueDepth prometheus.Gauge
	generated  prometheus.Counter
	stale      prometheus.Counter
	malformed  prometheus.Counter
	evicted    prometheus.Counter
	duration   prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg. reg == nil - без регистрации.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "chunks",
			Help:      "Отслеживаемые чанки по состоянию.",
		}, []string{"state"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "jobs_inflight",
			Help:      "Занятые слоты пула генерации.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "queue_depth",
			Help:      "Задания в очереди FIFO.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "chunks_generated_total",
			Help:      "Установленные результаты генерации.",
		}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "results_stale_total",
			Help:      "Результаты для выгруженных или перезапрошенных чанков.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "results_malformed_total",
			Help:      "Результаты, не прошедшие проверку буферов.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "chunks_evicted_total",
			Help:      "Чанки, вышедшие из радиуса видимости.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "procworld",
			Subsystem: "streaming",
			Name:      "generation_seconds",
			Help:      "Время генерации одного чанка в воркере.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.chunks, m.inflight, m.queueDepth, m.generated, m.stale, m.malformed, m.evicted, m.duration)
	}
	return m
}

func (m *Metrics) observeStates(s Stats) {
	m.chunks.WithLabelValues(Queued.String()).Set(float64(s.Queued))
	m.chunks.WithLabelValues(Generating.String()).Set(float64(s.Generating))
	m.chunks.WithLabelValues(Ready.String()).Set(float64(s.Ready))
	m.chunks.WithLabelValues(Unloaded.String()).Set(float64(s.Unloaded))
	m.inflight.Set(float64(s.InFlight))
	m.queueDepth.Set(float64(s.QueueDepth))
}
