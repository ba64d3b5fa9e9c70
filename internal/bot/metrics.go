package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics счётчики Prometheus по стороне бота. Доменные метрики
// (создания, уведомления) живут в internal/metrics, здесь только
// транспорт: сообщения, команды, колбэки.
type Metrics struct {
	MessagesProcessed    prometheus.Counter
	CommandsProcessed    *prometheus.CounterVec
	CallbacksProcessed   prometheus.Counter
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	ExportsGenerated     prometheus.Counter
	LookupRequests       prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_messages_total",
			Help: "Total number of messages processed",
		}),

		CommandsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_commands_total",
			Help: "Total number of bot commands processed",
		}, []string{"command"}),

		CallbacksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_callbacks_total",
			Help: "Total number of callback queries processed",
		}),

		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_errors_total",
			Help: "Total number of errors while handling updates",
		}),

		UpdateProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		ExportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_exports_total",
			Help: "Total number of inventory exports generated",
		}),

		LookupRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_lookups_total",
			Help: "Total number of food catalog lookups",
		}),
	}
}
