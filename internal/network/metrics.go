package network

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus-метрики транспортного слоя.
var (
	// PacketsTotal счётчик пакетов по направлению (in/out).
	PacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsync_packets_total",
		Help: "Число пакетов репликации по направлению",
	}, []string{"direction"})

	// BytesTotal счётчик байт по направлению (in/out).
	BytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsync_bytes_total",
		Help: "Объём трафика репликации в байтах по направлению",
	}, []string{"direction"})

	// PacketsDropped пакеты, отброшенные из-за переполнения очередей
	// или повреждения.
	PacketsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsync_packets_dropped_total",
		Help: "Число отброшенных пакетов",
	})

	// PacketsCompressed пакеты, ушедшие со сжатием zstd.
	PacketsCompressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsync_packets_compressed_total",
		Help: "Число пакетов, отправленных со сжатием",
	})

	// ActiveConnections текущее число открытых каналов.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netsync_active_connections",
		Help: "Число активных транспортных каналов",
	})
)

// ServeMetrics поднимает HTTP-эндпоинт /metrics на указанном порту.
// Блокирует вызвавшую горутину.
func ServeMetrics(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
