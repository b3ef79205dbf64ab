package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds the server's Prometheus collectors. Exposition is
// optional: Serve is a no-op when no listen address is configured.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ActiveConnections prometheus.Gauge
	CommandsProcessed prometheus.Counter
	ExpiredKeys       prometheus.Counter
	MessagesPublished prometheus.Counter
	KeyspaceSize      prometheus.Gauge
	MemoryUsage       prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "minired_connections_total",
			Help: "Total accepted client connections.",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "minired_active_connections",
			Help: "Currently open client connections.",
		}),
		CommandsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "minired_commands_processed_total",
			Help: "Total dispatched commands.",
		}),
		ExpiredKeys: factory.NewCounter(prometheus.CounterOpts{
			Name: "minired_expired_keys_total",
			Help: "Keys removed by sampled expiration.",
		}),
		MessagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "minired_messages_published_total",
			Help: "Messages published to channels.",
		}),
		KeyspaceSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "minired_keyspace_size",
			Help: "Number of stored keys.",
		}),
		MemoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "minired_memory_usage_bytes",
			Help: "Tracked keyspace memory usage.",
		}),
	}
}

// Serve exposes /metrics on addr. Returns immediately; the listener runs
// on its own goroutine.
func (m *Metrics) Serve(addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listener started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics listener failed")
		}
	}()
}
