// Package metrics exposes game activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"snake-game/game/types"
	"snake-game/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snake"

// Collector groups the counters a session updates as it plays.
type Collector struct {
	ticks        prometheus.Counter
	games        *prometheus.CounterVec
	foodEaten    prometheus.Counter
	length       prometheus.Gauge
	tickDuration prometheus.Histogram
}

// NewCollector creates the metrics and registers them on reg. A nil reg
// means the default Prometheus registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ticks applied to running games.",
		}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_total",
			Help:      "Finished games by outcome.",
		}, []string{"outcome", "reason"}),
		foodEaten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "food_eaten_total",
			Help:      "Food items eaten across all games.",
		}),
		length: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "length",
			Help:      "Length of the snake in the current game.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent applying a single tick.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 8),
		}),
	}
	reg.MustRegister(c.ticks, c.games, c.foodEaten, c.length, c.tickDuration)
	return c
}

// ObserveTick records one applied tick. ate reports whether food was eaten.
func (c *Collector) ObserveTick(took time.Duration, length int, ate bool) {
	if c == nil {
		return
	}
	c.ticks.Inc()
	c.tickDuration.Observe(took.Seconds())
	c.length.Set(float64(length))
	if ate {
		c.foodEaten.Inc()
	}
}

// ObserveEnd records a finished game.
func (c *Collector) ObserveEnd(outcome types.Outcome, reason types.EndReason) {
	if c == nil {
		return
	}
	c.games.WithLabelValues(outcome.String(), reason.String()).Inc()
}

// ObserveReset records the length of a freshly started game.
func (c *Collector) ObserveReset(length int) {
	if c == nil {
		return
	}
	c.length.Set(float64(length))
}

// Serve exposes gatherer on addr under /metrics. It blocks like
// http.ListenAndServe; run it in its own goroutine.
func Serve(addr string, gatherer prometheus.Gatherer, log *logging.Logger) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	log.Info("Prometheus /metrics available at %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
