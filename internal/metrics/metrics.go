// Package metrics exposes session counters for prometheus.
package metrics

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ivr/internal/dialogue"
)

// Collector implements dialogue.Observer.
type Collector struct {
	registry *prometheus.Registry

	turns    *prometheus.CounterVec
	options  *prometheus.CounterVec
	sessions *prometheus.CounterVec
	errors   prometheus.Counter
	listen   prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivr_turns_total",
			Help: "Listen turns by resulting dialogue state",
		}, []string{"state"}),
		options: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivr_option_selections_total",
			Help: "Menu options selected by callers",
		}, []string{"option"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivr_sessions_total",
			Help: "Finished sessions by end reason",
		}, []string{"reason"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ivr_recognition_errors_total",
			Help: "Turns whose listen returned an error, including no speech",
		}),
		listen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ivr_listen_seconds",
			Help:    "Time spent in one listen",
			Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30},
		}),
	}

	c.registry.MustRegister(c.turns, c.options, c.sessions, c.errors, c.listen)
	return c
}

func (c *Collector) Observe(ev dialogue.Event) {
	switch ev.Kind {
	case dialogue.EventTurn:
		c.turns.WithLabelValues(ev.State).Inc()
		if ev.OptionID != "" {
			c.options.WithLabelValues(ev.OptionID).Inc()
		}
		if ev.Error != "" {
			c.errors.Inc()
		}
		if ev.Listen > 0 {
			c.listen.Observe(ev.Listen.Seconds())
		}
	case dialogue.EventEnd:
		c.sessions.WithLabelValues(string(ev.Reason)).Inc()
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ dialogue.Observer = (*Collector)(nil)
