package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NestorMetrics bundles all instruments of one nestor process.
type NestorMetrics struct {
	Commands     metrics.Counter
	Sessions     metrics.Gauge
	Logins       metrics.Counter
	FailedLogins metrics.Counter
	Logouts      metrics.Counter
}

// NewNestorMetrics registers Prometheus backed instruments
// if metrics are exposed on addr, discarding ones otherwise.
func NewNestorMetrics(addr string) *NestorMetrics {

	if addr == "" {
		return &NestorMetrics{
			Commands:     discard.NewCounter(),
			Sessions:     discard.NewGauge(),
			Logins:       discard.NewCounter(),
			FailedLogins: discard.NewCounter(),
			Logouts:      discard.NewCounter(),
		}
	}

	return &NestorMetrics{
		Commands: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "nestor",
			Subsystem: "imap",
			Name:      "commands_total",
			Help:      "Number of executed IMAP commands",
		}, []string{"command"}),
		Sessions: prometheus.NewGaugeFrom(prom.GaugeOpts{
			Namespace: "nestor",
			Subsystem: "imap",
			Name:      "sessions",
			Help:      "Number of connected sessions",
		}, nil),
		Logins: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "nestor",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Number of logins",
		}, nil),
		FailedLogins: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "nestor",
			Subsystem: "auth",
			Name:      "failed_logins_total",
			Help:      "Number of rejected logins",
		}, nil),
		Logouts: prometheus.NewCounterFrom(prom.CounterOpts{
			Namespace: "nestor",
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Number of logouts",
		}, nil),
	}
}

func runPromHTTP(ctx context.Context, logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
