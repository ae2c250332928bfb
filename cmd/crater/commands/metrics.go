// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crater-avionics/crater/lib/telemetry"
)

// metricsServer serves /metrics for the duration of a run.
type metricsServer struct {
	*http.Server
	addr string
}

// serveMetrics starts a Prometheus endpoint exporting the channel
// statistics of service alongside Go runtime metrics.
func serveMetrics(addr string, service *telemetry.Service, logger *slog.Logger) (*metricsServer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		telemetry.NewCollector(service),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	server := &metricsServer{
		Server: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:   listener.Addr().String(),
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", server.addr)
	return server, nil
}
