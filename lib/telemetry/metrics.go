// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	sentDesc = prometheus.NewDesc(
		"crater_telemetry_sent_total",
		"Values sent on the channel.",
		[]string{"channel", "type"}, nil)
	droppedDesc = prometheus.NewDesc(
		"crater_telemetry_dropped_total",
		"Values discarded by bounded receivers that fell behind.",
		[]string{"channel"}, nil)
	sendersDesc = prometheus.NewDesc(
		"crater_telemetry_senders",
		"Open senders on the channel.",
		[]string{"channel"}, nil)
	receiversDesc = prometheus.NewDesc(
		"crater_telemetry_receivers",
		"Live receivers on the channel.",
		[]string{"channel"}, nil)
	closedDesc = prometheus.NewDesc(
		"crater_telemetry_closed",
		"1 if the channel is closed, 0 otherwise.",
		[]string{"channel"}, nil)
)

// Collector exports channel statistics of a Service. Values are read at
// scrape time, so registering a Collector costs nothing on the send
// path.
type Collector struct {
	service *Service
}

// NewCollector returns a prometheus.Collector over s.
func NewCollector(s *Service) *Collector {
	return &Collector{service: s}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sentDesc
	ch <- droppedDesc
	ch <- sendersDesc
	ch <- receiversDesc
	ch <- closedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, info := range c.service.Channels() {
		closed := 0.0
		if info.Closed {
			closed = 1
		}
		ch <- prometheus.MustNewConstMetric(sentDesc, prometheus.CounterValue, float64(info.Sent), info.Name, info.Type)
		ch <- prometheus.MustNewConstMetric(droppedDesc, prometheus.CounterValue, float64(info.Dropped), info.Name)
		ch <- prometheus.MustNewConstMetric(sendersDesc, prometheus.GaugeValue, float64(info.Senders), info.Name)
		ch <- prometheus.MustNewConstMetric(receiversDesc, prometheus.GaugeValue, float64(info.Receivers), info.Name)
		ch <- prometheus.MustNewConstMetric(closedDesc, prometheus.GaugeValue, closed, info.Name)
	}
}
