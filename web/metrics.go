// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package web

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"curer/sht3x"
)

type metrics struct {
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	reads       *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curer_temperature_celsius",
			Help: "Last temperature reading that passed its CRC check.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "curer_relative_humidity_percent",
			Help: "Last relative humidity reading that passed its CRC check.",
		}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curer_sensor_reads_total",
			Help: "Sensor reads by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.temperature, m.humidity, m.reads)
	return m
}

// observe records one read. A transport failure leaves the gauges alone; a
// read with a NaN field counts as a CRC error but still updates the gauge
// of the surviving field.
func (m *metrics) observe(meas sht3x.Measurement, err error) {
	if err != nil {
		m.reads.WithLabelValues("transport_error").Inc()
		return
	}
	if math.IsNaN(meas.Temperature) || math.IsNaN(meas.Humidity) {
		m.reads.WithLabelValues("crc_error").Inc()
	} else {
		m.reads.WithLabelValues("ok").Inc()
	}
	if !math.IsNaN(meas.Temperature) {
		m.temperature.Set(meas.Temperature)
	}
	if !math.IsNaN(meas.Humidity) {
		m.humidity.Set(meas.Humidity)
	}
}
