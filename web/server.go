// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package web serves sensor readings over HTTP: JSON snapshots under
// /api/v1/, a websocket push stream on /api/v1/live and Prometheus metrics
// on /metrics.
package web

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	logger "github.com/d2r2/go-logger"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"curer/sht3x"
)

var lg = logger.NewPackageLogger("web", logger.InfoLevel)

// DefaultLiveInterval is the push period of the live stream when Opts does
// not set one.
const DefaultLiveInterval = 5 * time.Second

// Sensor is the measurement source the server exposes. *sht3x.Dev
// implements it; anything else with the same read semantics, NaN fields on
// corrupt words and an error on transport failure, works too.
type Sensor interface {
	ReadTemperatureHumidity() (sht3x.Measurement, error)
}

// Opts configures a Server.
type Opts struct {
	// Name identifies the sensor in every response payload.
	Name string
	// LiveInterval is the push period of the /api/v1/live stream.
	LiveInterval time.Duration
}

// Server routes sensor queries. It owns its Prometheus registry, so several
// servers can coexist in one process. Server implements http.Handler.
type Server struct {
	sensor   Sensor
	name     string
	interval time.Duration
	mux      *http.ServeMux
	metrics  *metrics
	upgrader websocket.Upgrader
}

// NewServer returns a Server reading from sensor. Pass nil opts for
// defaults.
func NewServer(sensor Sensor, opts *Opts) *Server {
	if opts == nil {
		opts = &Opts{}
	}
	name := opts.Name
	if name == "" {
		name = "Sensor"
	}
	interval := opts.LiveInterval
	if interval <= 0 {
		interval = DefaultLiveInterval
	}
	s := &Server{
		sensor:   sensor,
		name:     name,
		interval: interval,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	reg := prometheus.NewRegistry()
	s.metrics = newMetrics(reg)
	s.mux.HandleFunc("/api/v1/temperature", s.handleTemperature)
	s.mux.HandleFunc("/api/v1/humidity", s.handleHumidity)
	s.mux.HandleFunc("/api/v1/temperature+humidity", s.handleTemperatureHumidity)
	s.mux.HandleFunc("/api/v1/live", s.handleLive)
	s.mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Response payloads. A nil field encodes as null: the word failed its CRC
// check and the value is untrusted. Timestamps are RFC 3339, captured when
// the sensor answered.
type temperatureReading struct {
	Name        string   `json:"name"`
	Temperature *float64 `json:"temperature"`
	Timestamp   string   `json:"timestamp"`
}

type humidityReading struct {
	Name      string   `json:"name"`
	Humidity  *float64 `json:"humidity"`
	Timestamp string   `json:"timestamp"`
}

type combinedReading struct {
	Name        string   `json:"name"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Timestamp   string   `json:"timestamp"`
}

// optional maps the driver's NaN sentinel to a JSON null. encoding/json
// refuses to marshal NaN directly.
func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// read queries the sensor once, stamping the result with the wall clock
// time of the call.
func (s *Server) read() (sht3x.Measurement, time.Time, error) {
	m, err := s.sensor.ReadTemperatureHumidity()
	s.metrics.observe(m, err)
	return m, time.Now(), err
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "use GET", http.StatusMethodNotAllowed)
		return
	}
	m, ts, err := s.read()
	if err != nil {
		lg.Errorf("sensor read: %v", err)
		http.Error(w, "sensor read failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, temperatureReading{
		Name:        s.name,
		Temperature: optional(m.Temperature),
		Timestamp:   ts.Format(time.RFC3339),
	})
}

func (s *Server) handleHumidity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "use GET", http.StatusMethodNotAllowed)
		return
	}
	m, ts, err := s.read()
	if err != nil {
		lg.Errorf("sensor read: %v", err)
		http.Error(w, "sensor read failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, humidityReading{
		Name:      s.name,
		Humidity:  optional(m.Humidity),
		Timestamp: ts.Format(time.RFC3339),
	})
}

func (s *Server) handleTemperatureHumidity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "use GET", http.StatusMethodNotAllowed)
		return
	}
	m, ts, err := s.read()
	if err != nil {
		lg.Errorf("sensor read: %v", err)
		http.Error(w, "sensor read failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, combinedReading{
		Name:        s.name,
		Temperature: optional(m.Temperature),
		Humidity:    optional(m.Humidity),
		Timestamp:   ts.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lg.Errorf("encoding response: %v", err)
	}
}
