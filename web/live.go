// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package web

import (
	"net/http"
	"time"
)

// handleLive upgrades the connection to a websocket and pushes a combined
// reading immediately and then every interval, until the client goes away.
// Failed reads are skipped; the next tick tries again.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		lg.Debugf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()
	lg.Debugf("live stream to %s every %s", conn.RemoteAddr(), s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		m, ts, err := s.read()
		if err != nil {
			lg.Errorf("sensor read: %v", err)
		} else {
			msg := combinedReading{
				Name:        s.name,
				Temperature: optional(m.Temperature),
				Humidity:    optional(m.Humidity),
				Timestamp:   ts.Format(time.RFC3339),
			}
			if err := conn.WriteJSON(msg); err != nil {
				lg.Debugf("live stream to %s closed: %v", conn.RemoteAddr(), err)
				return
			}
		}
		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
