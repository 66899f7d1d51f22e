// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package curer monitors a curing chamber with an SHT31-class
// temperature/humidity sensor and serves the readings over HTTP.
//
// The sht3x package is the sensor driver, web is the query interface, and
// cmd/curer is the daemon that ties them to a real I²C bus.
package curer
