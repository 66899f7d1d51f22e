// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// This package provides a driver for the Sensirion SHT30/31/35 family of
// I2C temperature/humidity sensors.
//
// The sensor speaks 16-bit commands over an 8-bit register bus and appends
// a CRC to every 16-bit word it transmits. The two words of a combined
// measurement are validated independently: a word that fails its check
// decodes to NaN while the other field stays usable, and the device remains
// available for subsequent reads.
//
// # Datasheet
//
// https://sensirion.com/media/documents/213E6A3B/63A5A569/Datasheet_SHT3x_DIS.pdf
package sht3x
