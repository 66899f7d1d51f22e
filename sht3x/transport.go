// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht3x

import (
	"periph.io/x/conn/v3/i2c"
)

// Transport is the register level access the driver needs. The sensor's
// 16-bit commands travel as the high byte in the register slot and the low
// byte as a single data byte, and every response frame is a block read
// issued at register 0.
//
// Dev serializes its own calls, so implementations only see one operation
// at a time.
type Transport interface {
	// WriteReg writes one data byte to a register of the device at addr.
	WriteReg(addr uint16, reg, data byte) error
	// ReadBlock fills buf with a block read starting at reg from the device
	// at addr.
	ReadBlock(addr uint16, reg byte, buf []byte) error
}

// i2cTransport adapts an i2c.Bus to the SMBus style register operations the
// sensor protocol is phrased in.
type i2cTransport struct {
	bus i2c.Bus
}

func (t *i2cTransport) WriteReg(addr uint16, reg, data byte) error {
	return t.bus.Tx(addr, []byte{reg, data}, nil)
}

func (t *i2cTransport) ReadBlock(addr uint16, reg byte, buf []byte) error {
	return t.bus.Tx(addr, []byte{reg}, buf)
}

var _ Transport = &i2cTransport{}
