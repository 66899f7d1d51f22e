// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains helpers shared across packages. For example, the
// CRC8 calculation used to validate sensor frames.
package common

// CRC8 calculates the 8-bit CRC of the byte slice parameter and returns the
// calculated value. Polynomial 0x31, initial value 0xff, most significant
// bit first, no reflection and no final xor. Sensirion-style sensors append
// one such CRC to every 16-bit word they transmit. The empty input yields
// the initial value 0xff.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc ^= val
		for range 8 {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (byte)((crc << 1) ^ 0x31)
			}
		}
	}
	return crc
}
