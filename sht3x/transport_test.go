// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht3x

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

// fakeTransport scripts response frames and logs every exchange so tests
// can assert the exact command, wait, read sequence.
type fakeTransport struct {
	log    []string
	frames [][]byte
	err    error
}

func (f *fakeTransport) WriteReg(addr uint16, reg, data byte) error {
	f.log = append(f.log, fmt.Sprintf("w %02x %02x%02x", addr, reg, data))
	return f.err
}

func (f *fakeTransport) ReadBlock(addr uint16, reg byte, buf []byte) error {
	f.log = append(f.log, fmt.Sprintf("r %02x %02x %d", addr, reg, len(buf)))
	if f.err != nil {
		return f.err
	}
	if len(f.frames) == 0 {
		return errors.New("fake transport: no frame scripted")
	}
	copy(buf, f.frames[0])
	f.frames = f.frames[1:]
	return nil
}

var _ Transport = (*fakeTransport)(nil)

// newTimedDev wires a fake transport to a device whose waits land in the
// same log as the bus traffic, making the full sequence assertable.
func newTimedDev(t *testing.T, ft *fakeTransport, opts *Opts) *Dev {
	t.Helper()
	dev, err := newDev(ft, opts, func(d time.Duration) {
		ft.log = append(ft.log, d.String())
	})
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

func checkLog(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, ", ") != strings.Join(want, ", ") {
		t.Fatalf("sequence mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestPowerOnDelay(t *testing.T) {
	ft := &fakeTransport{}
	newTimedDev(t, ft, nil)
	// The settling wait happens without any bus traffic.
	checkLog(t, ft.log, []string{"50ms"})
}

func TestMeasureSequence(t *testing.T) {
	ft := &fakeTransport{frames: [][]byte{{0x62, 0x4d, 0x7c, 0x61, 0x48, 0xa4}}}
	dev := newTimedDev(t, ft, nil)
	ft.log = nil
	if _, err := dev.ReadTemperatureHumidity(); err != nil {
		t.Fatal(err)
	}
	checkLog(t, ft.log, []string{"w 44 2400", "15ms", "r 44 00 6"})
}

func TestMeasureSequenceMediumRep(t *testing.T) {
	ft := &fakeTransport{frames: [][]byte{{0x62, 0x4d, 0x7c, 0x61, 0x48, 0xa4}}}
	dev := newTimedDev(t, ft, &Opts{Repeatability: RepeatabilityMedium})
	ft.log = nil
	if _, err := dev.ReadTemperatureHumidity(); err != nil {
		t.Fatal(err)
	}
	checkLog(t, ft.log, []string{"w 44 240b", "15ms", "r 44 00 6"})
}

func TestResetSequence(t *testing.T) {
	ft := &fakeTransport{}
	dev := newTimedDev(t, ft, nil)
	ft.log = nil
	if err := dev.Reset(); err != nil {
		t.Fatal(err)
	}
	checkLog(t, ft.log, []string{"w 44 30a2", "10ms"})
}

func TestClearStatusNoDelay(t *testing.T) {
	ft := &fakeTransport{}
	dev := newTimedDev(t, ft, nil)
	ft.log = nil
	if err := dev.ClearStatus(); err != nil {
		t.Fatal(err)
	}
	checkLog(t, ft.log, []string{"w 44 3041"})
}

func TestStatusSequence(t *testing.T) {
	ft := &fakeTransport{frames: [][]byte{{0x20, 0x00, 0x5d}}}
	dev := newTimedDev(t, ft, nil)
	ft.log = nil
	s, err := dev.ReadStatus()
	if err != nil {
		t.Fatal(err)
	}
	if s != StatusHeaterActive {
		t.Fatalf("got status 0x%04x want 0x%04x", uint16(s), uint16(StatusHeaterActive))
	}
	// Status answers immediately, no wait between command and read.
	checkLog(t, ft.log, []string{"w 44 f32d", "r 44 00 3"})
}

func TestWriteFailureStopsExchange(t *testing.T) {
	ft := &fakeTransport{err: errors.New("remote I/O error")}
	dev := newTimedDev(t, ft, nil)
	ft.log = nil
	m, err := dev.ReadTemperatureHumidity()
	if !errors.Is(err, ft.err) {
		t.Fatalf("got %v, want wrapped %v", err, ft.err)
	}
	if !math.IsNaN(m.Temperature) || !math.IsNaN(m.Humidity) {
		t.Fatalf("failed read must not return numbers, got %v", m)
	}
	// The failed write aborts the exchange before the wait and the read.
	checkLog(t, ft.log, []string{"w 44 2400"})
}

func TestCustomAddress(t *testing.T) {
	ft := &fakeTransport{}
	dev := newTimedDev(t, ft, &Opts{Addr: 0x45})
	ft.log = nil
	if err := dev.Reset(); err != nil {
		t.Fatal(err)
	}
	checkLog(t, ft.log, []string{"w 45 30a2", "10ms"})
}

func TestNewFromTransport(t *testing.T) {
	ft := &fakeTransport{frames: [][]byte{{0x20, 0x00, 0x5d}}}
	dev, err := NewFromTransport(ft, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := dev.ReadStatus()
	if err != nil {
		t.Fatal(err)
	}
	if s != StatusHeaterActive {
		t.Fatalf("got status 0x%04x want 0x%04x", uint16(s), uint16(StatusHeaterActive))
	}
}
