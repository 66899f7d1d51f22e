// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sht3x

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"curer/common"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the sensor's address with the ADDR pin pulled low. Tie
// the pin high for 0x45.
const DefaultAddress uint16 = 0x44

// Waits mandated by the datasheet. The sensor NAKs or returns stale bytes
// when read early, without any error from the bus itself.
const (
	powerOnDelay   = 50 * time.Millisecond
	measureDelay   = 15 * time.Millisecond
	softResetDelay = 10 * time.Millisecond
)

// Repeatability selects the measurement precision. Higher repeatability
// lowers noise at the cost of conversion time and power.
type Repeatability int

const (
	// RepeatabilityHigh is the power-on default.
	RepeatabilityHigh Repeatability = iota
	RepeatabilityMedium
	RepeatabilityLow
)

func (r Repeatability) String() string {
	switch r {
	case RepeatabilityHigh:
		return "high"
	case RepeatabilityMedium:
		return "medium"
	case RepeatabilityLow:
		return "low"
	default:
		return "<unknown>"
	}
}

// command is a 16-bit sensor opcode and the length of the frame the sensor
// answers with, 0 for fire-and-forget commands.
type command struct {
	opcode      uint16
	responseLen int
}

var (
	cmdMeasureHighRep        = command{opcode: 0x2400, responseLen: 6}
	cmdMeasureMedRep         = command{opcode: 0x240b, responseLen: 6}
	cmdMeasureLowRep         = command{opcode: 0x2416, responseLen: 6}
	cmdMeasureHighRepStretch = command{opcode: 0x2c06, responseLen: 6}
	cmdMeasureMedRepStretch  = command{opcode: 0x2c0d, responseLen: 6}
	cmdMeasureLowRepStretch  = command{opcode: 0x2c10, responseLen: 6}
	cmdReadStatus            = command{opcode: 0xf32d, responseLen: 3}
	cmdClearStatus           = command{opcode: 0x3041}
	cmdSoftReset             = command{opcode: 0x30a2}
	cmdHeaterOn              = command{opcode: 0x306d}
	cmdHeaterOff             = command{opcode: 0x3066}
)

// StatusWord is the sensor's 16-bit status register.
type StatusWord uint16

const (
	StatusDataCRCError     StatusWord = 0x0001
	StatusCommandError     StatusWord = 0x0002
	StatusResetDetected    StatusWord = 0x0010
	StatusTemperatureAlert StatusWord = 0x0400
	StatusHumidityAlert    StatusWord = 0x0800
	StatusHeaterActive     StatusWord = 0x2000
	StatusAlertPending     StatusWord = 0x8000
)

var statusNames = []struct {
	bit  StatusWord
	name string
}{
	{StatusAlertPending, "ALERT_PENDING"},
	{StatusHeaterActive, "HEATER_ACTIVE"},
	{StatusHumidityAlert, "HUMIDITY_ALERT"},
	{StatusTemperatureAlert, "TEMPERATURE_ALERT"},
	{StatusResetDetected, "RESET_DETECTED"},
	{StatusCommandError, "COMMAND_ERROR"},
	{StatusDataCRCError, "DATA_CRC_ERROR"},
}

func (s StatusWord) String() string {
	var b strings.Builder
	for _, f := range statusNames {
		if s&f.bit == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(f.name)
	}
	if b.Len() == 0 {
		return "OK"
	}
	return b.String()
}

var errInvalidCRC = errors.New("sht3x: invalid crc")

// Conversion constants from the datasheet. The raw 16-bit count spans the
// full output range, so full scale decodes exactly.
const (
	temperatureOffset = -45.0
	temperatureScalar = 175.0
	humidityScalar    = 100.0
	scaleDivisor      = 65535.0
)

// Measurement is one decoded combined reading. A field is NaN when its word
// failed the CRC check; the two words are validated independently, so one
// corrupt word never poisons the other field.
type Measurement struct {
	// Temperature in degrees Celsius.
	Temperature float64
	// Humidity in percent relative humidity.
	Humidity float64
}

func (m Measurement) String() string {
	return fmt.Sprintf("%.2f°C %.2f%%rH", m.Temperature, m.Humidity)
}

// decodeMeasurement converts a raw 6-byte frame to engineering units. Each
// word travels with its own CRC and is checked on its own.
func decodeMeasurement(frame []byte) Measurement {
	m := Measurement{Temperature: math.NaN(), Humidity: math.NaN()}
	if common.CRC8(frame[0:2]) == frame[2] {
		count := uint16(frame[0])<<8 | uint16(frame[1])
		m.Temperature = temperatureScalar*float64(count)/scaleDivisor + temperatureOffset
	}
	if common.CRC8(frame[3:5]) == frame[5] {
		count := uint16(frame[3])<<8 | uint16(frame[4])
		m.Humidity = humidityScalar * float64(count) / scaleDivisor
	}
	return m
}

// countToTemperature converts a raw sensor count to a physic.Temperature.
func countToTemperature(bytes []byte) physic.Temperature {
	count := uint16(bytes[0])<<8 | uint16(bytes[1])
	f := temperatureScalar*float64(count)/scaleDivisor + temperatureOffset
	return physic.ZeroCelsius + physic.Temperature(f*float64(physic.Celsius))
}

// countToHumidity converts a raw sensor count to a physic.RelativeHumidity.
func countToHumidity(bytes []byte) physic.RelativeHumidity {
	count := uint16(bytes[0])<<8 | uint16(bytes[1])
	f := humidityScalar * float64(count) / scaleDivisor
	return physic.RelativeHumidity(f * float64(physic.PercentRH))
}

// Opts holds the configuration for the device.
type Opts struct {
	// Addr is the sensor's bus address. Defaults to DefaultAddress.
	Addr uint16
	// Repeatability selects the measurement precision.
	Repeatability Repeatability
	// ClockStretch selects the clock stretching command variants, letting
	// the sensor hold SCL until a conversion finishes.
	ClockStretch bool
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr:          DefaultAddress,
	Repeatability: RepeatabilityHigh,
}

// measureCommand maps the configured precision to its measurement opcode.
func measureCommand(r Repeatability, clockStretch bool) (command, error) {
	switch r {
	case RepeatabilityHigh:
		if clockStretch {
			return cmdMeasureHighRepStretch, nil
		}
		return cmdMeasureHighRep, nil
	case RepeatabilityMedium:
		if clockStretch {
			return cmdMeasureMedRepStretch, nil
		}
		return cmdMeasureMedRep, nil
	case RepeatabilityLow:
		if clockStretch {
			return cmdMeasureLowRepStretch, nil
		}
		return cmdMeasureLowRep, nil
	}
	return command{}, fmt.Errorf("sht3x: unknown repeatability %d", int(r))
}

// Dev is a handle to an SHT3x sensor. It assumes exclusive ownership of the
// address for the life of the handle and serializes all commands, so it is
// safe to share between goroutines.
type Dev struct {
	t             Transport
	addr          uint16
	measure       command
	repeatability Repeatability
	sleep         func(time.Duration)

	mu       sync.Mutex
	shutdown chan struct{}
}

// New opens a handle to the sensor on an I2C bus. Pass nil opts for the
// default address and high repeatability. It waits out the sensor's power-on
// settling time before returning.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	return newDev(&i2cTransport{bus: bus}, opts, time.Sleep)
}

// NewFromTransport is like New but accepts any register level transport,
// such as a different bus binding or a test double.
func NewFromTransport(t Transport, opts *Opts) (*Dev, error) {
	return newDev(t, opts, time.Sleep)
}

func newDev(t Transport, opts *Opts, sleep func(time.Duration)) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddress
	}
	measure, err := measureCommand(opts.Repeatability, opts.ClockStretch)
	if err != nil {
		return nil, err
	}
	d := &Dev{t: t, addr: addr, measure: measure, repeatability: opts.Repeatability, sleep: sleep}
	d.sleep(powerOnDelay)
	return d, nil
}

// sendCommand writes a 16-bit opcode, waits if the command needs conversion
// time, and reads back the response frame if the command has one. A failed
// write aborts before any read, so a half-finished exchange is never
// decoded.
func (d *Dev) sendCommand(c command, wait time.Duration) ([]byte, error) {
	if err := d.t.WriteReg(d.addr, byte(c.opcode>>8), byte(c.opcode)); err != nil {
		return nil, fmt.Errorf("sht3x: cmd 0x%04x: %w", c.opcode, err)
	}
	if wait > 0 {
		d.sleep(wait)
	}
	if c.responseLen == 0 {
		return nil, nil
	}
	buf := make([]byte, c.responseLen)
	if err := d.t.ReadBlock(d.addr, 0, buf); err != nil {
		return nil, fmt.Errorf("sht3x: cmd 0x%04x response: %w", c.opcode, err)
	}
	return buf, nil
}

// ReadTemperatureHumidity triggers a measurement at the configured
// repeatability and returns the decoded reading. A transport failure is
// returned as an error; a corrupt word is returned as NaN in its field with
// a nil error.
func (d *Dev) ReadTemperatureHumidity() (Measurement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame, err := d.sendCommand(d.measure, measureDelay)
	if err != nil {
		return Measurement{Temperature: math.NaN(), Humidity: math.NaN()}, err
	}
	return decodeMeasurement(frame), nil
}

// ReadTemperature returns only the temperature. The sensor has no single
// field command, so the full frame still transfers and the humidity word is
// still CRC-checked before being discarded.
func (d *Dev) ReadTemperature() (float64, error) {
	m, err := d.ReadTemperatureHumidity()
	return m.Temperature, err
}

// ReadHumidity returns only the relative humidity. See ReadTemperature for
// the transfer cost.
func (d *Dev) ReadHumidity() (float64, error) {
	m, err := d.ReadTemperatureHumidity()
	return m.Humidity, err
}

// Reset soft-resets the sensor and waits out the restart. Configuration
// held in the handle, such as repeatability, is unaffected; the sensor's
// volatile state reverts to its power-on defaults.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.sendCommand(cmdSoftReset, softResetDelay)
	return err
}

// ClearStatus resets the sticky bits of the status register, such as the
// reset detection and alert flags.
func (d *Dev) ClearStatus() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.sendCommand(cmdClearStatus, 0)
	return err
}

// ReadStatus returns the sensor's status register. Unlike measurement
// reads, a corrupt status frame is an error, never a zero word: status bits
// drive decisions and a fabricated "all clear" would mask real faults.
func (d *Dev) ReadStatus() (StatusWord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame, err := d.sendCommand(cmdReadStatus, 0)
	if err != nil {
		return 0, err
	}
	if common.CRC8(frame[0:2]) != frame[2] {
		return 0, errInvalidCRC
	}
	return StatusWord(uint16(frame[0])<<8 | uint16(frame[1])), nil
}

// statusBit reads the status register and tests one bit. The read is fresh
// on every call and a failed read propagates instead of coercing to false.
func (d *Dev) statusBit(bit StatusWord) (bool, error) {
	s, err := d.ReadStatus()
	if err != nil {
		return false, err
	}
	return s&bit != 0, nil
}

// DataCRCError reports whether the sensor rejected the checksum of the last
// data written to it.
func (d *Dev) DataCRCError() (bool, error) {
	return d.statusBit(StatusDataCRCError)
}

// CommandError reports whether the last command failed to execute.
func (d *Dev) CommandError() (bool, error) {
	return d.statusBit(StatusCommandError)
}

// ResetDetected reports whether the sensor restarted since the last
// ClearStatus.
func (d *Dev) ResetDetected() (bool, error) {
	return d.statusBit(StatusResetDetected)
}

// TemperatureAlert reports whether the temperature tracking alert is set.
func (d *Dev) TemperatureAlert() (bool, error) {
	return d.statusBit(StatusTemperatureAlert)
}

// HumidityAlert reports whether the humidity tracking alert is set.
func (d *Dev) HumidityAlert() (bool, error) {
	return d.statusBit(StatusHumidityAlert)
}

// HeaterActive reports whether the internal heater is on.
func (d *Dev) HeaterActive() (bool, error) {
	return d.statusBit(StatusHeaterActive)
}

// AlertPending reports whether at least one alert is pending.
func (d *Dev) AlertPending() (bool, error) {
	return d.statusBit(StatusAlertPending)
}

// SetHeater switches the internal plausibility-check heater on or off.
func (d *Dev) SetHeater(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := cmdHeaterOff
	if on {
		c = cmdHeaterOn
	}
	_, err := d.sendCommand(c, 0)
	return err
}

// Sense reads temperature and humidity into env. Unlike
// ReadTemperatureHumidity it is strict: a word that fails its CRC check
// makes the whole reading an error, because physic.Env has no slot for a
// partial result.
func (d *Dev) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame, err := d.sendCommand(d.measure, measureDelay)
	if err != nil {
		return err
	}
	if common.CRC8(frame[0:2]) != frame[2] || common.CRC8(frame[3:5]) != frame[5] {
		return errInvalidCRC
	}
	env.Temperature = countToTemperature(frame[0:2])
	env.Humidity = countToHumidity(frame[3:5])
	return nil
}

// SenseContinuous returns a channel that gets a reading every interval.
// Readings that fail are skipped, not sent. Call Halt to stop the stream;
// the channel is closed once the background reader exits.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < measureDelay {
		return nil, fmt.Errorf("sht3x: interval %s is shorter than a measurement", interval)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		return nil, errors.New("sht3x: already sensing continuously")
	}
	d.shutdown = make(chan struct{})
	shutdown := d.shutdown
	ch := make(chan physic.Env, 16)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				env := physic.Env{}
				if err := d.Sense(&env); err == nil {
					ch <- env
				}
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv. It reports one LSB of the raw
// count in each unit.
func (d *Dev) Precision(env *physic.Env) {
	env.Temperature = physic.Temperature(math.Round(temperatureScalar / scaleDivisor * float64(physic.Celsius)))
	env.Humidity = physic.RelativeHumidity(math.Round(humidityScalar / scaleDivisor * float64(physic.PercentRH)))
	env.Pressure = 0
}

// Halt stops a running SenseContinuous. The device itself needs no
// shutdown. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		close(d.shutdown)
		d.shutdown = nil
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("sht3x{addr: 0x%02x, repeatability: %s}", d.addr, d.repeatability)
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
