// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package aht10

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/dasbahn/aht10/meteo"
)

// DefaultAddress is the factory I²C address of the AHT10. Clones exist that
// answer on other addresses, so the address is a parameter of NewI2C.
const DefaultAddress uint16 = 0x38

const (
	cmdInitialize byte = 0xE1
	cmdMeasure    byte = 0xAC
	cmdSoftReset  byte = 0xBA
)

const bitBusy byte = 1 << 7

var (
	argsInitialize = []byte{cmdInitialize, 0x08, 0x00}
	argsMeasure    = []byte{cmdMeasure, 0x33, 0x00}
)

const (
	// Settle times after the reset and calibrate commands, per datasheet.
	resetSettle     = 40 * time.Millisecond
	calibrateSettle = 300 * time.Millisecond

	// Measured values outside this envelope are treated as misreads and
	// trigger the plausibility retry. The device is specified for -40..85°C.
	minPlausibleTemp = -40.0
	maxPlausibleTemp = 85.0
)

// Opts holds the configuration options for the device.
type Opts struct {
	// MeasurementSettle is the wait between triggering a conversion and the
	// first status read. Default is 100ms. Leave 0 to use default.
	MeasurementSettle time.Duration
	// MeasurementWaitInterval is the interval between subsequent status reads
	// while the sensor reports busy. Default is 10ms. Leave 0 to use default.
	MeasurementWaitInterval time.Duration
	// MaxPolls bounds the busy-poll loop. When the sensor is still busy after
	// MaxPolls reads, one final read is taken and returned as-is rather than
	// failing the measurement. Default is 40. Leave 0 to use default.
	MaxPolls int
	// RetryDelay is the wait before repeating a measurement whose result was
	// implausible. Default is 100ms. Leave 0 to use default.
	RetryDelay time.Duration
	// Retries is the number of repeated measurements allowed when Humidity or
	// Temperature produce an implausible value. The result of the last attempt
	// is returned even if it is still implausible. Negative means none.
	// Default is 1.
	Retries int
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	MeasurementSettle:       100 * time.Millisecond,
	MeasurementWaitInterval: 10 * time.Millisecond,
	MaxPolls:                40,
	RetryDelay:              100 * time.Millisecond,
	Retries:                 1,
}

// Dev is a handle to an AHT10 sensor at a fixed address on an I²C bus.
//
// All methods serialize on an internal mutex; a measurement in flight is never
// interleaved with another caller's trigger or poll.
type Dev struct {
	d           *i2c.Dev
	opts        Opts
	mu          sync.Mutex
	initialized bool
	stop        chan struct{}
	wg          sync.WaitGroup
}

// NewI2C returns an object that communicates over I²C to an AHT10 sensor at
// the given 7-bit address. The device is soft-reset and calibrated, which
// blocks for roughly 340ms. The Opts can be nil.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if addr > 0x7F {
		return nil, &InvalidAddressError{Addr: addr}
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.MeasurementSettle <= 0 {
		o.MeasurementSettle = DefaultOpts.MeasurementSettle
	}
	if o.MeasurementWaitInterval <= 0 {
		o.MeasurementWaitInterval = DefaultOpts.MeasurementWaitInterval
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = DefaultOpts.MaxPolls
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultOpts.RetryDelay
	}
	if o.Retries < 0 {
		o.Retries = 0
	}

	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, opts: o}
	if err := d.initialize(); err != nil {
		return nil, fmt.Errorf("aht10: could not calibrate sensor: %w", err)
	}
	return d, nil
}

// initialize runs the reset+calibrate sequence unless it already completed
// for this handle. Callers other than NewI2C must hold d.mu.
func (d *Dev) initialize() error {
	if d.initialized {
		return nil
	}
	if err := d.d.Tx([]byte{cmdSoftReset}, nil); err != nil {
		return err
	}
	time.Sleep(resetSettle)
	if err := d.d.Tx(argsInitialize, nil); err != nil {
		return err
	}
	time.Sleep(calibrateSettle)
	d.initialized = true
	return nil
}

// SoftReset reboots and re-calibrates the sensor unconditionally, even when
// the handle believes the device is already initialized.
func (d *Dev) SoftReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.d.Tx([]byte{cmdSoftReset}, nil); err != nil {
		return err
	}
	time.Sleep(resetSettle)
	d.initialized = false
	return d.initialize()
}

// readFrame reads the status byte and packed sensor data. A 7-byte read is
// attempted first; devices that NACK the seventh byte get a 6-byte read
// instead. The trailing check byte, when present, is discarded unvalidated.
func (d *Dev) readFrame() ([6]byte, error) {
	var frame [6]byte
	buf := make([]byte, 7)
	if err := d.d.Tx(nil, buf); err != nil {
		buf = buf[:6]
		if err := d.d.Tx(nil, buf); err != nil {
			return frame, fmt.Errorf("aht10: could not read measurement: %w", err)
		}
	}
	copy(frame[:], buf[:6])
	return frame, nil
}

// measure runs one full conversion: trigger, settle, busy-poll, read.
//
// A sensor that never clears its busy flag within MaxPolls reads does not
// fail the measurement; one final frame is read and returned regardless of
// its busy bit. Bus errors are returned as-is. Callers must hold d.mu.
func (d *Dev) measure() ([6]byte, error) {
	var frame [6]byte
	if err := d.initialize(); err != nil {
		return frame, err
	}
	if err := d.d.Tx(argsMeasure, nil); err != nil {
		return frame, fmt.Errorf("aht10: could not trigger measurement: %w", err)
	}
	time.Sleep(d.opts.MeasurementSettle)

	for i := 0; i < d.opts.MaxPolls; i++ {
		frame, err := d.readFrame()
		if err != nil {
			return frame, err
		}
		if frame[0]&bitBusy == 0 {
			return frame, nil
		}
		time.Sleep(d.opts.MeasurementWaitInterval)
	}
	return d.readFrame()
}

// decode extracts the two 20-bit fields from a 6-byte frame. Byte 1, byte 2
// and the high nibble of byte 3 are humidity; the low nibble of byte 3, byte
// 4 and byte 5 are temperature.
func decode(frame [6]byte) (rawHumidity, rawTemperature uint32) {
	rawHumidity = (uint32(frame[1])<<12 | uint32(frame[2])<<4 | uint32(frame[3])>>4) & 0xFFFFF
	rawTemperature = (uint32(frame[3])&0x0F)<<16 | uint32(frame[4])<<8 | uint32(frame[5])
	return
}

// humidityPercent converts a raw 20-bit reading to %RH, clamped to [0,100].
func humidityPercent(raw uint32) float64 {
	rh := float64(raw) / 1048576.0 * 100.0
	if rh < 0 {
		return 0
	}
	if rh > 100 {
		return 100
	}
	return rh
}

// celsius converts a raw 20-bit reading to °C. The map is affine and is not
// clamped; plausibility is checked by the callers that care.
func celsius(raw uint32) float64 {
	return float64(raw)/1048576.0*200.0 - 50.0
}

func (d *Dev) measureHumidity() (float64, error) {
	frame, err := d.measure()
	if err != nil {
		return 0, err
	}
	rawHumidity, _ := decode(frame)
	return humidityPercent(rawHumidity), nil
}

func (d *Dev) measureTemperature() (float64, error) {
	frame, err := d.measure()
	if err != nil {
		return 0, err
	}
	_, rawTemperature := decode(frame)
	return celsius(rawTemperature), nil
}

// Humidity measures and returns the relative humidity.
//
// A result on the clamp boundary (0% or 100%) almost always means a misread,
// so the measurement is repeated once after RetryDelay and the second result
// is returned even if it is implausible too.
func (d *Dev) Humidity() (physic.RelativeHumidity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rh, err := d.measureHumidity()
	if err != nil {
		return 0, err
	}
	for try := 0; try < d.opts.Retries && (rh <= 0 || rh >= 100); try++ {
		time.Sleep(d.opts.RetryDelay)
		if rh, err = d.measureHumidity(); err != nil {
			return 0, err
		}
	}
	return physic.RelativeHumidity(rh * float64(physic.PercentRH)), nil
}

// Temperature measures and returns the temperature. Results outside the
// device's -40..85°C operating envelope trigger the same single retry as
// Humidity. Fahrenheit is a view on the returned value, see
// physic.Temperature.
func (d *Dev) Temperature() (physic.Temperature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.measureTemperature()
	if err != nil {
		return 0, err
	}
	for try := 0; try < d.opts.Retries && (t < minPlausibleTemp || t > maxPlausibleTemp); try++ {
		time.Sleep(d.opts.RetryDelay)
		if t, err = d.measureTemperature(); err != nil {
			return 0, err
		}
	}
	return physic.Temperature(t*float64(physic.Celsius)) + physic.ZeroCelsius, nil
}

// Sense implements physic.SenseEnv. It fills in temperature and humidity from
// a single conversion, so both values describe the same physical sample. The
// pressure is always 0 since the AHT10 does not measure pressure.
//
// Sense does not apply the plausibility retry of Humidity and Temperature;
// callers trade a small chance of a boundary value for sample consistency and
// lower latency.
func (d *Dev) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame, err := d.measure()
	if err != nil {
		return err
	}
	rawHumidity, rawTemperature := decode(frame)
	e.Humidity = physic.RelativeHumidity(humidityPercent(rawHumidity) * float64(physic.PercentRH))
	e.Temperature = physic.Temperature(celsius(rawTemperature)*float64(physic.Celsius)) + physic.ZeroCelsius
	return nil
}

// SenseContinuous implements physic.SenseEnv. It returns a channel that will
// receive a measurement every interval. It is the caller's responsibility to
// call Halt() when done.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wg.Add(1)

	sensing := make(chan physic.Env)
	d.stop = make(chan struct{})
	go func() {
		defer d.wg.Done()
		defer close(sensing)
		dMeasurement := 150 * time.Millisecond // duration of last measurement
		for {
			select {
			case <-d.stop:
				return
			case <-time.After(interval - dMeasurement):
				var e physic.Env
				now := time.Now()
				if err := d.Sense(&e); err == nil {
					sensing <- e
				}
				dMeasurement = time.Since(now)
			}
		}
	}()
	return sensing, nil
}

// DewPoint estimates the dew point from two back-to-back measurements, first
// temperature then humidity. The two samples are separate conversions and may
// straddle an environmental change.
func (d *Dev) DewPoint() (physic.Temperature, error) {
	t, err := d.Temperature()
	if err != nil {
		return 0, err
	}
	h, err := d.Humidity()
	if err != nil {
		return 0, err
	}
	return meteo.DewPoint(t, h), nil
}

// HeatIndex estimates the apparent temperature from two back-to-back
// measurements, first temperature then humidity.
func (d *Dev) HeatIndex() (physic.Temperature, error) {
	t, err := d.Temperature()
	if err != nil {
		return 0, err
	}
	h, err := d.Humidity()
	if err != nil {
		return 0, err
	}
	return meteo.HeatIndex(t, h), nil
}

// Precision implements physic.SenseEnv.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = 10 * physic.MilliKelvin
	e.Humidity = 24 * physic.MilliRH
}

// Halt stops the AHT10 from acquiring measurements as initiated by
// SenseContinuous().
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.wg.Wait()
	d.stop = nil
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("aht10: %s", d.d.String())
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
