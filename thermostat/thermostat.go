// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermostat runs the fan controller: it samples the temperature,
// shows it on the character display and switches the fan above Threshold.
//
// The screen is never cleared between iterations. Characters a shorter text
// does not overwrite stay on the panel, so switching from "* FAN OFF *" to
// "* FAN ON *" leaves "* FAN ON **".
package thermostat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/GermanBionicSystems/thermofan/itoa"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

const (
	// Threshold is the highest temperature, in degrees Celsius, with the fan
	// off.
	Threshold = 25
	// Interval is the wait between displaying a sample and updating the fan.
	Interval = 100 * time.Millisecond

	Label  = "Temperature: "
	FanOn  = "* FAN ON *"
	FanOff = "* FAN OFF *"

	// StatusRow and StatusCol locate the fan status.
	StatusRow = 1
	StatusCol = 4
)

// ErrRange is returned for a sample that does not fit the display buffer.
var ErrRange = errors.New("sample out of range")

// Sensor returns whole degrees Celsius. avradc.Dev and iioadc.Dev implement
// it.
type Sensor interface {
	Temperature() (int, error)
}

// Display is the subset of hd44780.Dev the loop needs.
type Display interface {
	MoveCursor(row, col uint8) error
	Print(text string) error
}

// Opts holds the optional dependencies of a Controller.
type Opts struct {
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Controller owns the sensor, the display and the fan output.
type Controller struct {
	sensor Sensor
	lcd    Display
	fan    gpio.PinOut
	clock  clockwork.Clock
	log    logrus.FieldLogger

	mu  sync.Mutex
	buf [itoa.DecimalLen]byte

	stateMu sync.Mutex
	last    int
	fanOn   bool
	steps   int
}

// New returns a Controller. opts may be nil.
func New(sensor Sensor, lcd Display, fan gpio.PinOut, opts *Opts) (*Controller, error) {
	if sensor == nil || lcd == nil || fan == nil {
		return nil, errors.New("thermostat: sensor, display and fan are required")
	}
	if opts == nil {
		opts = &Opts{}
	}
	c := &Controller{sensor: sensor, lcd: lcd, fan: fan, clock: opts.Clock, log: opts.Logger}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c, nil
}

// Step runs one iteration. Only the interval wait observes ctx; hardware
// calls block until they complete.
func (c *Controller) Step(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.sensor.Temperature()
	if err != nil {
		return fmt.Errorf("thermostat: sample: %w", err)
	}
	// buf holds any int32 in base 10.
	if int64(t) < math.MinInt32 || int64(t) > math.MaxInt32 {
		return fmt.Errorf("thermostat: sample %d: %w", t, ErrRange)
	}
	text := itoa.Format(c.buf[:], int32(t), 10)
	if err = c.lcd.MoveCursor(0, 0); err != nil {
		return fmt.Errorf("thermostat: %w", err)
	}
	if err = c.lcd.Print(Label); err != nil {
		return fmt.Errorf("thermostat: %w", err)
	}
	if err = c.lcd.Print(string(text)); err != nil {
		return fmt.Errorf("thermostat: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(Interval):
	}

	on := t > Threshold
	status := FanOff
	if on {
		status = FanOn
	}
	if err = c.fan.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("thermostat: fan: %w", err)
	}
	c.record(t, on)
	if err = c.lcd.MoveCursor(StatusRow, StatusCol); err != nil {
		return fmt.Errorf("thermostat: %w", err)
	}
	if err = c.lcd.Print(status); err != nil {
		return fmt.Errorf("thermostat: %w", err)
	}
	return nil
}

// Run calls Step until ctx is cancelled or a hardware call fails. It
// returns ctx.Err() on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Step(ctx); err != nil {
			return err
		}
	}
}

func (c *Controller) record(t int, on bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.steps == 0 || on != c.fanOn {
		c.log.WithFields(logrus.Fields{"temperature": t, "fan": on}).Info("fan switched")
	}
	c.log.WithField("temperature", t).Debug("sample")
	c.last, c.fanOn = t, on
	c.steps++
}

// Last returns the temperature and fan state of the latest iteration that
// reached the fan, and how many did.
func (c *Controller) Last() (temperature int, fan bool, steps int) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.last, c.fanOn, c.steps
}
