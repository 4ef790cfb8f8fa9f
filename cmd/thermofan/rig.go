// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/GermanBionicSystems/thermofan/avradc"
	"github.com/GermanBionicSystems/thermofan/avrio"
	"github.com/GermanBionicSystems/thermofan/hd44780"
	"github.com/GermanBionicSystems/thermofan/iioadc"
	"github.com/GermanBionicSystems/thermofan/lcdsim"
	"github.com/GermanBionicSystems/thermofan/thermostat"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/gpioioctl"
)

// rig is the set of devices the control loop owns.
type rig struct {
	sensor thermostat.Sensor
	lcd    *hd44780.Dev
	fan    gpio.PinOut
	// halt is released in reverse order.
	halt []conn.Resource
}

// Halt turns the fan off and releases every device.
func (r *rig) Halt() error {
	var errs []error
	if r.fan != nil {
		errs = append(errs, r.fan.Out(gpio.Low))
	}
	for i := len(r.halt) - 1; i >= 0; i-- {
		errs = append(errs, r.halt[i].Halt())
	}
	return errors.Join(errs...)
}

// Wiring of the simulated board.
const (
	simRS  = "PC0"
	simRW  = "PC1"
	simEN  = "PC2"
	simFan = "PD0"

	rsBit = 1 << 0
	rwBit = 1 << 1
	enBit = 1 << 2
)

// newSimRig builds the whole board on an emulated ATmega328P: the sensor
// reads degrees through the converter registers and the display controller
// listens to PORTB and PORTC.
func newSimRig(cfg *config, degrees int, panel *lcdsim.Dev, log logrus.FieldLogger) (*rig, error) {
	regs := avrio.NewRegs(cfg.Sim.Latency)
	regs.SetInput(func(uint8) uint16 {
		return uint16(avradc.Code(degrees)) << 2
	})
	regs.OnWrite(avrio.PORTC, func(old, new uint8) {
		if old&enBit == 0 || new&enBit != 0 || new&rwBit != 0 {
			return
		}
		if err := panel.Strobe(gpio.Level(new&rsBit != 0), regs.Peek(avrio.PORTB)); err != nil {
			log.WithError(err).Warn("panel refresh")
		}
	})

	ports := map[avrio.PortID]*avrio.Port{}
	for _, id := range []avrio.PortID{avrio.PortB, avrio.PortC, avrio.PortD} {
		p, err := avrio.NewPort(regs, id)
		if err != nil {
			return nil, err
		}
		if err = p.SetDirection(0xff); err != nil {
			return nil, err
		}
		for _, pin := range p.Pins {
			// A previous board may have registered the same names.
			_ = gpioreg.Unregister(pin.Name())
			if err = gpioreg.Register(pin); err != nil {
				return nil, err
			}
		}
		ports[id] = p
	}

	data, err := ports[avrio.PortB].Group(0, 1, 2, 3, 4, 5, 6, 7)
	if err != nil {
		return nil, err
	}
	r := &rig{halt: []conn.Resource{ports[avrio.PortB], ports[avrio.PortC], ports[avrio.PortD], panel}}
	if r.lcd, err = newDisplay(data, simRS, simRW, simEN); err != nil {
		return nil, err
	}
	r.halt = append(r.halt, r.lcd)
	adc, err := avradc.New(regs, nil)
	if err != nil {
		return nil, err
	}
	r.sensor = adc
	r.halt = append(r.halt, adc)
	if r.fan, err = pinByName(simFan); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"degrees": degrees, "latency": cfg.Sim.Latency}).Debug("simulated board ready")
	return r, nil
}

// newHostRig opens the GPIO lines and the IIO channel of a Linux host.
func newHostRig(cfg *config, log logrus.FieldLogger) (*rig, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	if len(gpioioctl.Chips) == 0 {
		return nil, errors.New("no GPIO chip found")
	}
	chip := gpioioctl.Chips[0]
	data, err := chip.LineSet(gpioioctl.LineOutput, gpio.NoEdge, gpio.PullNoChange, cfg.Display.Data...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", chip.Name(), err)
	}
	r := &rig{halt: []conn.Resource{closer{data}}}
	if r.lcd, err = newDisplay(data, cfg.Display.RS, cfg.Display.RW, cfg.Display.EN); err != nil {
		_ = r.Halt()
		return nil, err
	}
	r.halt = append(r.halt, r.lcd)
	sensor, err := iioadc.New(&iioadc.Opts{Dir: cfg.Sensor.Dir, Channel: cfg.Sensor.Channel, Bits: cfg.Sensor.Bits})
	if err != nil {
		_ = r.Halt()
		return nil, err
	}
	r.sensor = sensor
	r.halt = append(r.halt, sensor)
	if r.fan, err = pinByName(cfg.Fan); err != nil {
		_ = r.Halt()
		return nil, err
	}
	log.WithFields(logrus.Fields{"chip": chip.Name(), "sensor": sensor.String()}).Debug("host board ready")
	return r, nil
}

// closer releases the line set file descriptor on Halt.
type closer struct {
	*gpioioctl.LineSet
}

func (c closer) Halt() error {
	return c.Close()
}

func newDisplay(data gpio.Group, rs, rw, en string) (*hd44780.Dev, error) {
	var pins [3]gpio.PinOut
	for i, name := range []string{rs, rw, en} {
		p, err := pinByName(name)
		if err != nil {
			return nil, err
		}
		pins[i] = p
	}
	return hd44780.New(data, pins[0], pins[1], pins[2])
}

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %q not found", name)
	}
	return p, nil
}

// newPanel returns the emulated display rendering to w, nil for the
// console.
func newPanel(w io.Writer) *lcdsim.Dev {
	return lcdsim.New(&lcdsim.Opts{W: w, Live: true})
}
