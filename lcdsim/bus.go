// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdsim

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/pin"
)

const (
	lineRS = 8 + iota
	lineRW
	lineEN
)

// Bus is the 8 bit parallel interface of the emulated controller. A
// transfer is latched when EN falls while RW is low.
type Bus struct {
	// Data is D0 to D7.
	Data gpio.Group
	RS   gpio.PinIO
	RW   gpio.PinIO
	EN   gpio.PinIO

	dev   *Dev
	mu    sync.Mutex
	lines [11]*linePin
}

// Bus returns fake pins wired to d.
func (d *Dev) Bus() *Bus {
	b := &Bus{dev: d}
	for ix := range b.lines {
		name := fmt.Sprintf("D%d", ix)
		switch ix {
		case lineRS:
			name = "RS"
		case lineRW:
			name = "RW"
		case lineEN:
			name = "EN"
		}
		b.lines[ix] = &linePin{Pin: gpiotest.Pin{N: name, Num: ix, Fn: string(gpio.OUT)}, bus: b}
	}
	b.Data = &dataGroup{bus: b}
	b.RS = b.lines[lineRS]
	b.RW = b.lines[lineRW]
	b.EN = b.lines[lineEN]
	return b
}

func (b *Bus) set(line int, l gpio.Level) error {
	b.mu.Lock()
	en := b.lines[lineEN].level()
	b.lines[line].setLevel(l)
	if line != lineEN || !en || l || b.lines[lineRW].level() {
		b.mu.Unlock()
		return nil
	}
	rs := b.lines[lineRS].level()
	v := b.data()
	b.mu.Unlock()
	return b.dev.Strobe(rs, v)
}

func (b *Bus) data() byte {
	var v byte
	for ix := range 8 {
		if b.lines[ix].level() {
			v |= 1 << ix
		}
	}
	return v
}

type linePin struct {
	gpiotest.Pin
	bus *Bus
}

func (p *linePin) level() gpio.Level {
	p.Lock()
	defer p.Unlock()
	return p.L
}

func (p *linePin) setLevel(l gpio.Level) {
	p.Lock()
	defer p.Unlock()
	p.L = l
}

// Out implements gpio.PinOut.
func (p *linePin) Out(l gpio.Level) error {
	return p.bus.set(p.Num, l)
}

type dataGroup struct {
	bus *Bus
}

func (g *dataGroup) Pins() []pin.Pin {
	pins := make([]pin.Pin, 8)
	for ix := range pins {
		pins[ix] = g.bus.lines[ix]
	}
	return pins
}

func (g *dataGroup) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= 8 {
		return nil
	}
	return g.bus.lines[offset]
}

func (g *dataGroup) ByName(name string) pin.Pin {
	for _, p := range g.bus.lines[:8] {
		if p.N == name {
			return p
		}
	}
	return nil
}

func (g *dataGroup) ByNumber(number int) pin.Pin {
	return g.ByOffset(number)
}

func (g *dataGroup) Out(value, mask gpio.GPIOValue) error {
	if mask == 0 {
		mask = 0xff
	}
	g.bus.mu.Lock()
	defer g.bus.mu.Unlock()
	for ix := range 8 {
		if mask&(1<<ix) != 0 {
			g.bus.lines[ix].setLevel(value&(1<<ix) != 0)
		}
	}
	return nil
}

func (g *dataGroup) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	if mask == 0 {
		mask = 0xff
	}
	g.bus.mu.Lock()
	defer g.bus.mu.Unlock()
	return gpio.GPIOValue(g.bus.data()) & mask, nil
}

func (g *dataGroup) WaitForEdge(timeout time.Duration) (int, gpio.Edge, error) {
	return -1, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

func (g *dataGroup) Halt() error {
	return g.Out(0, 0xff)
}

func (g *dataGroup) String() string {
	return "lcdsim.D0-D7"
}

var _ gpio.Group = &dataGroup{}
var _ gpio.PinIO = &linePin{}
