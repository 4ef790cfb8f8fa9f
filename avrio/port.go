// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package avrio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// PortID selects one of the 8 bit I/O ports.
type PortID byte

const (
	PortB PortID = 'B'
	PortC PortID = 'C'
	PortD PortID = 'D'
)

var ErrNotImplemented = errors.New("avrio: not implemented")

// Port is an 8 bit I/O port. Its Pins implement gpio.PinIO with
// read-modify-write access to PORTx, the equivalent of `PORTx |= 1 << n`
// and `PORTx &= ~(1 << n)`.
type Port struct {
	// Pins exposes the 8 bits of the port, Pins[n] being Pxn.
	Pins []gpio.PinIO

	id   PortID
	mu   sync.Mutex
	pin  *Register
	ddr  *Register
	port *Register
}

// NewPort returns port id reached through the register connection c.
func NewPort(c conn.Conn, id PortID) (*Port, error) {
	var base uint8
	switch id {
	case PortB:
		base = PINB
	case PortC:
		base = PINC
	case PortD:
		base = PIND
	default:
		return nil, fmt.Errorf("avrio: unknown port %q", rune(id))
	}
	p := &Port{
		id:   id,
		pin:  NewRegister(c, base),
		ddr:  NewRegister(c, base+1),
		port: NewRegister(c, base+2),
		Pins: make([]gpio.PinIO, 8),
	}
	for ix := range 8 {
		p.Pins[ix] = &portPin{port: p, number: ix, name: fmt.Sprintf("P%c%d", rune(id), ix)}
	}
	return p, nil
}

// SetDirection writes DDRx. A one bit makes the pin an output.
func (p *Port) SetDirection(outputs uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ddr.Write(outputs, false)
}

// Direction reads DDRx.
func (p *Port) Direction() (uint8, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ddr.Read(false)
}

// Group returns a gpio.Group made of the listed bit numbers. Bit 0 of a
// group value maps to the first listed pin.
func (p *Port) Group(bits ...int) (gpio.Group, error) {
	g := &Group{port: p, pins: make([]*portPin, len(bits))}
	for ix, bit := range bits {
		if bit < 0 || bit > 7 {
			return nil, fmt.Errorf("avrio: pin P%c%d does not exist", rune(p.id), bit)
		}
		g.pins[ix] = p.Pins[bit].(*portPin)
	}
	return g, nil
}

// Halt drives all outputs of the port low.
func (p *Port) Halt() error {
	return p.write(0, 0xff)
}

func (p *Port) String() string {
	return fmt.Sprintf("PORT%c", rune(p.id))
}

// write updates the bits in mask of PORTx. The cached value is authoritative
// since only this driver writes the port.
func (p *Port) write(value, mask uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port.Update(mask, value, true)
}

// read returns PINx masked.
func (p *Port) read(mask uint8) (uint8, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := p.pin.Read(false)
	return v & mask, err
}

// Group is a set of pins of one Port.
type Group struct {
	port *Port
	pins []*portPin
}

func (g *Group) toPort(value, mask gpio.GPIOValue) (uint8, uint8) {
	var v, m uint8
	for ix, pp := range g.pins {
		bit := gpio.GPIOValue(1) << ix
		if mask&bit == 0 {
			continue
		}
		m |= 1 << pp.number
		if value&bit != 0 {
			v |= 1 << pp.number
		}
	}
	return v, m
}

// Pins returns the pins of the group in group order.
func (g *Group) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(g.pins))
	for ix, pp := range g.pins {
		pins[ix] = pp
	}
	return pins
}

// ByOffset returns the pin at offset within the group.
func (g *Group) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(g.pins) {
		return nil
	}
	return g.pins[offset]
}

// ByName returns the pin named name or nil.
func (g *Group) ByName(name string) pin.Pin {
	for _, pp := range g.pins {
		if pp.name == name {
			return pp
		}
	}
	return nil
}

// ByNumber returns the pin with bit number number or nil.
func (g *Group) ByNumber(number int) pin.Pin {
	for _, pp := range g.pins {
		if pp.number == number {
			return pp
		}
	}
	return nil
}

// Out writes value to the pins selected by mask. A zero mask selects every
// pin of the group.
func (g *Group) Out(value, mask gpio.GPIOValue) error {
	if mask == 0 {
		mask = (1 << len(g.pins)) - 1
	}
	v, m := g.toPort(value, mask)
	return g.port.write(v, m)
}

// Read returns the PINx levels of the pins selected by mask.
func (g *Group) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	if mask == 0 {
		mask = (1 << len(g.pins)) - 1
	}
	_, m := g.toPort(0, mask)
	v, err := g.port.read(m)
	if err != nil {
		return 0, err
	}
	var result gpio.GPIOValue
	for ix, pp := range g.pins {
		if v&(1<<pp.number) != 0 {
			result |= 1 << ix
		}
	}
	return result, nil
}

// WaitForEdge is not supported; pin change interrupts are not modelled.
func (g *Group) WaitForEdge(timeout time.Duration) (number int, edge gpio.Edge, err error) {
	return -1, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

// Halt drives the group pins low.
func (g *Group) Halt() error {
	return g.Out(0, 0)
}

func (g *Group) String() string {
	s := g.port.String() + "[ "
	for _, pp := range g.pins {
		s += fmt.Sprintf("%d ", pp.number)
	}
	return s + "]"
}

type portPin struct {
	port   *Port
	number int
	name   string
}

func (pp *portPin) String() string {
	return pp.name
}

func (pp *portPin) Name() string {
	return pp.name
}

func (pp *portPin) Number() int {
	return pp.number
}

func (pp *portPin) Function() string {
	d, err := pp.port.Direction()
	if err == nil && d&(1<<pp.number) != 0 {
		return string(gpio.OUT)
	}
	return string(gpio.IN)
}

func (pp *portPin) Halt() error {
	return nil
}

// In clears the DDRx bit. A pull-up is PORTx set on an input pin.
func (pp *portPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return ErrNotImplemented
	}
	p := pp.port
	bit := uint8(1) << pp.number
	p.mu.Lock()
	err := p.ddr.Update(bit, 0, false)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	switch pull {
	case gpio.PullUp:
		return p.write(bit, bit)
	case gpio.Float:
		return p.write(0, bit)
	case gpio.PullNoChange:
		return nil
	}
	return ErrNotImplemented
}

func (pp *portPin) Read() gpio.Level {
	bit := uint8(1) << pp.number
	v, err := pp.port.read(bit)
	return err == nil && v != 0
}

func (pp *portPin) WaitForEdge(timeout time.Duration) bool {
	return false
}

func (pp *portPin) Pull() gpio.Pull {
	return gpio.PullNoChange
}

func (pp *portPin) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out sets or clears the PORTx bit. The pin direction is left to
// Port.SetDirection.
func (pp *portPin) Out(l gpio.Level) error {
	bit := uint8(1) << pp.number
	var v uint8
	if l {
		v = bit
	}
	return pp.port.write(v, bit)
}

func (pp *portPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

var _ gpio.PinIO = &portPin{}
var _ gpio.Group = &Group{}
var _ conn.Resource = &Port{}
