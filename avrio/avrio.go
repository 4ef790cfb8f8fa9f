// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package avrio exposes the I/O registers of an ATmega328P as an owned
// handle instead of ambient globals.
//
// Registers are reached through a half-duplex conn.Conn using the
// periph.io/x/conn/v3/mmr convention: a write is []byte{reg, value} and a
// read writes []byte{reg} and reads the value back. Regs implements that
// connection as an in-memory register file with a model of the
// analog-to-digital converter, which is what the simulator and the tests
// drive.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/DeviceDoc/Atmel-7810-Automotive-Microcontrollers-ATmega328P_Datasheet.pdf
package avrio

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/mmr"
)

// Data space addresses of the registers used by the drivers in this module.
const (
	PINB   uint8 = 0x23
	DDRB   uint8 = 0x24
	PORTB  uint8 = 0x25
	PINC   uint8 = 0x26
	DDRC   uint8 = 0x27
	PORTC  uint8 = 0x28
	PIND   uint8 = 0x29
	DDRD   uint8 = 0x2a
	PORTD  uint8 = 0x2b
	ADCL   uint8 = 0x78
	ADCH   uint8 = 0x79
	ADCSRA uint8 = 0x7a
	ADCSRB uint8 = 0x7b
	ADMUX  uint8 = 0x7c
)

// ADMUX bits.
const (
	REFS1 uint8 = 1 << 7
	REFS0 uint8 = 1 << 6
	ADLAR uint8 = 1 << 5
	// MUXMask selects the input channel.
	MUXMask uint8 = 0x0f
)

// ADCSRA bits.
const (
	ADEN  uint8 = 1 << 7
	ADSC  uint8 = 1 << 6
	ADATE uint8 = 1 << 5
	ADIF  uint8 = 1 << 4
	ADIE  uint8 = 1 << 3
	ADPS2 uint8 = 1 << 2
	ADPS1 uint8 = 1 << 1
	ADPS0 uint8 = 1 << 0
)

// Register is a single 8 bit register. Registers the hardware never changes
// behind the driver's back, like PORTx, may be cached.
type Register struct {
	dev   mmr.Dev8
	addr  uint8
	got   bool
	cache uint8
}

// NewRegister returns the register at addr reached through c.
func NewRegister(c conn.Conn, addr uint8) *Register {
	return &Register{dev: mmr.Dev8{Conn: c, Order: binary.LittleEndian}, addr: addr}
}

// Addr returns the data space address of the register.
func (r *Register) Addr() uint8 {
	return r.addr
}

// Read returns the register value. With cached set, a previously read or
// written value is returned without bus traffic.
func (r *Register) Read(cached bool) (uint8, error) {
	if cached && r.got {
		return r.cache, nil
	}
	v, err := r.dev.ReadUint8(r.addr)
	if err != nil {
		return 0, fmt.Errorf("avrio: read 0x%02x: %w", r.addr, err)
	}
	r.got = true
	r.cache = v
	return v, nil
}

// Write stores v. With cached set, the write is skipped when v matches the
// cached value.
func (r *Register) Write(v uint8, cached bool) error {
	if cached && r.got && v == r.cache {
		return nil
	}
	if err := r.dev.WriteUint8(r.addr, v); err != nil {
		return fmt.Errorf("avrio: write 0x%02x: %w", r.addr, err)
	}
	r.got = true
	r.cache = v
	return nil
}

// Update performs a read-modify-write: the bits in mask take their value
// from bits, all others are preserved.
func (r *Register) Update(mask, bits uint8, cached bool) error {
	v, err := r.Read(cached)
	if err != nil {
		return err
	}
	return r.Write((v&^mask)|(bits&mask), cached)
}

// Set ORs bits into the register, like `REG |= bits`.
func (r *Register) Set(bits uint8) error {
	return r.Update(bits, bits, false)
}
