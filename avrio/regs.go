// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package avrio

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3"
)

// DefaultLatency is the number of ADCSRA polls a conversion stays busy.
const DefaultLatency = 3

// Regs is an in-memory ATmega328P register file implementing conn.Conn.
//
// Plain registers store what is written. The converter follows the
// datasheet: setting ADSC while ADEN is set starts a conversion on the
// channel selected by ADMUX, ADSC reads back set for the configured number
// of ADCSRA polls, then clears while ADIF sets and ADCH:ADCL receive the 10
// bit code, left adjusted when ADLAR is set. Writing a one to a PINx bit
// toggles the matching PORTx bit.
//
// Regs is safe for concurrent use.
type Regs struct {
	mu          sync.Mutex
	mem         [0x100]uint8
	latency     int
	pending     int
	stalled     bool
	conversions int
	input       func(channel uint8) uint16
	hooks       map[uint8][]func(old, new uint8)
}

type hookCall struct {
	fn       func(old, new uint8)
	old, new uint8
}

// NewRegs returns a register file in its reset state. latency is the number
// of ADCSRA polls a conversion stays busy; values below 1 select
// DefaultLatency.
func NewRegs(latency int) *Regs {
	if latency < 1 {
		latency = DefaultLatency
	}
	return &Regs{latency: latency, hooks: map[uint8][]func(old, new uint8){}}
}

// SetInput sets the analog source sampled by conversions. fn receives the
// ADMUX channel and returns a 10 bit code; upper bits are discarded.
func (r *Regs) SetInput(fn func(channel uint8) uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input = fn
}

// Stall keeps ADSC set indefinitely while enabled, modelling a converter
// that never completes.
func (r *Regs) Stall(stalled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stalled = stalled
}

// Conversions returns the number of completed conversions.
func (r *Regs) Conversions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conversions
}

// OnWrite registers fn to be called after every bus write to reg with the
// previous and new values. fn runs without the register file lock held and
// may call Peek.
func (r *Regs) OnWrite(reg uint8, fn func(old, new uint8)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[reg] = append(r.hooks[reg], fn)
}

// Peek returns the stored value of reg without side effects.
func (r *Regs) Peek(reg uint8) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mem[reg]
}

// Poke stores v in reg without side effects or hooks.
func (r *Regs) Poke(reg, v uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mem[reg] = v
}

// String implements conn.Conn.
func (r *Regs) String() string {
	return "avrio.Regs"
}

// Duplex implements conn.Conn.
func (r *Regs) Duplex() conn.Duplex {
	return conn.Half
}

// Tx implements conn.Conn. w[0] is the first register address; the rest of
// w is written to consecutive registers, then len(read) consecutive
// registers are read back.
func (r *Regs) Tx(w, read []byte) error {
	if len(w) == 0 {
		return errors.New("avrio: register address required")
	}
	if int(w[0])+max(len(w)-1, len(read)) > len(r.mem) {
		return errors.New("avrio: access beyond the register file")
	}
	var calls []hookCall
	r.mu.Lock()
	reg := w[0]
	for ix, v := range w[1:] {
		addr := reg + uint8(ix)
		old := r.mem[addr]
		r.store(addr, v)
		for _, fn := range r.hooks[addr] {
			calls = append(calls, hookCall{fn: fn, old: old, new: r.mem[addr]})
		}
		if addr >= PINB && addr <= PIND && (addr-PINB)%3 == 0 {
			port := addr + 2
			for _, fn := range r.hooks[port] {
				calls = append(calls, hookCall{fn: fn, old: r.mem[port] ^ v, new: r.mem[port]})
			}
		}
	}
	for ix := range read {
		read[ix] = r.load(reg + uint8(ix))
	}
	r.mu.Unlock()
	for _, c := range calls {
		c.fn(c.old, c.new)
	}
	return nil
}

func (r *Regs) store(addr, v uint8) {
	switch addr {
	case PINB, PINC, PIND:
		r.mem[addr+2] ^= v
	case ADCL, ADCH:
	case ADCSRA:
		cur := r.mem[ADCSRA]
		next := v &^ ADIF
		// ADIF is cleared by writing a one to it.
		if cur&ADIF != 0 && v&ADIF == 0 {
			next |= ADIF
		}
		if next&ADEN == 0 {
			next &^= ADSC
			r.pending = 0
		} else if next&ADSC != 0 && cur&ADSC == 0 {
			r.pending = r.latency
		} else if cur&ADSC != 0 {
			// ADSC cannot be cleared by software.
			next |= ADSC
		}
		r.mem[ADCSRA] = next
	default:
		r.mem[addr] = v
	}
}

func (r *Regs) load(addr uint8) uint8 {
	switch addr {
	case PINB, PINC, PIND:
		return r.mem[addr+2] & r.mem[addr+1]
	case ADCSRA:
		if r.mem[ADCSRA]&ADSC != 0 && !r.stalled {
			r.pending--
			if r.pending <= 0 {
				r.complete()
			}
		}
	}
	return r.mem[addr]
}

func (r *Regs) complete() {
	var code uint16
	if r.input != nil {
		code = r.input(r.mem[ADMUX]&MUXMask) & 0x3ff
	}
	if r.mem[ADMUX]&ADLAR != 0 {
		r.mem[ADCH] = uint8(code >> 2)
		r.mem[ADCL] = uint8(code << 6)
	} else {
		r.mem[ADCH] = uint8(code >> 8)
		r.mem[ADCL] = uint8(code)
	}
	r.mem[ADCSRA] = (r.mem[ADCSRA] &^ ADSC) | ADIF
	r.pending = 0
	r.conversions++
}

var _ conn.Conn = &Regs{}
