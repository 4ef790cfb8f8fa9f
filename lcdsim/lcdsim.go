// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcdsim emulates the controller side of an HD44780 character
// display and renders the panel to the terminal using ANSI color codes.
//
// Useful to run the fan controller without the hardware, and as the oracle
// of the display driver tests.
package lcdsim

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"sync"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/gpio"
)

const (
	// Cols is the number of visible characters per line.
	Cols = 16
	// Rows is the number of lines.
	Rows = 2
	// lineLen is the DDRAM length of one line in two line mode.
	lineLen = 40
)

// Backlight is the default panel color.
var Backlight = color.NRGBA{R: 0x20, G: 0xa0, B: 0x20, A: 0xff}

// Opts represents the options available for the emulator.
type Opts struct {
	// W receives the rendering. Defaults to a colorable stdout.
	W io.Writer
	// Palette defaults to ansi256.Default.
	Palette *ansi256.Palette
	// Live renders the panel after every transfer.
	Live bool

	_ struct{}
}

// Dev is an emulated HD44780 with a 2 line DDRAM.
type Dev struct {
	mu      sync.Mutex
	w       io.Writer
	palette ansi256.Palette
	live    bool
	drawn   bool

	ddram     [Rows][lineLen]byte
	addr      uint8
	cgram     bool
	increment bool
	shift     bool
	offset    int
	on        bool
	cursor    bool
	blink     bool
	eightBit  bool
	twoLines  bool
	instr     []byte

	buf bytes.Buffer
}

// New returns an emulator in its power on state: blank, display off, 8 bit
// interface.
func New(opts *Opts) *Dev {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	d := &Dev{w: w, palette: *p, live: opts.Live, increment: true, eightBit: true}
	d.blank()
	return d
}

func (d *Dev) String() string {
	return "lcdsim"
}

// Halt implements conn.Resource. It resets the terminal colors.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.drawn {
		return nil
	}
	_, err := io.WriteString(d.w, "\033[0m\n")
	return err
}

// Strobe executes one transfer latched by the falling edge of EN. rs low
// selects the instruction register, high the data register.
func (d *Dev) Strobe(rs gpio.Level, b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rs {
		d.data(b)
	} else {
		d.instruction(b)
	}
	if d.live {
		return d.refresh()
	}
	return nil
}

// Line returns the visible characters of row, taking the display shift into
// account.
func (d *Dev) Line(row int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.line(row)
}

// Instructions returns every instruction byte received so far.
func (d *Dev) Instructions() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.instr...)
}

// Address returns the DDRAM address counter.
func (d *Dev) Address() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// On reports whether the display is on.
func (d *Dev) On() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

// Refresh renders the panel.
func (d *Dev) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refresh()
}

func (d *Dev) instruction(b byte) {
	d.instr = append(d.instr, b)
	switch {
	case b&0x80 != 0:
		d.cgram = false
		d.addr = b & 0x7f
	case b&0x40 != 0:
		d.cgram = true
	case b&0x20 != 0:
		d.eightBit = b&0x10 != 0
		d.twoLines = b&0x08 != 0
	case b&0x10 != 0:
		right := b&0x04 != 0
		if b&0x08 != 0 {
			if right {
				d.offset--
			} else {
				d.offset++
			}
		} else {
			d.step(right)
		}
	case b&0x08 != 0:
		d.on = b&0x04 != 0
		d.cursor = b&0x02 != 0
		d.blink = b&0x01 != 0
	case b&0x04 != 0:
		d.increment = b&0x02 != 0
		d.shift = b&0x01 != 0
	case b&0x02 != 0:
		d.cgram = false
		d.addr = 0
		d.offset = 0
	case b&0x01 != 0:
		d.blank()
		d.cgram = false
		d.addr = 0
		d.offset = 0
		d.increment = true
	}
}

func (d *Dev) data(b byte) {
	if !d.cgram {
		if row, col, ok := d.cell(d.addr); ok {
			d.ddram[row][col] = b
		}
	}
	d.step(d.increment)
	if d.shift {
		if d.increment {
			d.offset++
		} else {
			d.offset--
		}
	}
}

// cell maps a DDRAM address to its line and column.
func (d *Dev) cell(addr uint8) (int, int, bool) {
	if !d.twoLines {
		if int(addr) < Rows*lineLen {
			return int(addr) / lineLen, int(addr) % lineLen, true
		}
		return 0, 0, false
	}
	row := int(addr >> 6)
	col := int(addr & 0x3f)
	if row >= Rows || col >= lineLen {
		return 0, 0, false
	}
	return row, col, true
}

// step moves the address counter, wrapping from the end of line 0 to line 1
// and back.
func (d *Dev) step(forward bool) {
	if !d.twoLines {
		if forward {
			d.addr = (d.addr + 1) % (Rows * lineLen)
		} else {
			d.addr = (d.addr + Rows*lineLen - 1) % (Rows * lineLen)
		}
		return
	}
	switch {
	case forward && d.addr == lineLen-1:
		d.addr = 0x40
	case forward && d.addr >= 0x40+lineLen-1:
		d.addr = 0
	case forward:
		d.addr++
	case d.addr == 0:
		d.addr = 0x40 + lineLen - 1
	case d.addr == 0x40:
		d.addr = lineLen - 1
	default:
		d.addr--
	}
}

func (d *Dev) blank() {
	for row := range d.ddram {
		for col := range d.ddram[row] {
			d.ddram[row][col] = ' '
		}
	}
}

func (d *Dev) line(row int) string {
	if row < 0 || row >= Rows {
		return ""
	}
	var b [Cols]byte
	for col := range b {
		ix := (col + d.offset) % lineLen
		if ix < 0 {
			ix += lineLen
		}
		b[col] = d.ddram[row][ix]
	}
	return string(b[:])
}

func (d *Dev) refresh() error {
	d.buf.Reset()
	if d.drawn {
		// Redraw in place.
		_, _ = fmt.Fprintf(&d.buf, "\033[%dA", Rows)
	}
	bezel := d.palette.Block(Backlight)
	for row := range Rows {
		_, _ = d.buf.WriteString("\r\033[0m")
		_, _ = io.WriteString(&d.buf, bezel)
		if d.on {
			_, _ = d.buf.WriteString(d.line(row))
		} else {
			_, _ = d.buf.WriteString(string(bytes.Repeat([]byte{' '}, Cols)))
		}
		_, _ = io.WriteString(&d.buf, bezel)
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	d.drawn = true
	_, err := d.buf.WriteTo(d.w)
	return err
}
