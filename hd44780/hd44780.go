// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780 controls a 16x2 Hitachi HD44780 character display wired
// with its full 8 bit interface: 8 data lines plus register select (RS),
// read/write (RW) and enable (EN).
//
// Every transfer drives the data lines, selects the register, pulls RW low
// and pulses EN high for PulseDelay. The busy flag is never read, so the
// delays are lower bounds that must cover the slowest instruction.
//
// # Datasheet
//
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
package hd44780

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
)

const (
	// Rows is the number of lines of the panel.
	Rows = 2
	// Cols is the number of visible characters per line.
	Cols = 16

	// PulseDelay is how long EN stays high on each transfer.
	PulseDelay = 10 * time.Millisecond
	// SettleDelay follows Init, Clear and Home.
	SettleDelay = 10 * time.Millisecond
)

// Instructions.
const (
	CmdClear       byte = 0x01
	CmdHome        byte = 0x02
	CmdEntryMode   byte = 0x06
	CmdDisplayOn   byte = 0x0c
	CmdFunctionSet byte = 0x38
	CmdSetDDRAM    byte = 0x80

	entryShift     byte = 0x01
	displayControl byte = 0x08
	displayOn      byte = 0x04
	cursorOn       byte = 0x02
	blinkOn        byte = 0x01
	cursorShift    byte = 0x10
	shiftRight     byte = 0x04

	row0 byte = 0x80
	row1 byte = 0xc0
)

// Dev is a display on 11 GPIO lines. Access is serialized.
type Dev struct {
	mu     sync.Mutex
	data   gpio.Group
	rs     gpio.PinOut
	rw     gpio.PinOut
	en     gpio.PinOut
	on     bool
	cursor bool
	blink  bool
	sleep  func(time.Duration)
}

// New returns a display in an initialized state.
//
// The first 8 pins of data are D0 to D7. The pins must already be
// configured as outputs.
func New(data gpio.Group, rs, rw, en gpio.PinOut) (*Dev, error) {
	if data == nil || rs == nil || rw == nil || en == nil {
		return nil, errors.New("hd44780: all pins are required")
	}
	if n := len(data.Pins()); n < 8 {
		return nil, fmt.Errorf("hd44780: 8 data pins required, got %d", n)
	}
	d := &Dev{data: data, rs: rs, rw: rw, en: en, sleep: time.Sleep}
	return d, d.Init()
}

// Init sets the 8 bit interface with 2 lines of 5x8 dots, turns the display
// on with the cursor off, selects auto increment and moves to the first
// position.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range []byte{CmdFunctionSet, CmdDisplayOn, CmdEntryMode, CmdSetDDRAM} {
		if err := d.transfer(gpio.Low, c); err != nil {
			return err
		}
	}
	d.on, d.cursor, d.blink = true, false, false
	d.sleep(SettleDelay)
	return nil
}

// SendCommand transfers one instruction byte.
func (d *Dev) SendCommand(b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transfer(gpio.Low, b)
}

// SendData transfers one character to the current DDRAM address.
func (d *Dev) SendData(b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transfer(gpio.High, b)
}

// Clear blanks the display and returns the cursor to the first position.
func (d *Dev) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transfer(gpio.Low, CmdClear); err != nil {
		return err
	}
	d.sleep(SettleDelay)
	return nil
}

// Print writes text up to its first NUL byte. There is no wrapping and no
// width check.
func (d *Dev) Print(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < len(text) && text[i] != 0; i++ {
		if err := d.transfer(gpio.High, text[i]); err != nil {
			return err
		}
	}
	return nil
}

// MoveCursor moves to the zero based row and col. Row 0 starts at DDRAM
// 0x00 and row 1 at 0x40; any other row contributes nothing to the address,
// so the raw col byte is sent as an instruction. When col is 16 or more
// nothing is sent and the cursor stays where it was.
func (d *Dev) MoveCursor(row, col uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.moveCursor(row, col)
}

func (d *Dev) moveCursor(row, col uint8) error {
	var addr byte
	switch row {
	case 0:
		addr = row0
	case 1:
		addr = row1
	}
	if col >= Cols {
		return nil
	}
	return d.transfer(gpio.Low, addr+col)
}

// AutoScroll implements display.TextDisplay. When enabled the display
// shifts on every character written instead of the cursor.
func (d *Dev) AutoScroll(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := CmdEntryMode
	if enabled {
		c |= entryShift
	}
	return d.transfer(gpio.Low, c)
}

// Cols implements display.TextDisplay.
func (d *Dev) Cols() int {
	return Cols
}

// Rows implements display.TextDisplay.
func (d *Dev) Rows() int {
	return Rows
}

// MinCol implements display.TextDisplay.
func (d *Dev) MinCol() int {
	return 1
}

// MinRow implements display.TextDisplay.
func (d *Dev) MinRow() int {
	return 1
}

// Cursor implements display.TextDisplay. Underline shows the cursor, Blink
// and Block blink the character cell.
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cursor, blink := d.cursor, d.blink
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
			cursor, blink = false, false
		case display.CursorUnderline:
			cursor = true
		case display.CursorBlock, display.CursorBlink:
			blink = true
		default:
			return fmt.Errorf("hd44780: unexpected cursor mode %d", mode)
		}
	}
	d.cursor, d.blink = cursor, blink
	return d.transfer(gpio.Low, d.control())
}

// Display implements display.TextDisplay.
func (d *Dev) Display(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = on
	return d.transfer(gpio.Low, d.control())
}

func (d *Dev) control() byte {
	c := displayControl
	if d.on {
		c |= displayOn
	}
	if d.cursor {
		c |= cursorOn
	}
	if d.blink {
		c |= blinkOn
	}
	return c
}

// Home implements display.TextDisplay.
func (d *Dev) Home() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transfer(gpio.Low, CmdHome); err != nil {
		return err
	}
	d.sleep(SettleDelay)
	return nil
}

// Move implements display.TextDisplay. Only Forward and Backward are
// supported.
func (d *Dev) Move(dir display.CursorDirection) error {
	c := cursorShift
	switch dir {
	case display.Backward:
	case display.Forward:
		c |= shiftRight
	default:
		return fmt.Errorf("hd44780: %w", display.ErrNotImplemented)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transfer(gpio.Low, c)
}

// MoveTo implements display.TextDisplay. row and col are one based and
// validated, unlike MoveCursor.
func (d *Dev) MoveTo(row, col int) error {
	if row < d.MinRow() || row > Rows || col < d.MinCol() || col > Cols {
		return fmt.Errorf("hd44780: MoveTo(%d,%d) value out of range", row, col)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.moveCursor(uint8(row-1), uint8(col-1))
}

// Write implements display.TextDisplay. Unlike Print, NUL bytes are sent.
func (d *Dev) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for n, b := range p {
		if err := d.transfer(gpio.High, b); err != nil {
			return n, err
		}
	}
	return len(p), nil
}

// WriteString implements display.TextDisplay.
func (d *Dev) WriteString(text string) (int, error) {
	return d.Write([]byte(text))
}

func (d *Dev) String() string {
	return fmt.Sprintf("hd44780: %s - Rows: %d, Cols: %d", d.data, Rows, Cols)
}

// Halt clears the display, turns it off and releases the data lines.
func (d *Dev) Halt() error {
	err := d.Clear()
	if err2 := d.Display(false); err == nil {
		err = err2
	}
	if err2 := d.data.Halt(); err == nil {
		err = err2
	}
	return err
}

// transfer latches b into the instruction (rs low) or data (rs high)
// register.
func (d *Dev) transfer(rs gpio.Level, b byte) error {
	if err := d.data.Out(gpio.GPIOValue(b), 0xff); err != nil {
		return fmt.Errorf("hd44780: data: %w", err)
	}
	if err := d.rs.Out(rs); err != nil {
		return fmt.Errorf("hd44780: rs: %w", err)
	}
	if err := d.rw.Out(gpio.Low); err != nil {
		return fmt.Errorf("hd44780: rw: %w", err)
	}
	if err := d.en.Out(gpio.High); err != nil {
		return fmt.Errorf("hd44780: en: %w", err)
	}
	d.sleep(PulseDelay)
	if err := d.en.Out(gpio.Low); err != nil {
		return fmt.Errorf("hd44780: en: %w", err)
	}
	return nil
}

var _ display.TextDisplay = &Dev{}
var _ conn.Resource = &Dev{}
