// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package avradc

import (
	"testing"
	"time"

	"github.com/GermanBionicSystems/thermofan/avrio"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
)

const (
	admux  = avrio.ADMUX
	adcsra = avrio.ADCSRA
	adch   = avrio.ADCH
)

func initOps() []conntest.IO {
	return []conntest.IO{
		{W: []byte{admux}, R: []byte{0x00}},
		{W: []byte{admux, 0xc0}},
		{W: []byte{adcsra}, R: []byte{0x00}},
		{W: []byte{adcsra, 0x80}},
		{W: []byte{adcsra}, R: []byte{0x80}},
		{W: []byte{adcsra, 0x87}},
		{W: []byte{admux}, R: []byte{0xc0}},
		{W: []byte{admux, 0xe0}},
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		raw      uint8
		expected int
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 1},
		{50, 24},
		{51, 24},
		{52, 25},
		{54, 26},
		{205, 100},
		{255, 124},
	}
	for _, test := range tests {
		if got := Scale(test.raw); got != test.expected {
			t.Errorf("Scale(%d)=%d expected %d", test.raw, got, test.expected)
		}
	}
}

func TestCode(t *testing.T) {
	for degrees := 0; degrees <= Scale(0xff); degrees++ {
		code := Code(degrees)
		if got := Scale(code); got != degrees {
			t.Errorf("Scale(Code(%d))=%d", degrees, got)
		}
		if code > 0 && Scale(code-1) == degrees {
			t.Errorf("Code(%d)=%d is not the smallest sample", degrees, code)
		}
	}
	// 254 and 255 both scale to the top temperature.
	if got := Code(Scale(0xff)); got != 0xfe {
		t.Errorf("Code(%d)=%d expected 254", Scale(0xff), got)
	}
	if Code(-5) != 0 || Code(500) != 0xff {
		t.Error("Code() does not clamp")
	}
}

// TestPlayback verifies the exact register traffic of Init and one
// conversion.
func TestPlayback(t *testing.T) {
	ops := append(initOps(),
		conntest.IO{W: []byte{admux}, R: []byte{0xe0}},
		conntest.IO{W: []byte{admux, 0xe6}},
		conntest.IO{W: []byte{adcsra}, R: []byte{0x87}},
		conntest.IO{W: []byte{adcsra, 0xc7}},
		conntest.IO{W: []byte{adcsra}, R: []byte{0xc7}},
		conntest.IO{W: []byte{adcsra}, R: []byte{0xc7}},
		conntest.IO{W: []byte{adcsra}, R: []byte{0x97}},
		conntest.IO{W: []byte{adch}, R: []byte{52}},
	)
	pb := &conntest.Playback{Ops: ops, D: conn.Half}
	dev, err := New(pb, nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := dev.Temperature()
	if err != nil {
		t.Fatal(err)
	}
	if c != 25 {
		t.Errorf("Temperature()=%d expected 25", c)
	}
	if err = pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestChannelSelectKeepsMUX3(t *testing.T) {
	ops := append(initOps(),
		conntest.IO{W: []byte{admux}, R: []byte{0xe9}},
		conntest.IO{W: []byte{admux, 0xea}},
		conntest.IO{W: []byte{adcsra}, R: []byte{0x87}},
		conntest.IO{W: []byte{adcsra, 0xc7}},
		conntest.IO{W: []byte{adcsra}, R: []byte{0x97}},
		conntest.IO{W: []byte{adch}, R: []byte{0xff}},
	)
	pb := &conntest.Playback{Ops: ops, D: conn.Half}
	dev, err := New(pb, &Opts{Channel: 2})
	if err != nil {
		t.Fatal(err)
	}
	s, err := dev.Read()
	if err != nil {
		t.Fatal(err)
	}
	if s.Raw != 0xff {
		t.Errorf("Raw=%d", s.Raw)
	}
	if err = pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestRegs(t *testing.T) {
	regs := avrio.NewRegs(4)
	degrees := 26
	regs.SetInput(func(ch uint8) uint16 {
		if ch != DefaultChannel {
			t.Errorf("sampled channel %d", ch)
		}
		return uint16(Code(degrees)) << 2
	})
	rec := &conntest.Record{Conn: regs}
	dev, err := New(rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := regs.Peek(avrio.ADMUX); got != 0xe0 {
		t.Errorf("ADMUX=0x%x after Init, expected 0xe0", got)
	}
	if got := regs.Peek(avrio.ADCSRA); got != 0x87 {
		t.Errorf("ADCSRA=0x%x after Init, expected 0x87", got)
	}
	for _, degrees = range []int{0, 24, 25, 26, 99, 124} {
		c, err := dev.Temperature()
		if err != nil {
			t.Fatal(err)
		}
		if c != degrees {
			t.Errorf("Temperature()=%d expected %d", c, degrees)
		}
	}
	if regs.Conversions() != 6 {
		t.Errorf("Conversions()=%d", regs.Conversions())
	}
	// Every conversion polls ADCSRA until the converter is done.
	polls := 0
	for _, io := range rec.Ops {
		if len(io.W) == 1 && io.W[0] == avrio.ADCSRA && len(io.R) == 1 && io.R[0]&avrio.ADSC != 0 {
			polls++
		}
	}
	if polls != 6*3 {
		t.Errorf("observed %d busy polls, expected %d", polls, 6*3)
	}
}

func TestStalledConverterBlocks(t *testing.T) {
	regs := avrio.NewRegs(1)
	dev, err := New(regs, nil)
	if err != nil {
		t.Fatal(err)
	}
	regs.SetInput(func(uint8) uint16 { return uint16(Code(30)) << 2 })
	regs.Stall(true)
	done := make(chan int)
	go func() {
		c, _ := dev.Temperature()
		done <- c
	}()
	select {
	case <-done:
		t.Fatal("Temperature() returned while the converter is stalled")
	case <-time.After(50 * time.Millisecond):
	}
	regs.Stall(false)
	select {
	case c := <-done:
		if c != 30 {
			t.Errorf("Temperature()=%d expected 30", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Temperature() did not return after the converter resumed")
	}
}

func TestAnalogPin(t *testing.T) {
	regs := avrio.NewRegs(0)
	regs.SetInput(func(uint8) uint16 { return 128 << 2 })
	dev, err := New(regs, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := dev.Read()
	if err != nil {
		t.Fatal(err)
	}
	if s.Raw != 128 || s.V != 550*physic.MilliVolt {
		t.Errorf("Read()=%#v", s)
	}
	lo, hi := dev.Range()
	if lo.Raw != 0 || hi.Raw != 255 {
		t.Errorf("Range()=%v %v", lo, hi)
	}
	if dev.Name() != "ADC6" || dev.Number() != 6 || dev.String() != "avradc: ADC6" {
		t.Errorf("names: %s %d %s", dev.Name(), dev.Number(), dev)
	}
	env := physic.Env{}
	if err = dev.Sense(&env); err != nil {
		t.Fatal(err)
	}
	if want := physic.ZeroCelsius + 62*physic.Kelvin; env.Temperature != want {
		t.Errorf("Sense()=%s expected %s", env.Temperature, want)
	}
	var p physic.Env
	dev.Precision(&p)
	if diff := cmp.Diff(physic.Env{Temperature: physic.Kelvin}, p); diff != "" {
		t.Errorf("Precision() (-want +got):\n%s", diff)
	}
}

func TestSenseContinuous(t *testing.T) {
	regs := avrio.NewRegs(0)
	regs.SetInput(func(uint8) uint16 { return uint16(Code(21)) << 2 })
	fc := clockwork.NewFakeClock()
	dev, err := New(regs, &Opts{Channel: DefaultChannel, Clock: fc})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = dev.SenseContinuous(time.Millisecond); err == nil {
		t.Error("expected error for a short interval")
	}
	ch, err := dev.SenseContinuous(minInterval)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = dev.SenseContinuous(minInterval); err == nil {
		t.Error("expected error for a second SenseContinuous")
	}
	fc.BlockUntil(1)
	for range 2 {
		fc.Advance(minInterval)
		env := <-ch
		if env.Temperature != physic.ZeroCelsius+21*physic.Kelvin {
			t.Errorf("SenseContinuous()=%s", env.Temperature)
		}
	}
	if err = dev.Halt(); err != nil {
		t.Fatal(err)
	}
	for range ch {
	}
}

func TestInvalidChannel(t *testing.T) {
	if _, err := New(avrio.NewRegs(0), &Opts{Channel: 8}); err == nil {
		t.Error("expected error for channel 8")
	}
}
