// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package avradc drives the successive approximation ADC of an ATmega328P
// reading an LM35 temperature sensor.
//
// The converter runs left adjusted and only ADCH is read back, so a sample
// is the 8 most significant bits of the 10 bit conversion. Samples are
// converted to whole degrees Celsius with Scale.
//
// Conversions are polled: Read blocks until the converter clears ADSC, with
// no timeout. A converter that never completes blocks the caller forever.
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/lm35.pdf
package avradc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/thermofan/avrio"
	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultChannel is the ADMUX channel the sensor is wired to.
	DefaultChannel uint8 = 6
	// DefaultVref is the internal reference selected by REFS1|REFS0.
	DefaultVref physic.ElectricPotential = 1100 * physic.MilliVolt

	prescalerBits = avrio.ADPS2 | avrio.ADPS1 | avrio.ADPS0
	referenceBits = avrio.REFS1 | avrio.REFS0
	// Selecting a channel preserves REFS1, REFS0, ADLAR and MUX3.
	channelMask uint8 = 0x07

	minInterval = 100 * time.Millisecond
)

// Opts holds the sampler configuration.
type Opts struct {
	// Channel is the analog input, 0 to 7.
	Channel uint8
	// Vref is the reference voltage, used to fill analog.Sample.V.
	Vref physic.ElectricPotential
	// Clock paces SenseContinuous. It defaults to the real clock.
	Clock clockwork.Clock
}

// DefaultOpts is the wiring of the fan controller board.
var DefaultOpts = Opts{Channel: DefaultChannel, Vref: DefaultVref}

// Dev is the converter of one ATmega328P.
type Dev struct {
	mu       sync.Mutex
	opts     Opts
	admux    *avrio.Register
	adcsra   *avrio.Register
	adch     *avrio.Register
	shutdown chan struct{}
}

// Scale converts a left adjusted 8 bit sample into degrees Celsius as
// sample*500/1024. The multiplication happens before the truncating
// division, so only about 125 distinct temperatures can be produced.
func Scale(sample uint8) int {
	return int(uint32(sample) * 500 / 1024)
}

// Code returns the smallest sample that Scale maps to degrees. degrees is
// clamped to the range Scale can produce.
func Code(degrees int) uint8 {
	if degrees <= 0 {
		return 0
	}
	if degrees > Scale(0xff) {
		return 0xff
	}
	return uint8((degrees*1024 + 499) / 500)
}

// New returns the converter reached through the register connection c, in
// its initialized state. opts may be nil to use DefaultOpts.
func New(c conn.Conn, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Channel > channelMask {
		return nil, fmt.Errorf("avradc: invalid channel %d", opts.Channel)
	}
	o := *opts
	if o.Vref == 0 {
		o.Vref = DefaultVref
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	d := &Dev{
		opts:   o,
		admux:  avrio.NewRegister(c, avrio.ADMUX),
		adcsra: avrio.NewRegister(c, avrio.ADCSRA),
		adch:   avrio.NewRegister(c, avrio.ADCH),
	}
	return d, d.Init()
}

// Init selects the internal reference, enables the converter, sets the
// clock prescaler to 128 and selects left adjusted results.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.admux.Set(referenceBits); err != nil {
		return err
	}
	if err := d.adcsra.Set(avrio.ADEN); err != nil {
		return err
	}
	if err := d.adcsra.Set(prescalerBits); err != nil {
		return err
	}
	return d.admux.Set(avrio.ADLAR)
}

// ReadRaw performs one conversion and returns ADCH.
func (d *Dev) ReadRaw() (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.convert()
}

func (d *Dev) convert() (uint8, error) {
	if err := d.admux.Update(channelMask, d.opts.Channel&channelMask, false); err != nil {
		return 0, err
	}
	if err := d.adcsra.Set(avrio.ADSC); err != nil {
		return 0, err
	}
	for {
		v, err := d.adcsra.Read(false)
		if err != nil {
			return 0, err
		}
		if v&avrio.ADSC == 0 {
			break
		}
	}
	return d.adch.Read(false)
}

// Temperature performs one conversion and returns whole degrees Celsius.
func (d *Dev) Temperature() (int, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	return Scale(raw), nil
}

// Read implements analog.PinADC. Raw is the 8 bit sample.
func (d *Dev) Read() (analog.Sample, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return analog.Sample{}, err
	}
	return d.sample(int32(raw)), nil
}

// Range implements analog.PinADC.
func (d *Dev) Range() (analog.Sample, analog.Sample) {
	return d.sample(0), d.sample(0xff)
}

func (d *Dev) sample(raw int32) analog.Sample {
	return analog.Sample{V: physic.ElectricPotential(raw) * d.opts.Vref / 256, Raw: raw}
}

// Sense implements physic.SenseEnv.
func (d *Dev) Sense(env *physic.Env) error {
	c, err := d.Temperature()
	if err != nil {
		return err
	}
	env.Temperature = physic.ZeroCelsius + physic.Temperature(c)*physic.Kelvin
	return nil
}

// SenseContinuous implements physic.SenseEnv. Samples that fail are
// dropped. Call Halt to stop.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < minInterval {
		return nil, fmt.Errorf("avradc: invalid interval, minimum %s", minInterval)
	}
	d.mu.Lock()
	if d.shutdown != nil {
		d.mu.Unlock()
		return nil, errors.New("avradc: SenseContinuous already running")
	}
	shutdown := make(chan struct{})
	d.shutdown = shutdown
	d.mu.Unlock()

	ch := make(chan physic.Env)
	go func() {
		defer close(ch)
		ticker := d.opts.Clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.Chan():
				e := physic.Env{}
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case ch <- e:
				case <-shutdown:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Precision implements physic.SenseEnv: one degree per step at best.
func (d *Dev) Precision(env *physic.Env) {
	env.Temperature = physic.Kelvin
	env.Pressure = 0
	env.Humidity = 0
}

// Halt stops a running SenseContinuous.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown != nil {
		close(d.shutdown)
		d.shutdown = nil
	}
	return nil
}

// Name implements pin.Pin.
func (d *Dev) Name() string {
	return fmt.Sprintf("ADC%d", d.opts.Channel)
}

// Number implements pin.Pin.
func (d *Dev) Number() int {
	return int(d.opts.Channel)
}

// Function implements pin.Pin.
func (d *Dev) Function() string {
	return "ADC"
}

func (d *Dev) String() string {
	return "avradc: " + d.Name()
}

var _ analog.PinADC = &Dev{}
var _ physic.SenseEnv = &Dev{}
var _ conn.Resource = &Dev{}
