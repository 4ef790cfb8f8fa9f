// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package iioadc reads an analog input exposed by the Linux Industrial I/O
// subsystem, the host side counterpart of avradc.
//
// The channel is read from in_voltage<N>_raw. The optional
// in_voltage<N>_scale (or the shared in_voltage_scale) gives millivolts per
// count.
//
// # Reference
//
// https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-iio
package iioadc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/GermanBionicSystems/thermofan/avradc"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// DefaultRoot is where the kernel lists IIO devices.
const DefaultRoot = "/sys/bus/iio/devices"

// Opts holds the channel configuration.
type Opts struct {
	// Dir is the device directory, for example
	// /sys/bus/iio/devices/iio:device0.
	Dir string
	// Channel is N in in_voltage<N>_raw.
	Channel int
	// Bits is the converter resolution. Defaults to 10.
	Bits int
}

// Dev is one IIO voltage channel.
type Dev struct {
	opts Opts

	mu    sync.Mutex
	f     fileIO
	scale float64
}

// Devices returns the IIO device directories found under root, sorted.
func Devices(root string) ([]string, error) {
	items, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return nil, fmt.Errorf("iioadc: %w", err)
	}
	sort.Strings(items)
	return items, nil
}

// New opens the channel described by opts.
func New(opts *Opts) (*Dev, error) {
	if opts == nil || opts.Dir == "" {
		return nil, errors.New("iioadc: device directory required")
	}
	o := *opts
	if o.Bits == 0 {
		o.Bits = 10
	}
	if o.Bits < 8 || o.Bits > 24 {
		return nil, fmt.Errorf("iioadc: unsupported resolution %d bits", o.Bits)
	}
	if o.Channel < 0 {
		return nil, fmt.Errorf("iioadc: invalid channel %d", o.Channel)
	}
	d := &Dev{opts: o}
	if err := d.open(); err != nil {
		return nil, err
	}
	scale, err := d.readScale()
	if err != nil {
		_ = d.f.Close()
		return nil, err
	}
	d.scale = scale
	return d, nil
}

// ReadRaw returns the raw count.
func (d *Dev) ReadRaw() (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return 0, errors.New("iioadc: closed")
	}
	var buf [24]byte
	n, err := seekRead(d.f, buf[:])
	if err != nil {
		return 0, fmt.Errorf("iioadc: %w", err)
	}
	s := strings.TrimSpace(string(buf[:n]))
	if s == "" {
		return 0, errors.New("iioadc: failed to read sample")
	}
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("iioadc: %w", err)
	}
	if i < 0 || i >= 1<<d.opts.Bits {
		return 0, fmt.Errorf("iioadc: sample %d out of %d bits range", i, d.opts.Bits)
	}
	return int32(i), nil
}

// Temperature keeps the 8 most significant bits of the sample and scales
// them like avradc, so both builds report the same degrees for the same
// input voltage.
func (d *Dev) Temperature() (int, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	return avradc.Scale(uint8(raw >> (d.opts.Bits - 8))), nil
}

// Read implements analog.PinADC.
func (d *Dev) Read() (analog.Sample, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return analog.Sample{}, err
	}
	return d.sample(raw), nil
}

// Range implements analog.PinADC.
func (d *Dev) Range() (analog.Sample, analog.Sample) {
	return d.sample(0), d.sample(int32(1)<<d.opts.Bits - 1)
}

func (d *Dev) sample(raw int32) analog.Sample {
	return analog.Sample{V: physic.ElectricPotential(float64(raw) * d.scale * float64(physic.MilliVolt)), Raw: raw}
}

// Name implements pin.Pin.
func (d *Dev) Name() string {
	return fmt.Sprintf("in_voltage%d", d.opts.Channel)
}

// Number implements pin.Pin.
func (d *Dev) Number() int {
	return d.opts.Channel
}

// Function implements pin.Pin.
func (d *Dev) Function() string {
	return "ADC"
}

func (d *Dev) String() string {
	return filepath.Base(d.opts.Dir) + "/" + d.Name()
}

// Halt closes the channel.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *Dev) open() error {
	p := filepath.Join(d.opts.Dir, d.Name()+"_raw")
	f, err := fileIOOpen(p, os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("iioadc: %w", err)
	}
	d.f = f
	return nil
}

// readScale returns the millivolts of one count, 0 when the driver exposes
// none.
func (d *Dev) readScale() (float64, error) {
	for _, name := range []string{d.Name() + "_scale", "in_voltage_scale"} {
		b, err := os.ReadFile(filepath.Join(d.opts.Dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("iioadc: %w", err)
		}
		mv, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
		if err != nil {
			return 0, fmt.Errorf("iioadc: invalid %s: %w", name, err)
		}
		return mv, nil
	}
	return 0, nil
}

type fileIO interface {
	io.ReadSeeker
	io.Closer
}

var fileIOOpen = func(path string, flag int) (fileIO, error) {
	return os.OpenFile(path, flag, 0)
}

// seekRead rereads a sysfs attribute from its start.
func seekRead(f fileIO, b []byte) (int, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := f.Read(b)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

var _ analog.PinADC = &Dev{}
var _ conn.Resource = &Dev{}
