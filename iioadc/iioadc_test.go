// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package iioadc

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/GermanBionicSystems/thermofan/avradc"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"
)

func fakeDevice(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	dir := filepath.Join(root, "iio:device0")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func setRaw(t *testing.T, dir string, channel int, v string) {
	p := filepath.Join(dir, "in_voltage"+strconv.Itoa(channel)+"_raw")
	if err := os.WriteFile(p, []byte(v), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTemperature(t *testing.T) {
	dir := fakeDevice(t, map[string]string{"in_voltage6_raw": "0\n"})
	d, err := New(&Opts{Dir: dir, Channel: 6})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = d.Halt() }()
	tests := []struct {
		raw      string
		expected int
	}{
		{"0\n", 0},
		{"207\n", 24},
		{"208\n", 25},
		{"211\n", 25},
		{"216\n", 26},
		{"1023\n", 124},
	}
	for _, test := range tests {
		setRaw(t, dir, 6, test.raw)
		c, err := d.Temperature()
		if err != nil {
			t.Fatal(err)
		}
		if c != test.expected {
			t.Errorf("raw %q: Temperature()=%d expected %d", test.raw, c, test.expected)
		}
	}
}

func TestMatchesRegisterSampler(t *testing.T) {
	dir := fakeDevice(t, map[string]string{"in_voltage2_raw": "0"})
	d, err := New(&Opts{Dir: dir, Channel: 2, Bits: 12})
	if err != nil {
		t.Fatal(err)
	}
	for degrees := 0; degrees <= 124; degrees += 7 {
		code := int(avradc.Code(degrees)) << 4
		setRaw(t, dir, 2, strconv.Itoa(code))
		c, err := d.Temperature()
		if err != nil {
			t.Fatal(err)
		}
		if c != degrees {
			t.Errorf("Temperature()=%d expected %d", c, degrees)
		}
	}
}

func TestScale(t *testing.T) {
	dir := fakeDevice(t, map[string]string{
		"in_voltage0_raw":  "512",
		"in_voltage_scale": "1.074218750\n",
	})
	d, err := New(&Opts{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	s, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	if s.Raw != 512 || s.V != 550*physic.MilliVolt {
		t.Errorf("Read()=%#v", s)
	}
	_, hi := d.Range()
	if hi.Raw != 1023 {
		t.Errorf("Range() max %d", hi.Raw)
	}
	if d.String() != "iio:device0/in_voltage0" || d.Function() != "ADC" {
		t.Errorf("String()=%q", d)
	}
}

func TestChannelScaleWins(t *testing.T) {
	dir := fakeDevice(t, map[string]string{
		"in_voltage1_raw":   "10",
		"in_voltage1_scale": "2",
		"in_voltage_scale":  "1",
	})
	d, err := New(&Opts{Dir: dir, Channel: 1})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := d.Read()
	if s.V != 20*physic.MilliVolt {
		t.Errorf("V=%s", s.V)
	}
}

func TestErrors(t *testing.T) {
	dir := fakeDevice(t, map[string]string{
		"in_voltage0_raw":   "garbage",
		"in_voltage3_raw":   "5000",
		"in_voltage4_raw":   "1",
		"in_voltage4_scale": "x",
	})
	if _, err := New(nil); err == nil {
		t.Error("expected error without options")
	}
	if _, err := New(&Opts{Dir: dir, Channel: 7}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("New() missing channel: %v", err)
	}
	if _, err := New(&Opts{Dir: dir, Bits: 4}); err == nil {
		t.Error("expected error for 4 bits")
	}
	if _, err := New(&Opts{Dir: dir, Channel: 4}); err == nil {
		t.Error("expected error for an invalid scale")
	}
	d, err := New(&Opts{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = d.ReadRaw(); err == nil {
		t.Error("expected parse error")
	}
	d3, err := New(&Opts{Dir: dir, Channel: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = d3.Temperature(); err == nil {
		t.Error("expected range error")
	}
	if err = d3.Halt(); err != nil {
		t.Fatal(err)
	}
	if _, err = d3.ReadRaw(); err == nil {
		t.Error("expected error after Halt")
	}
}

func TestDevices(t *testing.T) {
	dir := fakeDevice(t, nil)
	got, err := Devices(filepath.Dir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{dir}, got); diff != "" {
		t.Errorf("Devices() (-want +got):\n%s", diff)
	}
}
