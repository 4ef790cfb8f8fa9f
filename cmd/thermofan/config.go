// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/GermanBionicSystems/thermofan/avrio"
	"gopkg.in/yaml.v3"
)

// config is the wiring of the board.
type config struct {
	Display displayConfig `yaml:"display"`
	// Fan is the name of the fan output line.
	Fan    string       `yaml:"fan"`
	Sensor sensorConfig `yaml:"sensor"`
	Sim    simConfig    `yaml:"sim"`
}

type displayConfig struct {
	// Data are the D0 to D7 line names on the GPIO chip.
	Data []string `yaml:"data"`
	RS   string   `yaml:"rs"`
	RW   string   `yaml:"rw"`
	EN   string   `yaml:"en"`
}

type sensorConfig struct {
	// Dir is the IIO device directory.
	Dir     string `yaml:"dir"`
	Channel int    `yaml:"channel"`
	Bits    int    `yaml:"bits"`
}

type simConfig struct {
	// Latency is the number of polls a simulated conversion stays busy.
	Latency int `yaml:"latency"`
}

func defaultConfig() *config {
	return &config{
		Display: displayConfig{
			Data: []string{"GPIO5", "GPIO6", "GPIO13", "GPIO19", "GPIO26", "GPIO12", "GPIO16", "GPIO20"},
			RS:   "GPIO17",
			RW:   "GPIO27",
			EN:   "GPIO22",
		},
		Fan: "GPIO23",
		Sensor: sensorConfig{
			Dir:     "/sys/bus/iio/devices/iio:device0",
			Channel: 0,
			Bits:    10,
		},
		Sim: simConfig{Latency: avrio.DefaultLatency},
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c *config) validate() error {
	if len(c.Display.Data) != 8 {
		return fmt.Errorf("display.data: 8 lines required, got %d", len(c.Display.Data))
	}
	if c.Display.RS == "" || c.Display.RW == "" || c.Display.EN == "" {
		return errors.New("display: rs, rw and en are required")
	}
	if c.Fan == "" {
		return errors.New("fan is required")
	}
	if c.Sensor.Channel < 0 {
		return fmt.Errorf("sensor.channel: invalid %d", c.Sensor.Channel)
	}
	return nil
}
