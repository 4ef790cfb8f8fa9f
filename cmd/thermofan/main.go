// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// thermofan shows the temperature on a 16x2 character display and runs the
// fan above 25°C.
//
// With --sim the whole board, converter and display included, is emulated
// and the panel is drawn on the terminal.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/GermanBionicSystems/thermofan/thermostat"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type options struct {
	Config  string `short:"c" long:"config" description:"YAML wiring file"`
	Sim     bool   `long:"sim" description:"Emulate the board and draw the display on the terminal"`
	Temp    int    `long:"temp" default:"22" description:"Simulated temperature in °C"`
	Verbose bool   `short:"v" long:"verbose" description:"Log every sample"`
}

func mainImpl() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}

	var r *rig
	if opts.Sim {
		// The panel owns stdout; logs go to stderr.
		r, err = newSimRig(cfg, opts.Temp, newPanel(nil), log)
	} else {
		r, err = newHostRig(cfg, log)
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := thermostat.New(r.sensor, r.lcd, r.fan, &thermostat.Opts{Logger: log.WithField("component", "thermostat")})
	if err != nil {
		return err
	}
	log.WithField("sim", opts.Sim).Info("running")
	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err2 := r.Halt(); err == nil {
		err = err2
	}
	t, fan, steps := c.Last()
	log.WithFields(logrus.Fields{"temperature": t, "fan": fan, "steps": steps}).Info("stopped")
	return err
}

func main() {
	if err := mainImpl(); err != nil {
		logrus.WithError(err).Error("thermofan")
		os.Exit(1)
	}
}
