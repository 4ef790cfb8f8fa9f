// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780_test

import (
	"fmt"
	"io"
	"log"

	"github.com/GermanBionicSystems/thermofan/hd44780"
	"github.com/GermanBionicSystems/thermofan/lcdsim"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/gpioioctl"
)

// This example drives an emulated controller. Any gpio.Group and
// gpio.PinOut implementation works the same way.
func Example() {
	sim := lcdsim.New(&lcdsim.Opts{W: io.Discard})
	bus := sim.Bus()
	lcd, err := hd44780.New(bus.Data, bus.RS, bus.RW, bus.EN)
	if err != nil {
		log.Fatal(err)
	}
	_ = lcd.Print("Temperature: 26")
	_ = lcd.MoveCursor(1, 4)
	_ = lcd.Print("* FAN ON *")
	fmt.Printf("%q\n%q\n", sim.Line(0), sim.Line(1))
	// Output:
	// "Temperature: 26 "
	// "    * FAN ON *  "
}

// This example uses the periph.io/x/host/gpioioctl package to obtain the
// data lines as a gpio.Group on a Linux host.
func ExampleNew() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	chip := gpioioctl.Chips[0]
	// D0-D7 then RS, RW and EN.
	ls, err := chip.LineSet(gpioioctl.LineOutput, gpio.NoEdge, gpio.PullNoChange,
		"GPIO5", "GPIO6", "GPIO13", "GPIO19", "GPIO26", "GPIO12", "GPIO16", "GPIO20",
		"GPIO17", "GPIO27", "GPIO22")
	if err != nil {
		log.Fatal(err)
	}
	pins := ls.Pins()
	lcd, err := hd44780.New(ls, pins[8].(gpio.PinOut), pins[9].(gpio.PinOut), pins[10].(gpio.PinOut))
	if err != nil {
		log.Fatal(err)
	}
	_ = lcd.Clear()
	_ = lcd.Print("Hello")
	fmt.Println(lcd)
}
