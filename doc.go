// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermofan is a container for the drivers of a small temperature
// controlled fan board: an LM35 sensor read through an AVR converter, a
// 16x2 HD44780 character display on an 8 bit bus and a fan output line.
//
// The control loop lives in package thermostat and the board wiring in
// cmd/thermofan. Package lcdsim and avrio emulate the display and the
// microcontroller registers so the whole board runs on a workstation.
package thermofan
