// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package transport provides the point-to-point byte transport shared by the
// RFID reader and LED matrix display controllers: enumerate serial device
// paths, open one at a fixed baud rate, and probe it before committing to it.
//
// The shape mirrors periph's conn.Conn ("the lowest common denominator for
// all point-to-point communication channels"), generalized from a
// transaction-oriented bus connection to a streaming serial port, and backed
// by go.bug.st/serial instead of a memory-mapped bus.
package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port is the minimal surface the RFID and display controllers need from a
// serial link. Both the real go.bug.st/serial.Port and the in-memory
// Loopback fake in this package satisfy it.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(d time.Duration) error
}

// Config is the fixed wire configuration used by every serial peripheral in
// this installation: 115200 8N1.
var Config = serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// List returns the candidate serial device paths on the host.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list ports: %w", err)
	}
	return ports, nil
}

// Open opens the named serial device at the fixed wire configuration.
func Open(name string) (Port, error) {
	p, err := serial.Open(name, &Config)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", name, err)
	}
	return p, nil
}

// Probe opens each candidate path in turn and calls probe on it; the first
// candidate for which probe returns true is returned open. Every other
// opened candidate is closed before moving on. probe must apply its own
// deadline (callers pass a closure with the per-device timeout baked in).
func Probe(candidates []string, probe func(Port) bool) (Port, string, error) {
	for _, name := range candidates {
		p, err := Open(name)
		if err != nil {
			continue
		}
		if probe(p) {
			return p, name, nil
		}
		_ = p.Close()
	}
	return nil, "", fmt.Errorf("transport: no candidate responded out of %d", len(candidates))
}
