// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package display implements the LED matrix controller (C3): a
// line-oriented ASCII command protocol over a 115200 8N1 serial link,
// acknowledged with "OK" or "ERR <msg>".
//
// Grounded on the teacher's pattern of a small struct owning one exclusive
// serial handle with explicit reopen-on-timeout, generalized from periph's
// bus-transaction model to a line protocol.
package display

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/musealliance/installation-controller/internal/errs"
	"github.com/musealliance/installation-controller/internal/transport"
)

// Pattern is one of the four advisory display states plus the error state.
type Pattern string

const (
	PatternBored        Pattern = "BORED"
	PatternThinking     Pattern = "THINKING"
	PatternFinish       Pattern = "FINISH"
	PatternRemoveFigure Pattern = "REMOVE_FIGURE"
	PatternError        Pattern = "ERROR"
)

const (
	ackTimeout       = 250 * time.Millisecond
	maxConsecutiveFailures = 2
)

// Opener reopens the display's serial link, used when a command times out.
type Opener func() (transport.Port, error)

// Controller drives the LED matrix over its line protocol. It is advisory:
// repeated failures are surfaced but never abort an installation cycle.
type Controller struct {
	mu          sync.Mutex
	port        transport.Port
	open        Opener
	failStreak  int
}

// New wraps an already-open port. open is used to reopen the link after a
// command timeout; it may be nil if reopening is not supported (tests).
func New(port transport.Port, open Opener) *Controller {
	return &Controller{port: port, open: open}
}

// Close releases the serial handle.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}

// SetPattern is idempotent: sending the same pattern twice is harmless. It
// must not block longer than ackTimeout; on timeout the link is reopened
// once and the command re-sent. Two consecutive failures return
// errs.ErrDisplayUnavailable without aborting the caller's cycle.
func (c *Controller) SetPattern(p Pattern) error {
	return c.send(fmt.Sprintf("PATTERN %s", p))
}

// Stop blanks the display.
func (c *Controller) Stop() error { return c.send("STOP") }

// Bright sets brightness in [0, 15].
func (c *Controller) Bright(n int) error { return c.send(fmt.Sprintf("BRIGHT %d", n)) }

// Speed sets animation speed in [0, 10].
func (c *Controller) Speed(n int) error { return c.send(fmt.Sprintf("SPEED %d", n)) }

func (c *Controller) send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendOnce(line); err == nil {
		c.failStreak = 0
		return nil
	}

	if c.open != nil {
		if np, rerr := c.open(); rerr == nil {
			if c.port != nil {
				_ = c.port.Close()
			}
			c.port = np
		}
	}

	if err := c.sendOnce(line); err == nil {
		c.failStreak = 0
		return nil
	}

	c.failStreak++
	if c.failStreak >= maxConsecutiveFailures {
		return fmt.Errorf("display: %w", errs.ErrDisplayUnavailable)
	}
	return fmt.Errorf("display: command %q failed", line)
}

func (c *Controller) sendOnce(line string) error {
	_ = c.port.SetReadTimeout(ackTimeout)
	if _, err := c.port.Write([]byte(line + "\n")); err != nil {
		return err
	}
	reply, err := readLine(c.port)
	if err != nil {
		return err
	}
	reply = strings.TrimSpace(reply)
	if reply == "OK" {
		return nil
	}
	if strings.HasPrefix(reply, "ERR") {
		return fmt.Errorf("display: %s", reply)
	}
	return fmt.Errorf("display: unexpected reply %q", reply)
}

func readLine(r interface{ Read([]byte) (int, error) }) (string, error) {
	br := bufio.NewReader(readerFunc(r.Read))
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
