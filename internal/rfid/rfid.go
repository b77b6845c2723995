// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package rfid implements the UHF RFID controller (C2): device discovery,
// region/power configuration, and the multi-polling inventory loop that
// aggregates EPC -> best RSSI until a target tag count or a deadline is
// reached.
//
// Grounded on the frame idiom seen in the pack's RC522/PN532 register-style
// controllers (EdgeFlow's pkg/nodes/gpio) and the teacher's pattern of a
// small struct owning one exclusive device handle with explicit Open/Close.
package rfid

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/musealliance/installation-controller/internal/errs"
	"github.com/musealliance/installation-controller/internal/frame"
	"github.com/musealliance/installation-controller/internal/transport"
)

// Region is an RFID regulatory region.
type Region string

const (
	RegionEU Region = "EU"
	RegionUS Region = "US"
	RegionCN Region = "CN"
	RegionIN Region = "IN"
	RegionJP Region = "JP"
)

var regionCodes = map[Region]byte{
	RegionEU: 0x02,
	RegionUS: 0x01,
	RegionCN: 0x04,
	RegionIN: 0x03,
	RegionJP: 0x05,
}

const (
	// DefaultRegion is used when the caller does not specify one.
	DefaultRegion = RegionEU
	// DefaultPowerCentiDBm is 26.00 dBm expressed in centi-dBm.
	DefaultPowerCentiDBm = 2600

	probeTimeout   = 200 * time.Millisecond
	configRetries  = 3
	configAckWait  = 150 * time.Millisecond
	pollInterval   = 30 * time.Millisecond
	cancelDeadline = 100 * time.Millisecond
)

// Tag is one aggregated inventory result: an EPC and the strongest RSSI
// observed for it during the pass.
type Tag struct {
	EPC  string // uppercase hex, normalized
	RSSI int8
}

// Opener reopens the RFID reader's serial link, used when ReadTags hits a
// transient I/O error mid-pass. It may be nil, in which case a transient
// error is not retried and returns errs.ErrDeviceLost immediately.
type Opener func() (transport.Port, error)

// Controller owns one serial link to the UHF reader.
type Controller struct {
	port     transport.Port
	portName string
	open     Opener
	dec      frame.Decoder
	region   Region
	power    int
}

// Open enumerates candidates, probes each at the fixed wire config, and
// configures the first responder for region and power. It retries each
// configuration step up to 3 times on a missing ACK before returning
// errs.ErrDeviceUnavailable.
func Open(candidates []string, region Region, powerCentiDBm int) (*Controller, error) {
	if region == "" {
		region = DefaultRegion
	}
	if powerCentiDBm == 0 {
		powerCentiDBm = DefaultPowerCentiDBm
	}
	if _, ok := regionCodes[region]; !ok {
		return nil, fmt.Errorf("rfid: unknown region %q: %w", region, errs.ErrConfigurationError)
	}

	port, name, err := transport.Probe(candidates, probeResponds)
	if err != nil {
		return nil, fmt.Errorf("rfid: %w: %v", errs.ErrDeviceUnavailable, err)
	}

	c := &Controller{port: port, portName: name, region: region, power: powerCentiDBm}
	c.open = func() (transport.Port, error) { return transport.Open(name) }
	if err := c.configure(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return c, nil
}

// OpenOn wraps an already-open port (used by tests and by callers that have
// done their own discovery) and configures it.
func OpenOn(port transport.Port, region Region, powerCentiDBm int) (*Controller, error) {
	if region == "" {
		region = DefaultRegion
	}
	if powerCentiDBm == 0 {
		powerCentiDBm = DefaultPowerCentiDBm
	}
	c := &Controller{port: port, region: region, power: powerCentiDBm}
	if err := c.configure(); err != nil {
		return nil, err
	}
	return c, nil
}

func probeResponds(p transport.Port) bool {
	_ = p.SetReadTimeout(probeTimeout)
	_, err := p.Write(frame.Encode(frame.CmdConfigAck, nil))
	if err != nil {
		return false
	}
	buf := make([]byte, 64)
	n, err := p.Read(buf)
	return err == nil && n > 0
}

// Close releases the serial handle.
func (c *Controller) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}

// PortName returns the device path the controller is bound to, if known.
func (c *Controller) PortName() string { return c.portName }

func (c *Controller) configure() error {
	if err := c.sendConfigWithRetry(frame.CmdSetRegion, []byte{regionCodes[c.region]}); err != nil {
		return err
	}
	hi := byte(c.power >> 8)
	lo := byte(c.power & 0xFF)
	if err := c.sendConfigWithRetry(frame.CmdSetTxPower, []byte{hi, lo}); err != nil {
		return err
	}
	return nil
}

func (c *Controller) sendConfigWithRetry(cmd frame.Command, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt < configRetries; attempt++ {
		if err := c.sendConfigOnce(cmd, payload); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("rfid: configure %v: %w (%v)", cmd, errs.ErrDeviceUnavailable, lastErr)
}

func (c *Controller) sendConfigOnce(cmd frame.Command, payload []byte) error {
	_ = c.port.SetReadTimeout(configAckWait)
	if _, err := c.port.Write(frame.Encode(cmd, payload)); err != nil {
		return err
	}
	buf := make([]byte, 256)
	n, err := c.port.Read(buf)
	if err != nil {
		return err
	}
	frames, err := c.dec.Feed(buf[:n])
	if err != nil {
		return err
	}
	for _, f := range frames {
		if f.Cmd == frame.CmdConfigAck {
			return nil
		}
	}
	return fmt.Errorf("no ack observed")
}

// Result is a stable snapshot of an inventory pass.
type Result struct {
	Tags     []Tag
	TimedOut bool
}

// ReadTags runs the multi-polling inventory loop until targetN distinct EPCs
// have been seen or ctx's deadline/cancellation fires, whichever comes
// first. On cancellation the partial map is returned with TimedOut set.
//
// A transient I/O error mid-pass (a read/write failure, or the frame
// decoder losing sync) is retried once per call: the serial handle is
// reopened via Opener and the pass continues with the tags already
// aggregated. errs.ErrDeviceLost is returned once a reopen has already
// been attempted and the link is still unusable, or at once when the
// Controller has no Opener (spec §4.2/§7).
//
// The returned tag order is unspecified, matching the spec's explicit
// "order of EPCs in the returned set is undefined".
func (c *Controller) ReadTags(ctx context.Context, targetN int) (Result, error) {
	best := map[string]int8{}
	reopened := false

	for {
		res, err, retry := c.readPass(ctx, targetN, best)
		if !retry {
			return res, err
		}
		if reopened || c.open == nil {
			return snapshot(best, true), fmt.Errorf("rfid: %w: %v", errs.ErrDeviceLost, err)
		}
		np, rerr := c.open()
		if rerr != nil {
			return snapshot(best, true), fmt.Errorf("rfid: %w: reopen failed: %v", errs.ErrDeviceLost, rerr)
		}
		_ = c.port.Close()
		c.port = np
		reopened = true
	}
}

// readPass runs one attempt of the poll loop against the controller's
// current port. retry is true when the returned err is a transient I/O or
// decode failure that ReadTags should try to recover from by reopening the
// link; it is false for context cancellation or a completed pass, in which
// case res/err are ReadTags's final return values.
func (c *Controller) readPass(ctx context.Context, targetN int, best map[string]int8) (res Result, err error, retry bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	_ = c.port.SetReadTimeout(pollInterval)
	readCh := make(chan []byte, 8)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	go c.readLoop(readCh, readErr, stop)
	defer close(stop)

	for {
		select {
		case <-ctx.Done():
			return snapshot(best, true), nil, false
		case data := <-readCh:
			frames, ferr := c.dec.Feed(data)
			if ferr != nil {
				return Result{}, ferr, true
			}
			for _, f := range frames {
				if f.Cmd == frame.CmdNotifyTagFound && len(f.Payload) >= 2 {
					rssi := int8(f.Payload[0])
					epc := normalizeEPC(f.Payload[1:])
					if cur, ok := best[epc]; !ok || rssi > cur {
						best[epc] = rssi
					}
				}
			}
			if len(best) >= targetN {
				return snapshot(best, false), nil, false
			}
		case rerr := <-readErr:
			return Result{}, rerr, true
		case <-ticker.C:
			if _, werr := c.port.Write(frame.Encode(frame.CmdMultiPolling, nil)); werr != nil {
				return Result{}, werr, true
			}
		}
	}
}

func (c *Controller) readLoop(out chan<- []byte, errc chan<- error, stop <-chan struct{}) {
	buf := make([]byte, 512)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := c.port.Read(buf)
		if err != nil {
			select {
			case errc <- err:
			case <-stop:
			}
			return
		}
		if n == 0 {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- cp:
		case <-stop:
			return
		}
	}
}

func snapshot(best map[string]int8, timedOut bool) Result {
	tags := make([]Tag, 0, len(best))
	for epc, rssi := range best {
		tags = append(tags, Tag{EPC: epc, RSSI: rssi})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].EPC < tags[j].EPC })
	return Result{Tags: tags, TimedOut: timedOut}
}

func normalizeEPC(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
