// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Exclusive-claim USB bulk sink for the thermal printer. This is the
// byte-sink half of what spec.md §1 calls out of scope (the final raster
// driver that turns the adapter's text/image/cut vocabulary into
// ESC/POS-level firmware bytes, which this installation never does --
// the printer firmware is assumed to understand the adapter's own
// command lines and bitmap rows directly, per C4). What this file adds
// is only device access: open the bulk endpoint, claim it exclusively
// around each Cut, release it on scope exit.
//
// Grounded on guiperry-HASHER's internal/driver/device/usb_device.go
// (gousb context/device/config/interface/endpoint lifecycle, claimed
// once and torn down in reverse order), narrowed from a bidirectional
// ASIC control link to a single OUT bulk endpoint.
package printer

import (
	"fmt"
	"sync"

	"github.com/google/gousb"

	"github.com/musealliance/installation-controller/internal/errs"
)

// USBSink is a Sink backed by a real USB bulk endpoint.
type USBSink struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config

	mu   sync.Mutex
	intf *gousb.Interface
	ep   *gousb.OutEndpoint
}

// OpenUSBSink opens the printer identified by vendorID/productID and sets
// its USB configuration, without yet claiming the bulk interface (that
// happens per-Cut, in Claim).
func OpenUSBSink(vendorID, productID gousb.ID, configNum int) (*USBSink, error) {
	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(vendorID, productID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("printer: %w: open usb device: %v", errs.ErrDeviceUnavailable, err)
	}
	if device == nil {
		ctx.Close()
		return nil, fmt.Errorf("printer: %w: no usb device for vid:pid %v:%v", errs.ErrDeviceUnavailable, vendorID, productID)
	}

	config, err := device.Config(configNum)
	if err != nil {
		_ = device.Close()
		ctx.Close()
		return nil, fmt.Errorf("printer: %w: usb config: %v", errs.ErrDeviceUnavailable, err)
	}

	return &USBSink{ctx: ctx, device: device, config: config}, nil
}

// Claim exclusively claims the bulk interface/endpoint for one Cut call.
func (s *USBSink) Claim() error {
	s.mu.Lock()
	intf, err := s.config.Interface(printerInterfaceNum, 0)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("printer: %w: claim interface: %v", errs.ErrDeviceUnavailable, err)
	}
	ep, err := intf.OutEndpoint(printerEndpointOut)
	if err != nil {
		intf.Close()
		s.mu.Unlock()
		return fmt.Errorf("printer: %w: open out endpoint: %v", errs.ErrDeviceUnavailable, err)
	}
	s.intf, s.ep = intf, ep
	return nil
}

// Release gives back the bulk interface claimed in Claim.
func (s *USBSink) Release() error {
	defer s.mu.Unlock()
	if s.intf != nil {
		s.intf.Close()
		s.intf, s.ep = nil, nil
	}
	return nil
}

// Write sends p over the claimed OUT endpoint. Must be called between a
// Claim/Release pair.
func (s *USBSink) Write(p []byte) (int, error) {
	if s.ep == nil {
		return 0, fmt.Errorf("printer: %w: write without claim", errs.ErrDeviceUnavailable)
	}
	n, err := s.ep.Write(p)
	if err != nil {
		return n, fmt.Errorf("printer: %w: %v", errs.ErrDeviceLost, err)
	}
	return n, nil
}

// Close tears down the USB device and context. Not part of the Sink
// interface; called once at process shutdown.
func (s *USBSink) Close() error {
	s.config.Close()
	if err := s.device.Close(); err != nil {
		s.ctx.Close()
		return err
	}
	s.ctx.Close()
	return nil
}

const (
	printerInterfaceNum = 0
	printerEndpointOut  = 1
)
