// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package printer implements the thermal printer adapter (C4): a small
// buffered command vocabulary (text, image, qrcode, feed, cut) flushed on
// cut, over an exclusively claimed USB byte sink.
//
// Grounded on rusq-thermoprint's LX-D02 driver: a buffered command list with
// a bounded retry, flushed as one write, and a finite command vocabulary
// instead of a general byte stream.
package printer

import (
	"bytes"
	"fmt"
	"image"

	"github.com/musealliance/installation-controller/internal/errs"
)

// Style is a text rendering hint; the firmware interprets it, the adapter
// only tags the command.
type Style int

const (
	StyleNormal Style = iota
	StyleBold
	StyleCentered
	StyleLarge
)

// Sink is the byte-sink contract the real printer driver (out of scope for
// this spec, per spec.md §1) must satisfy: already-rasterized page buffers
// plus a small command vocabulary of text line / image / cut.
type Sink interface {
	// Write sends raw already-framed command bytes to the printer.
	Write(p []byte) (int, error)
	// Claim exclusively acquires the USB endpoint; Release gives it back.
	Claim() error
	Release() error
}

// Adapter buffers printer commands and flushes them as one write on Cut.
type Adapter struct {
	sink Sink
	buf  bytes.Buffer
	dots int
}

// New returns an Adapter bound to sink whose page is width dots wide
// (spec default 512).
func New(sink Sink, width int) *Adapter {
	return &Adapter{sink: sink, dots: width}
}

// Text appends a text line command.
func (a *Adapter) Text(line string, style Style) {
	fmt.Fprintf(&a.buf, "TEXT %d %s\n", style, line)
}

// Image appends a monochrome bitmap at its own size. A bitmap wider than
// the printer's dot width is rejected with an error; bitmaps are neither
// cropped nor padded.
func (a *Adapter) Image(bitmap image.Image) error {
	b := bitmap.Bounds()
	if b.Dx() > a.dots {
		return fmt.Errorf("printer: image width %d exceeds page width %d", b.Dx(), a.dots)
	}
	fmt.Fprintf(&a.buf, "IMAGE %d %d\n", b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := bitmap.At(x, y).RGBA()
			if r < 0x8000 {
				a.buf.WriteByte('1')
			} else {
				a.buf.WriteByte('0')
			}
		}
		a.buf.WriteByte('\n')
	}
	return nil
}

// QRCode appends a QR command carrying an already-rendered monochrome
// bitmap (the composer renders the code via github.com/kortschak/qr and
// hands the adapter a bitmap, keeping this package's vocabulary limited to
// "already-rasterized" per spec §1).
func (a *Adapter) QRCode(bitmap image.Image, size int) error {
	fmt.Fprintf(&a.buf, "QR %d\n", size)
	return a.Image(bitmap)
}

// Feed appends n blank lines.
func (a *Adapter) Feed(lines int) {
	fmt.Fprintf(&a.buf, "FEED %d\n", lines)
}

// Cut flushes the buffered commands to the sink in one write, claiming the
// USB endpoint for the duration and releasing it on every exit path. On a
// claim or I/O error it returns errs.ErrPrinterFailure; the orchestrator is
// responsible for the retry-once policy (§4.4/§7).
func (a *Adapter) Cut() error {
	if err := a.sink.Claim(); err != nil {
		return fmt.Errorf("printer: %w: claim: %v", errs.ErrPrinterFailure, err)
	}
	defer func() { _ = a.sink.Release() }()

	a.buf.WriteString("CUT\n")
	_, err := a.sink.Write(a.buf.Bytes())
	a.buf.Reset()
	if err != nil {
		return fmt.Errorf("printer: %w: %v", errs.ErrPrinterFailure, err)
	}
	return nil
}

// Reset discards any buffered, unflushed commands. Used by the orchestrator
// before a retried print attempt.
func (a *Adapter) Reset() {
	a.buf.Reset()
}
