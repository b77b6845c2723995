// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package frame

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0xAA, 0xBB, 0xCC}
	wire := Encode(CmdMultiPolling, payload)

	var d Decoder
	frames, err := d.Feed(wire)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Type != TypeCommand || f.Cmd != CmdMultiPolling {
		t.Fatalf("unexpected frame header: %+v", f)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("payload mismatch: got %x want %x", f.Payload, payload)
	}
}

func TestDecoderDropsGarbageAndResyncs(t *testing.T) {
	payload := []byte{0x11, 0x22}
	good := Encode(CmdNotifyTagFound, payload)

	stream := append([]byte{0x00, 0xFF, 0x10, 0xBB}, good...)

	var d Decoder
	frames, err := d.Feed(stream)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("want 1 frame after garbage, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, payload) {
		t.Fatalf("payload mismatch: %x", frames[0].Payload)
	}
}

func TestDecoderDropsBadChecksum(t *testing.T) {
	good := Encode(CmdInventoryEnd, []byte{0x01})
	corrupt := append([]byte(nil), good...)
	corrupt[len(corrupt)-2] ^= 0xFF // flip checksum byte

	var d Decoder
	frames, err := d.Feed(corrupt)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("want 0 frames for bad checksum, got %d", len(frames))
	}
}

func TestDecoderHandlesPartialFeeds(t *testing.T) {
	wire := Encode(CmdConfigAck, []byte{0x01, 0x02, 0x03})

	var d Decoder
	frames, err := d.Feed(wire[:3])
	if err != nil {
		t.Fatalf("Feed partial: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames yet, got %d", len(frames))
	}
	frames, err = d.Feed(wire[3:])
	if err != nil {
		t.Fatalf("Feed rest: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
}

func TestDecoderMultipleFramesInOneFeed(t *testing.T) {
	a := Encode(CmdNotifyTagFound, []byte{0x01})
	b := Encode(CmdNotifyTagFound, []byte{0x02})

	var d Decoder
	frames, err := d.Feed(append(a, b...))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}
}

func TestDecoderUnsyncedBoundReturnsError(t *testing.T) {
	var d Decoder
	junk := bytes.Repeat([]byte{0x01}, 70*1024)
	_, err := d.Feed(junk)
	if err == nil {
		t.Fatalf("expected error on oversized unsynced garbage")
	}
}
