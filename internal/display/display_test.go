// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package display

import (
	"errors"
	"testing"

	"github.com/musealliance/installation-controller/internal/errs"
	"github.com/musealliance/installation-controller/internal/transport"
)

func TestSetPatternSendsLineAndConsumesAck(t *testing.T) {
	port := transport.NewLoopback()
	port.Feed([]byte("OK\n"))

	c := New(port, nil)
	if err := c.SetPattern(PatternThinking); err != nil {
		t.Fatalf("SetPattern: %v", err)
	}
	if got := port.Sent.String(); got != "PATTERN THINKING\n" {
		t.Fatalf("unexpected wire line: %q", got)
	}
}

func TestSetPatternSurfacesErrReply(t *testing.T) {
	port := transport.NewLoopback()
	port.Feed([]byte("ERR bad pattern\n"))
	port.Feed([]byte("ERR bad pattern\n"))

	c := New(port, nil)
	err := c.SetPattern("NOT_A_PATTERN")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestReopenOnTimeoutThenSucceed(t *testing.T) {
	bad := transport.NewLoopback()
	_ = bad.Close() // reads fail immediately with io.EOF

	good := transport.NewLoopback()
	good.Feed([]byte("OK\n"))

	reopened := false
	opener := func() (transport.Port, error) {
		reopened = true
		return good, nil
	}

	c := New(bad, opener)
	if err := c.SetPattern(PatternBored); err != nil {
		t.Fatalf("SetPattern after reopen: %v", err)
	}
	if !reopened {
		t.Fatalf("expected reopen to have been invoked")
	}
}

func TestTwoConsecutiveFailuresReturnDisplayUnavailable(t *testing.T) {
	bad := transport.NewLoopback()
	_ = bad.Close()

	c := New(bad, nil)
	_ = c.SetPattern(PatternError)
	err := c.SetPattern(PatternError)
	if err == nil {
		t.Fatalf("expected error on second consecutive failure")
	}
	if !errors.Is(err, errs.ErrDisplayUnavailable) {
		t.Fatalf("expected ErrDisplayUnavailable, got %v", err)
	}
}
