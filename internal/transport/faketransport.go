// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Loopback is an in-memory Port used by unit tests. Writes are appended to
// Sent; reads are served one chunk at a time from the queue filled by Feed.
// A Read on an empty queue waits for the next Feed; once the port is closed
// and the queue is drained, Read returns io.EOF.
//
// Grounded on periph's conntest.Record, generalized from one-shot
// request/response transactions to a streaming port.
type Loopback struct {
	mu   sync.Mutex
	cond *sync.Cond
	Sent bytes.Buffer
	recv [][]byte
	err  error
}

// NewLoopback returns a ready-to-use fake port.
func NewLoopback() *Loopback {
	l := &Loopback{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Feed queues a chunk of bytes to be returned by subsequent Reads.
func (l *Loopback) Feed(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	l.recv = append(l.recv, cp)
	l.cond.Broadcast()
}

// Write implements Port.
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Sent.Write(p)
}

// Read implements Port. It blocks until a chunk is available or the port is
// closed.
func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.recv) == 0 && l.err == nil {
		l.cond.Wait()
	}
	if len(l.recv) == 0 {
		return 0, l.err
	}
	chunk := l.recv[0]
	l.recv = l.recv[1:]
	n := copy(p, chunk)
	if n < len(chunk) {
		// Partial read: push the remainder back to the front.
		l.recv = append([][]byte{chunk[n:]}, l.recv...)
	}
	return n, nil
}

// Close implements Port.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = io.EOF
	}
	l.cond.Broadcast()
	return nil
}

// SetReadTimeout implements Port. Timeouts are not modeled; callers that need
// a bounded Read should race it against their own context deadline.
func (l *Loopback) SetReadTimeout(time.Duration) error {
	return nil
}
