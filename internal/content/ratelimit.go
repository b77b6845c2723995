// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package content implements the remote text-generation client (C8): a
// persistent token-bucket rate limiter shared across processes via an
// exclusive file lock, retry-with-backoff, and a deterministic offline
// fallback.
//
// The rate limiter's persistence-plus-flock shape has no direct analogue in
// the example pack (no pack repo ships a rate limiter); it is grounded on
// the teacher's raw file-based OS state idiom (host/sysfs/fs_linux.go) and
// on github.com/gofrs/flock, the narrowest addition that provides the
// OS-level exclusive lock spec §5/§6 require (see DESIGN.md).
package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/musealliance/installation-controller/internal/errs"
)

const (
	// DefaultRPM is the default per-minute request budget.
	DefaultRPM = 15
	// DefaultDaily is the default per-day request budget.
	DefaultDaily = 1500
	// DefaultMaxWait bounds how long check_and_reserve blocks for a slot.
	DefaultMaxWait = 60 * time.Second

	retryPoll = 250 * time.Millisecond
)

// WindowBucket is one rolling counter window.
type WindowBucket struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// RateWindow is the on-disk rate-limit state, per spec §6.
type RateWindow struct {
	Minute WindowBucket `json:"minute"`
	Day    WindowBucket `json:"day"`
}

// RateLimiter guards the RPM and DAILY budgets using a JSON state file
// protected by an OS-level exclusive lock, so multiple processes racing to
// reserve a slot never observe count_minute > RPM_LIMIT (invariant #5).
type RateLimiter struct {
	StatePath string
	RPM       int
	Daily     int
	MaxWait   time.Duration
	Now       func() time.Time
}

// NewRateLimiter returns a RateLimiter with spec defaults applied for any
// zero field.
func NewRateLimiter(statePath string, rpm, daily int, maxWait time.Duration) *RateLimiter {
	if rpm <= 0 {
		rpm = DefaultRPM
	}
	if daily <= 0 {
		daily = DefaultDaily
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &RateLimiter{StatePath: statePath, RPM: rpm, Daily: daily, MaxWait: maxWait, Now: time.Now}
}

// CheckAndReserve blocks until a minute slot is available or MaxWait
// elapses, in which case it returns errs.ErrQuotaExceeded. On success it has
// already incremented both the minute and day counters on disk.
func (r *RateLimiter) CheckAndReserve() error {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	// Window bucket arithmetic uses the (possibly injected) clock; the wait
	// bound itself is real wall-clock time, since MAX_WAIT caps how long the
	// caller is actually blocked regardless of what window time a test
	// simulates.
	started := time.Now()
	for {
		reserved, retryAfter, err := r.tryReserve(now())
		if err != nil {
			return err
		}
		if reserved {
			return nil
		}
		elapsed := time.Since(started)
		if elapsed >= r.MaxWait {
			return fmt.Errorf("content: %w", errs.ErrQuotaExceeded)
		}
		sleep := retryAfter
		if sleep > retryPoll {
			sleep = retryPoll
		}
		if remaining := r.MaxWait - elapsed; sleep > remaining {
			sleep = remaining
		}
		if sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

// tryReserve attempts one reservation under the file lock. It returns
// (true, 0, nil) on success, or (false, retryAfter, nil) when the current
// window is exhausted and retryAfter is how long until it is worth trying
// again.
func (r *RateLimiter) tryReserve(at time.Time) (bool, time.Duration, error) {
	if err := os.MkdirAll(filepath.Dir(r.StatePath), 0o755); err != nil {
		return false, 0, fmt.Errorf("content: rate limiter: %w", err)
	}
	lock := flock.New(r.StatePath + ".lock")
	if err := lock.Lock(); err != nil {
		return false, 0, fmt.Errorf("content: rate limiter lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	w, err := r.load()
	if err != nil {
		return false, 0, err
	}

	w.Minute = rollMinute(w.Minute, at)
	w.Day = rollDay(w.Day, at)

	if w.Minute.Count >= r.RPM {
		retryAfter := w.Minute.Start.Add(time.Minute).Sub(at)
		return false, retryAfter, nil
	}
	if w.Day.Count >= r.Daily {
		retryAfter := w.Day.Start.AddDate(0, 0, 1).Sub(at)
		return false, retryAfter, nil
	}

	w.Minute.Count++
	w.Day.Count++
	if err := r.save(w); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

func rollMinute(b WindowBucket, at time.Time) WindowBucket {
	if b.Start.IsZero() || at.Sub(b.Start) >= time.Minute {
		return WindowBucket{Start: at, Count: 0}
	}
	return b
}

func rollDay(b WindowBucket, at time.Time) WindowBucket {
	if b.Start.IsZero() || at.Year() != b.Start.Year() || at.YearDay() != b.Start.YearDay() {
		return WindowBucket{Start: at, Count: 0}
	}
	return b
}

func (r *RateLimiter) load() (RateWindow, error) {
	data, err := os.ReadFile(r.StatePath)
	if os.IsNotExist(err) {
		return RateWindow{}, nil
	}
	if err != nil {
		return RateWindow{}, fmt.Errorf("content: rate limiter: read state: %w", err)
	}
	var w RateWindow
	if err := json.Unmarshal(data, &w); err != nil {
		return RateWindow{}, fmt.Errorf("content: rate limiter: corrupt state: %w", err)
	}
	return w, nil
}

func (r *RateLimiter) save(w RateWindow) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("content: rate limiter: encode state: %w", err)
	}
	tmp := r.StatePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("content: rate limiter: write state: %w", err)
	}
	if err := os.Rename(tmp, r.StatePath); err != nil {
		return fmt.Errorf("content: rate limiter: commit state: %w", err)
	}
	return nil
}
