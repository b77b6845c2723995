// Copyright 2026 The Museum Installation Controller Authors. All rights
// reserved. Use of this source code is governed under the Apache License,
// Version 2.0 that can be found in the LICENSE file.

// Package device bootstraps the installation's owned peripherals (RFID
// reader, LED matrix display, thermal printer) in dependency order at
// startup.
//
// Grounded on the teacher's own periph.go registry: a Driver interface
// (String/Prerequisites/Init), staged concurrent initialization via
// explodeStages/loadStage, and a State result distinguishing loaded from
// skipped from failed. That registry was built for an open-ended set of
// host bus drivers; here it is narrowed to the fixed three peripherals
// this installation owns, with an explicit Fatal flag replacing periph's
// "skipped vs failed" distinction (this installation never skips a
// peripheral as irrelevant -- every peripheral is either required or
// advisory, per spec §4 device-connection layer and §7 error policy).
package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/musealliance/installation-controller/internal/errs"
)

// Peripheral is one device to bring up at startup.
type Peripheral struct {
	// Name must be unique among the peripherals passed to Bootstrap.
	Name string
	// Prerequisites lists peripheral names that must load successfully
	// before this one is attempted.
	Prerequisites []string
	// Init opens and configures the peripheral. A non-nil error means the
	// peripheral did not come up.
	Init func() error
	// Fatal peripherals abort Bootstrap with ErrDeviceUnavailable on
	// failure (the RFID reader and, unless --no-print, the printer).
	// Non-fatal peripherals (the display) are logged and left out of
	// Result.Loaded; the orchestrator runs without them, degraded.
	Fatal bool
}

// Result is the outcome of one Bootstrap call, loaded peripherals sorted
// by name for deterministic logging.
type Result struct {
	Loaded []string
	Failed map[string]error
}

// Bootstrap initializes peripherals stage by stage: a stage is every
// peripheral whose prerequisites already loaded, and peripherals within a
// stage are initialized concurrently, exactly as the teacher's
// periph.Init() stages driver loading. It returns a non-nil error wrapping
// errs.ErrDeviceUnavailable as soon as any Fatal peripheral fails; all
// results gathered up to that point are still returned in Result.
func Bootstrap(peripherals []Peripheral) (Result, error) {
	stages, err := explodeStages(peripherals)
	if err != nil {
		return Result{}, fmt.Errorf("device: %w: %v", errs.ErrConfigurationError, err)
	}

	res := Result{Failed: map[string]error{}}
	loaded := map[string]struct{}{}

	for _, stage := range stages {
		type outcome struct {
			name string
			err  error
			skip bool
		}
		out := make(chan outcome, len(stage))
		var wg sync.WaitGroup
		for _, p := range stage {
			missing := false
			for _, dep := range p.Prerequisites {
				if _, ok := loaded[dep]; !ok {
					missing = true
					break
				}
			}
			if missing {
				out <- outcome{name: p.Name, skip: true}
				continue
			}
			wg.Add(1)
			go func(p Peripheral) {
				defer wg.Done()
				out <- outcome{name: p.Name, err: p.Init()}
			}(p)
		}
		wg.Wait()
		close(out)

		var fatalErr error
		for o := range out {
			if o.skip {
				res.Failed[o.name] = fmt.Errorf("device: %s: prerequisite failed", o.name)
				for _, p := range stage {
					if p.Name == o.name && p.Fatal && fatalErr == nil {
						fatalErr = fmt.Errorf("device: %s: %w: prerequisite failed", o.name, errs.ErrDeviceUnavailable)
					}
				}
				continue
			}
			if o.err != nil {
				res.Failed[o.name] = o.err
				for _, p := range stage {
					if p.Name == o.name && p.Fatal && fatalErr == nil {
						fatalErr = fmt.Errorf("device: %s: %w: %v", o.name, errs.ErrDeviceUnavailable, o.err)
					}
				}
				continue
			}
			loaded[o.name] = struct{}{}
			res.Loaded = append(res.Loaded, o.name)
		}
		if fatalErr != nil {
			sort.Strings(res.Loaded)
			return res, fatalErr
		}
	}

	sort.Strings(res.Loaded)
	return res, nil
}

// explodeStages groups peripherals into dependency-ordered stages, the
// same algorithm as the teacher's periph.go (Kahn-style layering), scaled
// down for this installation's handful of peripherals rather than an
// open-ended driver graph.
func explodeStages(peripherals []Peripheral) ([][]Peripheral, error) {
	byName := make(map[string]Peripheral, len(peripherals))
	for _, p := range peripherals {
		byName[p.Name] = p
	}
	remaining := make(map[string]map[string]struct{}, len(peripherals))
	for _, p := range peripherals {
		deps := map[string]struct{}{}
		for _, dep := range p.Prerequisites {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("unsatisfied dependency %q -> %q", p.Name, dep)
			}
			deps[dep] = struct{}{}
		}
		remaining[p.Name] = deps
	}

	var stages [][]Peripheral
	for len(remaining) != 0 {
		var names []string
		for name, deps := range remaining {
			if len(deps) == 0 {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("cycle detected among %v", remaining)
		}
		sort.Strings(names)
		var stage []Peripheral
		for _, name := range names {
			stage = append(stage, byName[name])
			delete(remaining, name)
		}
		for _, deps := range remaining {
			for _, name := range names {
				delete(deps, name)
			}
		}
		stages = append(stages, stage)
	}
	return stages, nil
}
